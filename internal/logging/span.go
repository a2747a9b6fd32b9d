package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times a unit of work, such as one aggregation run, inside a request.
type Span struct {
	logger *slog.Logger
	start  time.Time
	attrs  []any
	err    error
}

// StartSpan derives a child span. Nested spans record their parent so the
// request log can be reassembled into a tree.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	spanID := uuid.NewString()
	logger := FromContext(ctx).With(slog.String("span", name), slog.String("span_id", spanID))
	if parent := SpanIDFromContext(ctx); parent != "" {
		logger = logger.With(slog.String("parent_span_id", parent))
	}

	ctx = WithLogger(ctx, logger)
	ctx = context.WithValue(ctx, spanIDKey, spanID)
	return ctx, &Span{logger: logger, start: time.Now()}
}

// Set attaches attributes to the completion entry.
func (s *Span) Set(args ...any) {
	if s != nil {
		s.attrs = append(s.attrs, args...)
	}
}

// Fail marks the span as failed; the completion entry is logged at warn.
func (s *Span) Fail(err error) {
	if s != nil && err != nil {
		s.err = err
	}
}

// End emits the completion entry. Successful spans log at debug.
func (s *Span) End() {
	if s == nil {
		return
	}
	args := append([]any{slog.Duration("duration", time.Since(s.start))}, s.attrs...)
	if s.err != nil {
		s.logger.Warn("span failed", append(args, slog.Any("error", s.err))...)
		return
	}
	s.logger.Debug("span completed", args...)
}
