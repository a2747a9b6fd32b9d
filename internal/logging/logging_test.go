package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "chatty")
	logger.Debug("hidden")
	logger.Info("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected log output %s", buf.String())
	}
	if ParseLevel(" WARN ") != slog.LevelWarn {
		t.Fatal("expected warn level")
	}
}

func TestContextLogger(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Fatal("expected default logger without one in context")
	}

	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx = WithRequestID(ctx, "req-1")
	ctx = With(ctx, "user_id", "u1")
	FromContext(ctx).Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["user_id"] != "u1" {
		t.Fatalf("expected user_id attribute, got %v", entry)
	}
	if RequestIDFromContext(ctx) != "req-1" {
		t.Fatal("expected request id")
	}
}

func TestSpanNestingAndFailure(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx, outer := StartSpan(ctx, "outer")
	outerID := SpanIDFromContext(ctx)
	_, inner := StartSpan(ctx, "inner")
	inner.Fail(errors.New("boom"))
	inner.End()
	outer.Set("results", 3)
	outer.End()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two entries, got %d", len(lines))
	}
	var failed, done map[string]any
	_ = json.Unmarshal([]byte(lines[0]), &failed)
	_ = json.Unmarshal([]byte(lines[1]), &done)

	if failed["level"] != "WARN" || failed["parent_span_id"] != outerID || failed["error"] != "boom" {
		t.Fatalf("unexpected inner entry %v", failed)
	}
	if done["level"] != "DEBUG" || done["results"] != float64(3) {
		t.Fatalf("unexpected outer entry %v", done)
	}

	var nilSpan *Span
	nilSpan.Set("ignored", true)
	nilSpan.End()
}
