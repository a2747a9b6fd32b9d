package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/logging"
)

// ErrNotNative is returned by a NativeRunner for pipelines it cannot compile.
var ErrNotNative = errors.New("pipeline not supported natively")

// NativeRunner is implemented by stores that can evaluate a whole pipeline
// server side. Returning ErrNotNative makes the engine evaluate it in process.
type NativeRunner interface {
	RunPipeline(ctx context.Context, collection string, p Pipeline) ([]docstore.Document, error)
}

// Engine evaluates pipelines. The leading match and any sort, skip or limit
// that directly follows it are pushed down to the store; the remaining stages
// run in process with one batched query per join.
type Engine struct {
	store docstore.Store
}

// NewEngine constructs an engine over store.
func NewEngine(store docstore.Store) *Engine {
	return &Engine{store: store}
}

// Run evaluates p against collection.
func (e *Engine) Run(ctx context.Context, collection string, p Pipeline) ([]docstore.Document, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ctx, span := logging.StartSpan(ctx, "aggregate."+collection)
	defer span.End()

	if native, ok := e.store.(NativeRunner); ok {
		docs, err := native.RunPipeline(ctx, collection, p)
		if !errors.Is(err, ErrNotNative) {
			span.Set("native", true, "results", len(docs))
			span.Fail(err)
			return docs, err
		}
		logging.FromContext(ctx).Debug("evaluating pipeline in process", "collection", collection)
	}

	filter, opts, rest := pushdown(p)
	docs, err := e.store.Find(ctx, collection, filter, opts)
	if err != nil {
		span.Fail(err)
		return nil, fmt.Errorf("aggregate %s: %w", collection, err)
	}

	docs, err = e.apply(ctx, docs, rest)
	if err != nil {
		span.Fail(err)
		return nil, fmt.Errorf("aggregate %s: %w", collection, err)
	}
	docs = compact(docs)
	span.Set("stages", len(p), "results", len(docs))
	return docs, nil
}

// Count returns the number of documents in collection matching filter.
func (e *Engine) Count(ctx context.Context, collection string, filter docstore.Filter) (int64, error) {
	n, err := e.store.Count(ctx, collection, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func pushdown(p Pipeline) (docstore.Filter, docstore.FindOptions, Pipeline) {
	var (
		filter docstore.Filter
		opts   docstore.FindOptions
		i      int
	)
	if len(p) > 0 {
		if m, ok := p[0].(MatchStage); ok {
			filter = m.Filter
			i = 1
		}
	}

	var sawSkip, sawLimit bool
loop:
	for ; i < len(p); i++ {
		switch s := p[i].(type) {
		case SortStage:
			if sawSkip || sawLimit || opts.Sort != nil {
				break loop
			}
			opts.Sort = s.Keys
		case SkipStage:
			if sawSkip || sawLimit {
				break loop
			}
			opts.Skip = max(s.N, 0)
			sawSkip = true
		case LimitStage:
			if sawLimit || s.N <= 0 {
				break loop
			}
			opts.Limit = s.N
			sawLimit = true
		default:
			break loop
		}
	}
	return filter, opts, p[i:]
}

func (e *Engine) apply(ctx context.Context, docs []docstore.Document, stages Pipeline) ([]docstore.Document, error) {
	for _, stage := range stages {
		switch s := stage.(type) {
		case MatchStage:
			for i, doc := range docs {
				if doc != nil && !s.Filter.Matches(doc) {
					docs[i] = nil
				}
			}
		case JoinStage:
			if err := e.join(ctx, docs, s); err != nil {
				return nil, err
			}
		case FlattenStage:
			for _, doc := range docs {
				if doc != nil {
					docstore.Set(doc, s.Field, First(s.Field).Eval(doc))
				}
			}
		case ComputeStage:
			for _, doc := range docs {
				if doc != nil {
					docstore.Set(doc, s.Field, s.Expr.Eval(doc))
				}
			}
		case ProjectStage:
			for i, doc := range docs {
				if doc != nil {
					docs[i] = project(doc, s)
				}
			}
		case SortStage:
			docs = compact(docs)
			docstore.SortDocuments(docs, s.Keys)
		case SkipStage:
			docs = docstore.Window(compact(docs), s.N, 0)
		case LimitStage:
			docs = compact(docs)
			if s.N <= 0 {
				docs = []docstore.Document{}
			} else {
				docs = docstore.Window(docs, 0, s.N)
			}
		default:
			return nil, fmt.Errorf("%w: unknown stage %T", ErrInvalidPipeline, stage)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// join keeps docs index-aligned: sub-pipelines only hold per-document stages,
// so a filtered foreign document becomes nil rather than shifting the slice.
func (e *Engine) join(ctx context.Context, docs []docstore.Document, s JoinStage) error {
	var keys []any
	seen := make(map[string]struct{})
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		for _, v := range docstore.Values(doc, s.LocalField) {
			k := valueKey(v)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, v)
		}
	}

	var foreign []docstore.Document
	if len(keys) > 0 {
		var err error
		foreign, err = e.store.Find(ctx, s.From, docstore.Where(docstore.In(s.ForeignField, keys...)), docstore.FindOptions{})
		if err != nil {
			return fmt.Errorf("join %s: %w", s.From, err)
		}
	}

	byKey := make(map[string][]int)
	for i, f := range foreign {
		for _, v := range docstore.Values(f, s.ForeignField) {
			k := valueKey(v)
			byKey[k] = append(byKey[k], i)
		}
	}

	if len(s.Sub) > 0 && len(foreign) > 0 {
		var err error
		if foreign, err = e.apply(ctx, foreign, s.Sub); err != nil {
			return err
		}
	}

	for _, doc := range docs {
		if doc == nil {
			continue
		}
		joined := []any{}
		if s.Ordered {
			for _, v := range docstore.Values(doc, s.LocalField) {
				for _, i := range byKey[valueKey(v)] {
					if foreign[i] != nil {
						joined = append(joined, foreign[i].Clone())
						break
					}
				}
			}
		} else {
			hit := make(map[int]struct{})
			for _, v := range docstore.Values(doc, s.LocalField) {
				for _, i := range byKey[valueKey(v)] {
					hit[i] = struct{}{}
				}
			}
			for i, f := range foreign {
				if _, ok := hit[i]; ok && f != nil {
					joined = append(joined, f.Clone())
				}
			}
		}
		docstore.Set(doc, s.As, joined)
	}
	return nil
}

func project(doc docstore.Document, s ProjectStage) docstore.Document {
	out := doc
	if len(s.Include) > 0 {
		out = docstore.Document{}
		if id, ok := doc[docstore.IDField]; ok {
			out[docstore.IDField] = id
		}
		for _, field := range s.Include {
			if v, ok := docstore.Get(doc, field); ok {
				docstore.Set(out, field, v)
			}
		}
	}
	for _, field := range s.Exclude {
		docstore.Unset(out, field)
	}
	return out
}

func compact(docs []docstore.Document) []docstore.Document {
	out := docs[:0]
	for _, doc := range docs {
		if doc != nil {
			out = append(out, doc)
		}
	}
	if out == nil {
		return []docstore.Document{}
	}
	return out
}

func valueKey(v any) string {
	return fmt.Sprintf("%T:%v", v, v)
}
