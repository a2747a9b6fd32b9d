// Package views builds the denormalized read models served by the API. Each
// view is an aggregation pipeline over the document store whose result is
// decoded into a typed struct.
package views

import (
	"context"
	"time"

	"github.com/vidtube/backend/internal/aggregate"
	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
)

// Builder runs view pipelines through an aggregation engine.
type Builder struct {
	engine *aggregate.Engine
}

func NewBuilder(engine *aggregate.Engine) *Builder {
	return &Builder{engine: engine}
}

// Page is a window over an ordered result set.
type Page[T any] struct {
	Items       []T   `json:"items"`
	Page        int64 `json:"page"`
	Limit       int64 `json:"limit"`
	TotalCount  int64 `json:"totalCount"`
	TotalPages  int64 `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
}

func newPage[T any](items []T, page, limit, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	p := Page[T]{Items: items, Page: page, Limit: limit, TotalCount: total}
	if limit > 0 {
		p.TotalPages = (total + limit - 1) / limit
		p.HasNextPage = page < p.TotalPages
	}
	return p
}

// VideoSummary is a video with its owner resolved to a public profile. Owner
// is nil when the owning account no longer exists.
type VideoSummary struct {
	ID          string                `json:"_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	VideoFile   string                `json:"videoFile"`
	Thumbnail   string                `json:"thumbnail"`
	Duration    float64               `json:"duration"`
	Views       int64                 `json:"views"`
	IsPublished bool                  `json:"isPublished"`
	Owner       *models.PublicProfile `json:"owner"`
	CreatedAt   time.Time             `json:"createdAt"`
}

func videoSummaryFromDocument(doc docstore.Document) VideoSummary {
	return VideoSummary{
		ID:          doc.ID(),
		Title:       doc.String("title"),
		Description: doc.String("description"),
		VideoFile:   doc.String("videoFile"),
		Thumbnail:   doc.String("thumbnail"),
		Duration:    doc.Float("duration"),
		Views:       doc.Int("views"),
		IsPublished: doc.Bool("isPublished"),
		Owner:       models.PublicProfileFromDocument(doc.Doc("owner")),
		CreatedAt:   doc.Time("createdAt"),
	}
}

// joinOwner resolves the owner id of each document to a public profile.
func joinOwner(field string) []aggregate.Stage {
	return []aggregate.Stage{
		aggregate.Join(models.UsersCollection, field, docstore.IDField, field, aggregate.Project(models.PublicProfileFields...)),
		aggregate.FlattenOne(field),
	}
}

func (b *Builder) run(ctx context.Context, collection string, stages ...aggregate.Stage) ([]docstore.Document, error) {
	docs, err := b.engine.Run(ctx, collection, aggregate.Pipeline(stages))
	if err != nil {
		return nil, apperr.Internal("failed to build view", err)
	}
	return docs, nil
}

func (b *Builder) count(ctx context.Context, collection string, filter docstore.Filter) (int64, error) {
	n, err := b.engine.Count(ctx, collection, filter)
	if err != nil {
		return 0, apperr.Internal("failed to count "+collection, err)
	}
	return n, nil
}

func stages(groups ...[]aggregate.Stage) []aggregate.Stage {
	var out []aggregate.Stage
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
