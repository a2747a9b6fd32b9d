package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
)

// VideoChanges lists the editable video fields; nil means unchanged.
type VideoChanges struct {
	Title       *string
	Description *string
	Thumbnail   *string
}

// VideoRepository provides document-store persistence for videos.
type VideoRepository struct {
	store docstore.Store
}

func NewVideoRepository(store docstore.Store) *VideoRepository {
	return &VideoRepository{store: store}
}

func (r *VideoRepository) Create(ctx context.Context, video models.Video) error {
	return wrap("insert video", r.store.InsertOne(ctx, models.VideosCollection, video.ToDocument()))
}

func (r *VideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	doc, err := r.store.FindOne(ctx, models.VideosCollection, docstore.ByID(id))
	if err != nil {
		return models.Video{}, wrap("select video", err)
	}
	return models.VideoFromDocument(doc), nil
}

// Update applies changes and returns the updated video.
func (r *VideoRepository) Update(ctx context.Context, id string, changes VideoChanges) (models.Video, error) {
	set := docstore.Document{"updatedAt": time.Now().UTC()}
	if changes.Title != nil {
		set["title"] = *changes.Title
	}
	if changes.Description != nil {
		set["description"] = *changes.Description
	}
	if changes.Thumbnail != nil {
		set["thumbnail"] = *changes.Thumbnail
	}
	matched, err := r.store.UpdateOne(ctx, models.VideosCollection, docstore.ByID(id), docstore.Update{Set: set})
	if err := requireMatched("update video", matched, err); err != nil {
		return models.Video{}, err
	}
	return r.FindByID(ctx, id)
}

func (r *VideoRepository) Delete(ctx context.Context, id string) error {
	deleted, err := r.store.DeleteOne(ctx, models.VideosCollection, docstore.ByID(id))
	return requireMatched("delete video", deleted, err)
}

func (r *VideoRepository) IncrementViews(ctx context.Context, id string) error {
	matched, err := r.store.UpdateOne(ctx, models.VideosCollection, docstore.ByID(id), docstore.Update{
		Inc: map[string]int64{"views": 1},
	})
	return requireMatched("increment video views", matched, err)
}

// TogglePublish flips isPublished with a conditional write on the value read.
func (r *VideoRepository) TogglePublish(ctx context.Context, id string) (models.Video, error) {
	const attempts = 3
	for i := 0; i < attempts; i++ {
		current, err := r.FindByID(ctx, id)
		if err != nil {
			return models.Video{}, err
		}
		filter := docstore.ByID(id).And(docstore.Eq("isPublished", current.IsPublished))
		matched, err := r.store.UpdateOne(ctx, models.VideosCollection, filter, docstore.Update{
			Set: docstore.Document{"isPublished": !current.IsPublished, "updatedAt": time.Now().UTC()},
		})
		if err != nil {
			return models.Video{}, wrap("toggle publish", err)
		}
		if matched == 1 {
			current.IsPublished = !current.IsPublished
			return current, nil
		}
	}
	return models.Video{}, fmt.Errorf("toggle publish: %w", ErrConflict)
}
