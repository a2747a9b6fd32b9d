package repositories

import (
	"context"
	"time"

	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
)

// CommentRepository provides document-store persistence for comments.
type CommentRepository struct {
	store docstore.Store
}

func NewCommentRepository(store docstore.Store) *CommentRepository {
	return &CommentRepository{store: store}
}

func (r *CommentRepository) Create(ctx context.Context, comment models.Comment) error {
	return wrap("insert comment", r.store.InsertOne(ctx, models.CommentsCollection, comment.ToDocument()))
}

func (r *CommentRepository) FindByID(ctx context.Context, id string) (models.Comment, error) {
	doc, err := r.store.FindOne(ctx, models.CommentsCollection, docstore.ByID(id))
	if err != nil {
		return models.Comment{}, wrap("select comment", err)
	}
	return models.CommentFromDocument(doc), nil
}

func (r *CommentRepository) UpdateContent(ctx context.Context, id, content string) (models.Comment, error) {
	matched, err := r.store.UpdateOne(ctx, models.CommentsCollection, docstore.ByID(id), docstore.Update{
		Set: docstore.Document{"content": content, "updatedAt": time.Now().UTC()},
	})
	if err := requireMatched("update comment", matched, err); err != nil {
		return models.Comment{}, err
	}
	return r.FindByID(ctx, id)
}

func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	deleted, err := r.store.DeleteOne(ctx, models.CommentsCollection, docstore.ByID(id))
	return requireMatched("delete comment", deleted, err)
}
