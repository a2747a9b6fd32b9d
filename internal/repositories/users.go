package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
)

// UserRepository provides document-store persistence for users.
type UserRepository struct {
	store docstore.Store
}

// NewUserRepository constructs a user repository backed by store.
func NewUserRepository(store docstore.Store) *UserRepository {
	return &UserRepository{store: store}
}

// Create persists a new user. Duplicate usernames or emails yield ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	return wrap("insert user", r.store.InsertOne(ctx, models.UsersCollection, user.ToDocument()))
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "select user by id", docstore.ByID(id))
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findOne(ctx, "select user by username", docstore.Where(docstore.Eq("username", username)))
}

// FindByLogin looks a user up by email, then by username.
func (r *UserRepository) FindByLogin(ctx context.Context, email, username string) (models.User, error) {
	if email != "" {
		user, err := r.findOne(ctx, "select user by email", docstore.Where(docstore.Eq("email", email)))
		if err == nil || !errors.Is(err, ErrNotFound) || username == "" {
			return user, err
		}
	}
	return r.FindByUsername(ctx, username)
}

// UpdateDetails changes the profile fields and returns the updated user.
func (r *UserRepository) UpdateDetails(ctx context.Context, id, fullname, email string) (models.User, error) {
	matched, err := r.store.UpdateOne(ctx, models.UsersCollection, docstore.ByID(id), docstore.Update{
		Set: docstore.Document{"fullname": fullname, "email": email, "updatedAt": time.Now().UTC()},
	})
	if err := requireMatched("update user details", matched, err); err != nil {
		return models.User{}, err
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	matched, err := r.store.UpdateOne(ctx, models.UsersCollection, docstore.ByID(id), docstore.Update{
		Set: docstore.Document{"password": hash, "updatedAt": time.Now().UTC()},
	})
	return requireMatched("update user password", matched, err)
}

// ReplaceAvatar stores a new avatar location and returns the user with the
// previous location, so the caller can clean up the old file.
func (r *UserRepository) ReplaceAvatar(ctx context.Context, id, location string) (models.User, string, error) {
	return r.replaceImage(ctx, id, "avatar", location)
}

func (r *UserRepository) ReplaceCoverImage(ctx context.Context, id, location string) (models.User, string, error) {
	return r.replaceImage(ctx, id, "coverImage", location)
}

func (r *UserRepository) replaceImage(ctx context.Context, id, field, location string) (models.User, string, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return models.User{}, "", err
	}
	previous := current.Avatar
	if field == "coverImage" {
		previous = current.CoverImage
	}

	matched, err := r.store.UpdateOne(ctx, models.UsersCollection, docstore.ByID(id), docstore.Update{
		Set: docstore.Document{field: location, "updatedAt": time.Now().UTC()},
	})
	if err := requireMatched("update user "+field, matched, err); err != nil {
		return models.User{}, "", err
	}
	updated, err := r.FindByID(ctx, id)
	return updated, previous, err
}

// RecordWatch prepends videoID to the user's watch history.
func (r *UserRepository) RecordWatch(ctx context.Context, userID, videoID string) error {
	matched, err := r.store.UpdateOne(ctx, models.UsersCollection, docstore.ByID(userID), docstore.Update{
		Prepend: map[string]any{"watchHistory": videoID},
	})
	return requireMatched("record watch history", matched, err)
}

func (r *UserRepository) findOne(ctx context.Context, op string, filter docstore.Filter) (models.User, error) {
	doc, err := r.store.FindOne(ctx, models.UsersCollection, filter)
	if err != nil {
		return models.User{}, wrap(op, err)
	}
	return models.UserFromDocument(doc), nil
}
