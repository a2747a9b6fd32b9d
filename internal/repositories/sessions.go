package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
)

// UserSessionStore keeps the refresh token on the user document.
type UserSessionStore struct {
	store docstore.Store
}

var _ auth.SessionStore = (*UserSessionStore)(nil)

// NewUserSessionStore constructs a session store backed by the users collection.
func NewUserSessionStore(store docstore.Store) *UserSessionStore {
	return &UserSessionStore{store: store}
}

func (s *UserSessionStore) LoadUser(ctx context.Context, userID string) (models.User, error) {
	doc, err := s.store.FindOne(ctx, models.UsersCollection, docstore.ByID(userID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.User{}, auth.ErrUnknownUser
		}
		return models.User{}, fmt.Errorf("select session user: %w", err)
	}
	return models.UserFromDocument(doc), nil
}

// SaveRefreshToken overwrites whatever token is stored.
func (s *UserSessionStore) SaveRefreshToken(ctx context.Context, userID, token string) error {
	matched, err := s.store.UpdateOne(ctx, models.UsersCollection, docstore.ByID(userID), docstore.Update{
		Set: docstore.Document{"refreshToken": token},
	})
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	if matched == 0 {
		return auth.ErrUnknownUser
	}
	return nil
}

// SwapRefreshToken is a conditional write keyed on the presented token.
func (s *UserSessionStore) SwapRefreshToken(ctx context.Context, userID, presented, next string) (bool, error) {
	filter := docstore.ByID(userID).And(docstore.Eq("refreshToken", presented))
	matched, err := s.store.UpdateOne(ctx, models.UsersCollection, filter, docstore.Update{
		Set: docstore.Document{"refreshToken": next},
	})
	if err != nil {
		return false, fmt.Errorf("swap refresh token: %w", err)
	}
	return matched == 1, nil
}

func (s *UserSessionStore) ClearRefreshToken(ctx context.Context, userID string) error {
	matched, err := s.store.UpdateOne(ctx, models.UsersCollection, docstore.ByID(userID), docstore.Update{
		Unset: []string{"refreshToken"},
	})
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	if matched == 0 {
		return auth.ErrUnknownUser
	}
	return nil
}
