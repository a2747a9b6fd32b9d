package auth

import (
	"context"
	"sync"

	"github.com/vidtube/backend/internal/models"
)

// NewInMemorySessionStore returns a SessionStore backed by an in-memory map.
func NewInMemorySessionStore(users ...models.User) *InMemorySessionStore {
	s := &InMemorySessionStore{users: make(map[string]models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

// InMemorySessionStore implements SessionStore for tests and local development.
type InMemorySessionStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// Put adds or replaces a user record.
func (s *InMemorySessionStore) Put(user models.User) {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
}

func (s *InMemorySessionStore) LoadUser(_ context.Context, userID string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return models.User{}, ErrUnknownUser
	}
	return user, nil
}

func (s *InMemorySessionStore) SaveRefreshToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return ErrUnknownUser
	}
	user.RefreshToken = token
	s.users[userID] = user
	return nil
}

func (s *InMemorySessionStore) SwapRefreshToken(_ context.Context, userID, presented, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return false, ErrUnknownUser
	}
	if user.RefreshToken != presented {
		return false, nil
	}
	user.RefreshToken = next
	s.users[userID] = user
	return true, nil
}

func (s *InMemorySessionStore) ClearRefreshToken(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return ErrUnknownUser
	}
	user.RefreshToken = ""
	s.users[userID] = user
	return nil
}

// RefreshToken reports the stored token for userID. Useful for tests.
func (s *InMemorySessionStore) RefreshToken(userID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[userID].RefreshToken
}
