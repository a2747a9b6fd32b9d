package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vidtube/backend/internal/models"
)

func newTestService(t *testing.T, users ...models.User) (*TokenService, *InMemorySessionStore) {
	t.Helper()
	store := NewInMemorySessionStore(users...)
	svc, err := NewTokenService(Config{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}, store)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	return svc, store
}

var alice = models.User{ID: "user-1", Username: "alice", Email: "alice@example.com", Fullname: "Alice A"}

func TestRotateAndRefresh(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, alice)

	first, err := svc.Rotate(ctx, alice.ID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if store.RefreshToken(alice.ID) != first.RefreshToken {
		t.Fatal("expected refresh token to be persisted")
	}

	second, err := svc.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("expected a new refresh token")
	}
	if store.RefreshToken(alice.ID) != second.RefreshToken {
		t.Fatal("expected stored token to be replaced")
	}

	if _, err := svc.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrRefreshReused) {
		t.Fatalf("expected ErrRefreshReused for reused token, got %v", err)
	}
}

func TestRefreshConcurrentUseSucceedsOnce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, alice)

	tokens, err := svc.Rotate(ctx, alice.ID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(ctx, tokens.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case !errors.Is(err, ErrRefreshReused):
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful refresh, got %d", successes)
	}
}

func TestRefreshExpired(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, alice)

	tokens, err := svc.Rotate(ctx, alice.ID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}

	svc.WithNowFunc(func() time.Time { return time.Now().Add(2 * time.Hour) })
	if _, err := svc.Refresh(ctx, tokens.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestRefreshRejectsAccessTokenAndGarbage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, alice)

	tokens, err := svc.Rotate(ctx, alice.ID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := svc.Refresh(ctx, tokens.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for access token, got %v", err)
	}
	if _, err := svc.Refresh(ctx, "not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage, got %v", err)
	}
	if _, err := svc.Refresh(ctx, ""); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for empty token, got %v", err)
	}
}

func TestRefreshUnknownSubject(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	token, _, err := svc.IssueRefreshToken("ghost")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if _, err := svc.Refresh(ctx, token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for unknown subject, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, alice)

	tokens, err := svc.Rotate(ctx, alice.ID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if err := svc.Revoke(ctx, alice.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := svc.Revoke(ctx, alice.ID); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if store.RefreshToken(alice.ID) != "" {
		t.Fatal("expected refresh token to be cleared")
	}
	if _, err := svc.Refresh(ctx, tokens.RefreshToken); !errors.Is(err, ErrRefreshReused) {
		t.Fatalf("expected ErrRefreshReused after revoke, got %v", err)
	}
}

func TestAccessTokenClaims(t *testing.T) {
	svc, _ := newTestService(t)

	token, expires, err := svc.IssueAccessToken(alice)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if time.Until(expires) > time.Minute {
		t.Fatalf("unexpected expiry %v", expires)
	}

	claims, err := svc.VerifyAccess(token)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.Subject != alice.ID || claims.Username != "alice" || claims.Fullname != "Alice A" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	refresh, _, err := svc.IssueRefreshToken(alice.ID)
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if _, err := svc.VerifyAccess(refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected refresh token to fail access verification, got %v", err)
	}
}

func TestTokensIssuedInSameInstantDiffer(t *testing.T) {
	svc, _ := newTestService(t)
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.WithNowFunc(func() time.Time { return fixed })

	a, _, err := svc.IssueRefreshToken(alice.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	b, _, err := svc.IssueRefreshToken(alice.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct tokens")
	}
}

func TestRotateUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Rotate(context.Background(), "ghost"); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}
