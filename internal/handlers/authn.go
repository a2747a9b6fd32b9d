package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

type userCtxKey struct{}

func withUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, user)
}

// currentUser returns the authenticated user placed in ctx by Authenticator.
func currentUser(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userCtxKey{}).(models.User)
	return user, ok
}

// Authenticator resolves the caller from an access token.
type Authenticator struct {
	Users    UserStore
	Sessions SessionManager
}

// Require rejects requests without a valid access token. The token is read
// from the accessToken cookie, then from a Bearer Authorization header.
func (a Authenticator) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		token := accessTokenFrom(r)
		if token == "" {
			respondError(ctx, w, apperr.Unauthorized("unauthorized request").WithReason("missing_token"))
			return
		}

		claims, err := a.Sessions.VerifyAccess(token)
		if err != nil {
			reason := "token_invalid"
			if errors.Is(err, auth.ErrTokenExpired) {
				reason = "token_expired"
			}
			logger.Warn("access token rejected", slog.String("reason", reason))
			respondError(ctx, w, apperr.Unauthorized("invalid access token").WithReason(reason).Wrap(err))
			return
		}

		user, err := a.Users.FindByID(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				respondError(ctx, w, apperr.NotFound("user not found").Wrap(err))
				return
			}
			respondError(ctx, w, apperr.Internal("failed to load user", err))
			return
		}

		ctx = logging.With(ctx, slog.String("user_id", user.ID))
		next(w, r.WithContext(withUser(ctx, user)))
	}
}

func accessTokenFrom(r *http.Request) string {
	if cookie, err := r.Cookie(accessCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// mustUser is used by handlers mounted behind Require.
func mustUser(r *http.Request) models.User {
	user, _ := currentUser(r.Context())
	return user
}
