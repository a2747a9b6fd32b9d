package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
)

var (
	// ErrTokenInvalid indicates a malformed token, a bad signature or an unknown subject.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired indicates a correctly signed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrRefreshReused indicates a validly signed refresh token that is no
	// longer the stored one: it was rotated, revoked or raced.
	ErrRefreshReused = errors.New("refresh token is expired or used")
	// ErrUnknownUser is returned by SessionStore implementations for missing users.
	ErrUnknownUser = errors.New("user not found")
)

// SessionStore persists the single valid refresh token of each user.
type SessionStore interface {
	LoadUser(ctx context.Context, userID string) (models.User, error)
	SaveRefreshToken(ctx context.Context, userID, token string) error
	// SwapRefreshToken replaces presented with next only if presented is
	// still the stored value, reporting whether the swap happened.
	SwapRefreshToken(ctx context.Context, userID, presented, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, userID string) error
}

// Config holds signing material and lifetimes.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// AccessClaims are carried by access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Email    string `json:"email"`
	Fullname string `json:"fullname"`
}

type refreshClaims struct {
	jwt.RegisteredClaims
}

// TokenService issues and verifies access and refresh tokens.
type TokenService struct {
	cfg   Config
	store SessionStore
	now   func() time.Time
}

// NewTokenService validates cfg and returns a service backed by store.
func NewTokenService(cfg Config, store SessionStore) (*TokenService, error) {
	if store == nil {
		return nil, errors.New("auth: session store must not be nil")
	}
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("auth: access and refresh secrets are required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 10 * 24 * time.Hour
	}
	return &TokenService{cfg: cfg, store: store, now: time.Now}, nil
}

// WithNowFunc allows tests to override the time source.
func (s *TokenService) WithNowFunc(now func() time.Time) {
	s.now = now
}

// IssueAccessToken signs a short-lived token describing user.
func (s *TokenService) IssueAccessToken(user models.User) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.cfg.AccessTTL)
	claims := AccessClaims{
		RegisteredClaims: s.registered(user.ID, now, expires),
		Username:         user.Username,
		Email:            user.Email,
		Fullname:         user.Fullname,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.AccessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, expires, nil
}

// IssueRefreshToken signs a long-lived token for userID. It is not persisted.
func (s *TokenService) IssueRefreshToken(userID string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.cfg.RefreshTTL)
	claims := refreshClaims{RegisteredClaims: s.registered(userID, now, expires)}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.RefreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return token, expires, nil
}

// registered carries a random jti so that two tokens issued within the same
// second still differ.
func (s *TokenService) registered(subject string, now, expires time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    s.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
}

// VerifyAccess checks the signature and expiry of an access token.
func (s *TokenService) VerifyAccess(token string) (AccessClaims, error) {
	var claims AccessClaims
	if err := s.parse(token, &claims, s.cfg.AccessSecret); err != nil {
		return AccessClaims{}, err
	}
	return claims, nil
}

// VerifyRefresh checks the signature and expiry of presented and that it is
// byte-equal to the refresh token stored for its subject.
func (s *TokenService) VerifyRefresh(ctx context.Context, presented string) (models.User, error) {
	var claims refreshClaims
	if err := s.parse(presented, &claims, s.cfg.RefreshSecret); err != nil {
		return models.User{}, err
	}

	user, err := s.store.LoadUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			return models.User{}, fmt.Errorf("%w: unknown subject", ErrTokenInvalid)
		}
		return models.User{}, fmt.Errorf("load session user: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(presented)) != 1 {
		return models.User{}, ErrRefreshReused
	}
	return user, nil
}

// Rotate issues a fresh token pair for userID and unconditionally stores the
// new refresh token, invalidating any previous one.
func (s *TokenService) Rotate(ctx context.Context, userID string) (models.SessionTokens, error) {
	user, err := s.store.LoadUser(ctx, userID)
	if err != nil {
		return models.SessionTokens{}, err
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if err := s.store.SaveRefreshToken(ctx, user.ID, tokens.RefreshToken); err != nil {
		return models.SessionTokens{}, fmt.Errorf("persist refresh token: %w", err)
	}
	metrics.RecordTokenEvent("issued")
	return tokens, nil
}

// Refresh exchanges a valid refresh token for a new pair. The stored token is
// replaced with a compare-and-swap, so of two concurrent refreshes with the
// same token exactly one succeeds.
func (s *TokenService) Refresh(ctx context.Context, presented string) (models.SessionTokens, error) {
	user, err := s.VerifyRefresh(ctx, presented)
	if err != nil {
		if errors.Is(err, ErrRefreshReused) {
			metrics.RecordTokenEvent("reuse_rejected")
		}
		return models.SessionTokens{}, err
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return models.SessionTokens{}, err
	}

	swapped, err := s.store.SwapRefreshToken(ctx, user.ID, presented, tokens.RefreshToken)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("persist refresh token: %w", err)
	}
	if !swapped {
		metrics.RecordTokenEvent("reuse_rejected")
		return models.SessionTokens{}, ErrRefreshReused
	}
	metrics.RecordTokenEvent("refreshed")
	return tokens, nil
}

// Revoke clears the stored refresh token. Revoking twice is not an error.
func (s *TokenService) Revoke(ctx context.Context, userID string) error {
	if err := s.store.ClearRefreshToken(ctx, userID); err != nil && !errors.Is(err, ErrUnknownUser) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	metrics.RecordTokenEvent("revoked")
	return nil
}

func (s *TokenService) issuePair(user models.User) (models.SessionTokens, error) {
	access, accessExp, err := s.IssueAccessToken(user)
	if err != nil {
		return models.SessionTokens{}, err
	}
	refresh, refreshExp, err := s.IssueRefreshToken(user.ID)
	if err != nil {
		return models.SessionTokens{}, err
	}
	return models.SessionTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *TokenService) parse(token string, claims jwt.Claims, secret []byte) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return ErrTokenInvalid
	}
	if sub, _ := claims.GetSubject(); sub == "" {
		return fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return nil
}
