package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

const minPasswordLength = 8

// UserHandler implements account, session and channel endpoints.
type UserHandler struct {
	Users    UserStore
	Sessions SessionManager
	Views    ViewBuilder
	Uploads  Uploads
	Janitor  BlobJanitor
	Cookies  CookiePolicy
	Limiter  RateLimiter
	NowFunc  func() time.Time
}

type registerRequest struct {
	Fullname string `json:"fullname"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *registerRequest) normalize() {
	req.Fullname = strings.TrimSpace(req.Fullname)
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
}

func (req registerRequest) validate() error {
	if req.Fullname == "" || req.Username == "" || req.Email == "" || req.Password == "" {
		return apperr.Validation("All fields are required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return apperr.Validation("invalid email address")
	}
	if len(req.Password) < minPasswordLength {
		return apperr.Validation("password must be at least 8 characters")
	}
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateDetailsRequest struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
}

type sessionResponse struct {
	User         *models.User `json:"user,omitempty"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// Register handles POST /api/v1/users/register. It accepts JSON, or a
// multipart form carrying optional avatar and coverImage files.
func (h UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req registerRequest
	if isMultipart(r) {
		if err := h.Uploads.parse(w, r); err != nil {
			respondError(ctx, w, err)
			return
		}
		defer cleanupForm(r)
		req = registerRequest{
			Fullname: r.FormValue("fullname"),
			Username: r.FormValue("username"),
			Email:    r.FormValue("email"),
			Password: r.FormValue("password"),
		}
	} else if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	req.normalize()
	if err := req.validate(); err != nil {
		respondError(ctx, w, err)
		return
	}

	if _, err := h.Users.FindByLogin(ctx, req.Email, req.Username); err == nil {
		logger.Warn("register existing account", slog.String("username", req.Username))
		respondError(ctx, w, apperr.Conflict("Email or Username already registered"))
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		respondError(ctx, w, apperr.Internal("unable to verify existing accounts", err))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(ctx, w, apperr.Internal("failed to secure password", err))
		return
	}

	var uploaded []string
	avatar, _, err := h.Uploads.save(ctx, r, "avatar", media.KindAvatar)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if avatar != "" {
		uploaded = append(uploaded, avatar)
	}
	cover, _, err := h.Uploads.save(ctx, r, "coverImage", media.KindCover)
	if err != nil {
		h.discard(uploaded...)
		respondError(ctx, w, err)
		return
	}
	if cover != "" {
		uploaded = append(uploaded, cover)
	}

	now := h.now()
	user := models.User{
		ID:         uuid.NewString(),
		Username:   req.Username,
		Email:      req.Email,
		Fullname:   req.Fullname,
		Avatar:     avatar,
		CoverImage: cover,
		Password:   string(hashed),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.Users.Create(ctx, user); err != nil {
		h.discard(uploaded...)
		respondError(ctx, w, storeError(err, "user not found", "Email or Username already registered"))
		return
	}

	logger.Info("user registered", slog.String("user_id", user.ID))
	respondOK(ctx, w, http.StatusCreated, user, "User registered successfully")
}

// Login handles POST /api/v1/users/login.
func (h UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if throttled(w, r, h.Limiter, "login", "too many login attempts") {
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if req.Email == "" && req.Username == "" {
		respondError(ctx, w, apperr.Validation("username or email is required"))
		return
	}
	if req.Password == "" {
		respondError(ctx, w, apperr.Validation("password is required"))
		return
	}

	user, err := h.Users.FindByLogin(ctx, req.Email, req.Username)
	if err != nil {
		respondError(ctx, w, storeError(err, "User does not exist", ""))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", slog.String("user_id", user.ID))
		respondError(ctx, w, apperr.Unauthorized("Invalid user credentials").WithReason("bad_password"))
		return
	}

	tokens, err := h.Sessions.Rotate(ctx, user.ID)
	if err != nil {
		respondError(ctx, w, apperr.Internal("failed to create session", err))
		return
	}

	h.Cookies.setSession(w, tokens)
	respondOK(ctx, w, http.StatusOK, sessionResponse{
		User:         &user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "User logged In Successfully")
}

// Logout handles POST /api/v1/users/logout.
func (h UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := mustUser(r)

	if err := h.Sessions.Revoke(ctx, user.ID); err != nil {
		respondError(ctx, w, apperr.Internal("failed to end session", err))
		return
	}
	h.Cookies.clearSession(w)
	respondOK(ctx, w, http.StatusOK, struct{}{}, "User logged Out")
}

// RefreshToken handles POST /api/v1/users/refresh-token. The refresh token is
// read from its cookie, falling back to the request body.
func (h UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if throttled(w, r, h.Limiter, "refresh", "too many refresh attempts") {
		return
	}

	presented := ""
	if cookie, err := r.Cookie(refreshCookie); err == nil {
		presented = cookie.Value
	}
	if presented == "" && r.ContentLength != 0 {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(ctx, w, err)
			return
		}
		presented = strings.TrimSpace(req.RefreshToken)
	}
	if presented == "" {
		respondError(ctx, w, apperr.MissingCredential("unauthorized request").WithReason("missing_refresh_token"))
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, presented)
	if err != nil {
		var appErr *apperr.Error
		switch {
		case errors.Is(err, auth.ErrRefreshReused):
			appErr = apperr.Unauthorized("Refresh token is expired or used").WithReason("refresh_reused")
		case errors.Is(err, auth.ErrTokenExpired):
			appErr = apperr.Unauthorized("Refresh token is expired or used").WithReason("token_expired")
		case errors.Is(err, auth.ErrTokenInvalid):
			appErr = apperr.Unauthorized("invalid refresh token").WithReason("token_invalid")
		default:
			respondError(ctx, w, apperr.Internal("failed to refresh session", err))
			return
		}
		logger.Warn("refresh rejected", slog.String("reason", appErr.Reason))
		respondError(ctx, w, appErr.Wrap(err))
		return
	}

	h.Cookies.setSession(w, tokens)
	respondOK(ctx, w, http.StatusOK, sessionResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "Access token refreshed")
}

// ChangePassword handles POST /api/v1/users/change-password.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := mustUser(r)

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		respondError(ctx, w, apperr.Validation("oldPassword and newPassword are required"))
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		respondError(ctx, w, apperr.Validation("password must be at least 8 characters"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		respondError(ctx, w, apperr.Validation("Invalid old password"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(ctx, w, apperr.Internal("failed to secure password", err))
		return
	}
	if err := h.Users.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		respondError(ctx, w, storeError(err, "user not found", ""))
		return
	}
	respondOK(ctx, w, http.StatusOK, struct{}{}, "Password changed successfully")
}

// CurrentUser handles GET /api/v1/users/get-user.
func (h UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	respondOK(r.Context(), w, http.StatusOK, mustUser(r), "User fetched successfully")
}

// UpdateDetails handles PATCH /api/v1/users/update-details.
func (h UserHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := mustUser(r)

	var req updateDetailsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	req.Fullname = strings.TrimSpace(req.Fullname)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Fullname == "" || req.Email == "" {
		respondError(ctx, w, apperr.Validation("All fields are required"))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(ctx, w, apperr.Validation("invalid email address"))
		return
	}

	updated, err := h.Users.UpdateDetails(ctx, user.ID, req.Fullname, req.Email)
	if err != nil {
		respondError(ctx, w, storeError(err, "user not found", "Email already registered"))
		return
	}
	respondOK(ctx, w, http.StatusOK, updated, "Account details updated successfully")
}

// UpdateAvatar handles PATCH /api/v1/users/avatar.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "avatar", media.KindAvatar, h.Users.ReplaceAvatar, "Avatar image updated successfully")
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "coverImage", media.KindCover, h.Users.ReplaceCoverImage, "Cover image updated successfully")
}

type replaceFunc func(ctx context.Context, id, location string) (models.User, string, error)

func (h UserHandler) replaceImage(w http.ResponseWriter, r *http.Request, field string, kind media.Kind, replace replaceFunc, message string) {
	ctx := r.Context()
	user := mustUser(r)

	if err := h.Uploads.parse(w, r); err != nil {
		respondError(ctx, w, err)
		return
	}
	defer cleanupForm(r)

	location, ok, err := h.Uploads.save(ctx, r, field, kind)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if !ok {
		respondError(ctx, w, apperr.Validation(field+" file is missing"))
		return
	}

	updated, previous, err := replace(ctx, user.ID, location)
	if err != nil {
		h.discard(location)
		respondError(ctx, w, storeError(err, "user not found", ""))
		return
	}
	if previous != "" && previous != location {
		h.discard(previous)
	}
	respondOK(ctx, w, http.StatusOK, updated, message)
}

// ChannelProfile handles GET /api/v1/users/c/{username}.
func (h UserHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile, err := h.Views.ChannelProfile(ctx, r.PathValue("username"), mustUser(r).ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondOK(ctx, w, http.StatusOK, profile, "User channel fetched successfully")
}

// WatchHistory handles GET /api/v1/users/history.
func (h UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	history, err := h.Views.WatchHistory(ctx, mustUser(r).ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondOK(ctx, w, http.StatusOK, history, "Watch history fetched successfully")
}

func (h UserHandler) discard(locations ...string) {
	if h.Janitor != nil && len(locations) > 0 {
		h.Janitor.Discard(locations...)
	}
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc().UTC()
	}
	return time.Now().UTC()
}
