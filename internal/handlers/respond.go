package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/repositories"
)

const maxJSONBodyBytes = 1 << 20

// envelope is the body of every successful response.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// errorEnvelope is the body of every failed response.
type errorEnvelope struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}

func respondOK(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	respondJSON(ctx, w, status, envelope{StatusCode: status, Data: data, Message: message, Success: true})
}

// respondError renders err as an error envelope. Errors that are not
// *apperr.Error are reported as internal errors without leaking details.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	appErr := apperr.From(err)
	logger := logging.FromContext(ctx)
	switch {
	case appErr.Status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", appErr.Status, "message", appErr.Message, "error", appErr.Err)
	default:
		logger.Warn("request returned client error", "status", appErr.Status, "message", appErr.Message, "reason", appErr.Reason)
	}

	details := appErr.Details
	if details == nil {
		details = []string{}
	}
	respondJSON(ctx, w, appErr.Status, errorEnvelope{
		StatusCode: appErr.Status,
		Message:    appErr.Message,
		Success:    false,
		Errors:     details,
	})
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperr.Validation("request body too large")
		case errors.Is(err, io.EOF):
			return apperr.Validation("request body is required")
		default:
			return apperr.Validation("invalid request body", err.Error())
		}
	}
	return nil
}

// storeError translates repository sentinels into API errors.
func storeError(err error, notFound, conflict string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return apperr.NotFound(notFound).Wrap(err)
	case errors.Is(err, repositories.ErrConflict):
		return apperr.Conflict(conflict).Wrap(err)
	}
	return err
}

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// pagination parses 1-based page and limit query parameters.
func pagination(r *http.Request) (int64, int64, error) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	limit, err := queryInt(r, "limit", defaultPageLimit)
	if err != nil {
		return 0, 0, err
	}
	if limit < 1 || limit > maxPageLimit {
		return 0, 0, apperr.Validation("limit must be between 1 and " + strconv.Itoa(maxPageLimit))
	}
	if page < 1 || page-1 > math.MaxInt64/limit {
		return 0, 0, apperr.Validation("page out of range")
	}
	return page, limit, nil
}

// pathID returns the named path value once it parses as a UUID.
func pathID(r *http.Request, name string) (string, error) {
	id := r.PathValue(name)
	if err := checkID(name, id); err != nil {
		return "", err
	}
	return id, nil
}

func checkID(name, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.Validation("invalid " + name).Wrap(err)
	}
	return nil
}

func queryInt(r *http.Request, key string, fallback int64) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.Validation(key + " must be an integer")
	}
	return v, nil
}
