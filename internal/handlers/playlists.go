package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/models"
)

// PlaylistHandler implements the playlist endpoints.
type PlaylistHandler struct {
	Playlists PlaylistStore
	Videos    VideoStore
	Views     ViewBuilder
	NowFunc   func() time.Time
}

type playlistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h PlaylistHandler) decode(w http.ResponseWriter, r *http.Request) (playlistRequest, error) {
	var req playlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return playlistRequest{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" {
		return playlistRequest{}, apperr.Validation("name is required")
	}
	return req, nil
}

// Create handles POST /api/v1/playlists.
func (h PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := h.decode(w, r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	now := time.Now().UTC()
	if h.NowFunc != nil {
		now = h.NowFunc().UTC()
	}
	playlist := models.Playlist{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Videos:      []string{},
		Owner:       mustUser(r).ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Playlists.Create(ctx, playlist); err != nil {
		respondError(ctx, w, apperr.Internal("failed to save playlist", err))
		return
	}
	respondOK(ctx, w, http.StatusCreated, playlist, "Playlist created successfully")
}

// Get handles GET /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlistID, err := pathID(r, "playlistId")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	view, err := h.Views.Playlist(ctx, playlistID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondOK(ctx, w, http.StatusOK, view, "Playlist fetched successfully")
}

// ListByUser handles GET /api/v1/playlists/user/{userId}.
func (h PlaylistHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := pathID(r, "userId")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	playlists, err := h.Playlists.ListByOwner(ctx, userID)
	if err != nil {
		respondError(ctx, w, apperr.Internal("failed to list playlists", err))
		return
	}
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	respondOK(ctx, w, http.StatusOK, playlists, "User playlists fetched successfully")
}

// Update handles PATCH /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := h.decode(w, r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	playlist, err := h.owned(ctx, r.PathValue("playlistId"), mustUser(r).ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	updated, err := h.Playlists.Update(ctx, playlist.ID, req.Name, req.Description)
	if err != nil {
		respondError(ctx, w, storeError(err, "playlist not found", ""))
		return
	}
	respondOK(ctx, w, http.StatusOK, updated, "Playlist updated successfully")
}

// Delete handles DELETE /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, err := h.owned(ctx, r.PathValue("playlistId"), mustUser(r).ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if err := h.Playlists.Delete(ctx, playlist.ID); err != nil {
		respondError(ctx, w, storeError(err, "playlist not found", ""))
		return
	}
	respondOK(ctx, w, http.StatusOK, struct{}{}, "Playlist deleted successfully")
}

// AddVideo handles PATCH /api/v1/playlists/add/{videoId}/{playlistId}.
// Adding a video twice keeps a single entry.
func (h PlaylistHandler) AddVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID, err := pathID(r, "videoId")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	playlist, err := h.owned(ctx, r.PathValue("playlistId"), mustUser(r).ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		respondError(ctx, w, storeError(err, "video not found", ""))
		return
	}
	updated, err := h.Playlists.AddVideo(ctx, playlist.ID, video.ID)
	if err != nil {
		respondError(ctx, w, storeError(err, "playlist not found", ""))
		return
	}
	respondOK(ctx, w, http.StatusOK, updated, "Video added to playlist")
}

// RemoveVideo handles PATCH /api/v1/playlists/remove/{videoId}/{playlistId}.
// The video itself need not exist any more.
func (h PlaylistHandler) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID, err := pathID(r, "videoId")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	playlist, err := h.owned(ctx, r.PathValue("playlistId"), mustUser(r).ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	updated, err := h.Playlists.RemoveVideo(ctx, playlist.ID, videoID)
	if err != nil {
		respondError(ctx, w, storeError(err, "playlist not found", ""))
		return
	}
	respondOK(ctx, w, http.StatusOK, updated, "Video removed from playlist")
}

func (h PlaylistHandler) owned(ctx context.Context, playlistID, userID string) (models.Playlist, error) {
	if err := checkID("playlistId", playlistID); err != nil {
		return models.Playlist{}, err
	}
	playlist, err := h.Playlists.FindByID(ctx, playlistID)
	if err != nil {
		return models.Playlist{}, storeError(err, "playlist not found", "")
	}
	if playlist.Owner != userID {
		return models.Playlist{}, apperr.Forbidden("only the owner can modify this playlist")
	}
	return playlist, nil
}
