package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/views"
)

// VideoHandler implements the video endpoints.
type VideoHandler struct {
	Videos  VideoStore
	Users   UserStore
	Views   ViewBuilder
	Stats   StatsProvider
	Uploads Uploads
	Prober  DurationProber
	Janitor BlobJanitor
	NowFunc func() time.Time
}

type updateVideoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// Feed handles GET /api/v1/videos.
func (h VideoHandler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, limit, err := pagination(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	query := r.URL.Query()
	ownerID := strings.TrimSpace(query.Get("userId"))
	if ownerID != "" {
		if err := checkID("userId", ownerID); err != nil {
			respondError(ctx, w, err)
			return
		}
	}
	desc := true
	switch strings.ToLower(strings.TrimSpace(query.Get("sortType"))) {
	case "", "desc":
	case "asc":
		desc = false
	default:
		respondError(ctx, w, apperr.Validation("sortType must be asc or desc"))
		return
	}

	feed, err := h.Views.VideoFeed(ctx, views.FeedQuery{
		Page:    page,
		Limit:   limit,
		OwnerID: ownerID,
		SortBy:  strings.TrimSpace(query.Get("sortBy")),
		Desc:    desc,
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondOK(ctx, w, http.StatusOK, feed, "Videos fetched successfully")
}

// Publish handles POST /api/v1/videos with a multipart form carrying title,
// description, videoFile and thumbnail.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	user := mustUser(r)

	if err := h.Uploads.parse(w, r); err != nil {
		respondError(ctx, w, err)
		return
	}
	defer cleanupForm(r)

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" || description == "" {
		respondError(ctx, w, apperr.Validation("title and description are required"))
		return
	}
	if _, ok := formFile(r, "thumbnail"); !ok {
		respondError(ctx, w, apperr.Validation("thumbnail file is required"))
		return
	}

	path, filename, cleanup, err := spool(r, "videoFile")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	defer cleanup()

	var duration float64
	if h.Prober != nil {
		duration, err = h.Prober.Duration(ctx, path)
		if err != nil {
			logger.Warn("video probe failed", slog.String("error", err.Error()))
			respondError(ctx, w, apperr.Validation("unable to read video file").Wrap(err))
			return
		}
	}

	videoLocation, err := h.Uploads.saveFile(ctx, path, filename, media.KindVideo)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	thumbnail, _, err := h.Uploads.save(ctx, r, "thumbnail", media.KindThumbnail)
	if err != nil {
		h.discard(videoLocation)
		respondError(ctx, w, err)
		return
	}

	now := h.now()
	video := models.Video{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		VideoFile:   videoLocation,
		Thumbnail:   thumbnail,
		Duration:    duration,
		IsPublished: true,
		Owner:       user.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Videos.Create(ctx, video); err != nil {
		h.discard(videoLocation, thumbnail)
		respondError(ctx, w, apperr.Internal("failed to save video", err))
		return
	}
	h.invalidate(video.Owner)

	logger.Info("video published", slog.String("video_id", video.ID), slog.Float64("duration", duration))
	respondOK(ctx, w, http.StatusCreated, video, "Video published successfully")
}

// Get handles GET /api/v1/videos/{videoId}. Viewing a video counts a view and
// records it in the viewer's watch history. Unpublished videos are visible to
// their owner only.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	user := mustUser(r)
	videoID, err := pathID(r, "videoId")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		respondError(ctx, w, storeError(err, "video not found", ""))
		return
	}
	if !video.IsPublished && video.Owner != user.ID {
		respondError(ctx, w, apperr.NotFound("video not found"))
		return
	}

	if err := h.Videos.IncrementViews(ctx, videoID); err != nil {
		respondError(ctx, w, storeError(err, "video not found", ""))
		return
	}
	if err := h.Users.RecordWatch(ctx, user.ID, videoID); err != nil {
		logger.Warn("record watch history failed", slog.String("video_id", videoID), slog.String("error", err.Error()))
	}
	h.invalidate(video.Owner)

	detail, err := h.Views.VideoDetail(ctx, videoID, user.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondOK(ctx, w, http.StatusOK, detail, "Video fetched successfully")
}

// Update handles PATCH /api/v1/videos/{videoId}. The body is JSON, or a
// multipart form that may also replace the thumbnail.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := mustUser(r)

	var req updateVideoRequest
	multipartForm := isMultipart(r)
	if multipartForm {
		if err := h.Uploads.parse(w, r); err != nil {
			respondError(ctx, w, err)
			return
		}
		defer cleanupForm(r)
		if values, ok := r.MultipartForm.Value["title"]; ok && len(values) > 0 {
			req.Title = &values[0]
		}
		if values, ok := r.MultipartForm.Value["description"]; ok && len(values) > 0 {
			req.Description = &values[0]
		}
	} else if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	changes := repositories.VideoChanges{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			respondError(ctx, w, apperr.Validation("title must not be empty"))
			return
		}
		changes.Title = &title
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		changes.Description = &description
	}
	_, hasThumbnail := formFile(r, "thumbnail")
	if changes.Title == nil && changes.Description == nil && !hasThumbnail {
		respondError(ctx, w, apperr.Validation("nothing to update", "provide title, description or thumbnail"))
		return
	}

	video, err := h.ownedVideo(ctx, r.PathValue("videoId"), user.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if hasThumbnail {
		location, _, err := h.Uploads.save(ctx, r, "thumbnail", media.KindThumbnail)
		if err != nil {
			respondError(ctx, w, err)
			return
		}
		changes.Thumbnail = &location
	}

	updated, err := h.Videos.Update(ctx, video.ID, changes)
	if err != nil {
		if changes.Thumbnail != nil {
			h.discard(*changes.Thumbnail)
		}
		respondError(ctx, w, storeError(err, "video not found", ""))
		return
	}
	if changes.Thumbnail != nil && video.Thumbnail != "" {
		h.discard(video.Thumbnail)
	}
	respondOK(ctx, w, http.StatusOK, updated, "Video updated successfully")
}

// Delete handles DELETE /api/v1/videos/{videoId}. Comments, likes and
// playlist entries that reference the video are left in place.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := mustUser(r)

	video, err := h.ownedVideo(ctx, r.PathValue("videoId"), user.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if err := h.Videos.Delete(ctx, video.ID); err != nil {
		respondError(ctx, w, storeError(err, "video not found", ""))
		return
	}
	h.discard(video.VideoFile, video.Thumbnail)
	h.invalidate(video.Owner)
	respondOK(ctx, w, http.StatusOK, struct{}{}, "Video deleted successfully")
}

// TogglePublish handles PATCH /api/v1/videos/toggle/publish/{videoId}.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := mustUser(r)

	video, err := h.ownedVideo(ctx, r.PathValue("videoId"), user.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	updated, err := h.Videos.TogglePublish(ctx, video.ID)
	if err != nil {
		respondError(ctx, w, storeError(err, "video not found", "concurrent publish update, retry"))
		return
	}
	respondOK(ctx, w, http.StatusOK, map[string]bool{"isPublished": updated.IsPublished}, "Publish status toggled")
}

func (h VideoHandler) ownedVideo(ctx context.Context, videoID, userID string) (models.Video, error) {
	if err := checkID("videoId", videoID); err != nil {
		return models.Video{}, err
	}
	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		return models.Video{}, storeError(err, "video not found", "")
	}
	if video.Owner != userID {
		return models.Video{}, apperr.Forbidden("only the owner can modify this video")
	}
	return video, nil
}

func (h VideoHandler) invalidate(channelID string) {
	if h.Stats != nil {
		h.Stats.Invalidate(channelID)
	}
}

func (h VideoHandler) discard(locations ...string) {
	if h.Janitor == nil {
		return
	}
	var live []string
	for _, l := range locations {
		if l != "" {
			live = append(live, l)
		}
	}
	if len(live) > 0 {
		h.Janitor.Discard(live...)
	}
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc().UTC()
	}
	return time.Now().UTC()
}
