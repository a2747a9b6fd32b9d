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

// CommentHandler implements the comment endpoints.
type CommentHandler struct {
	Comments CommentStore
	Videos   VideoStore
	Views    ViewBuilder
	NowFunc  func() time.Time
}

type commentRequest struct {
	Content string `json:"content"`
}

func (h CommentHandler) decodeContent(w http.ResponseWriter, r *http.Request) (string, error) {
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return "", err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return "", apperr.Validation("content is required")
	}
	return content, nil
}

// List handles GET /api/v1/comments/{videoId}. Comments are listed even when
// the video itself has been deleted.
func (h CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID, err := pathID(r, "videoId")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	page, limit, err := pagination(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	comments, err := h.Views.VideoComments(ctx, videoID, page, limit)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondOK(ctx, w, http.StatusOK, comments, "Comments fetched successfully")
}

// Create handles POST /api/v1/comments/{videoId}.
func (h CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := mustUser(r)

	videoID, err := pathID(r, "videoId")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	content, err := h.decodeContent(w, r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		respondError(ctx, w, storeError(err, "video not found", ""))
		return
	}

	now := time.Now().UTC()
	if h.NowFunc != nil {
		now = h.NowFunc().UTC()
	}
	comment := models.Comment{
		ID:        uuid.NewString(),
		Content:   content,
		Owner:     user.ID,
		Video:     video.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Comments.Create(ctx, comment); err != nil {
		respondError(ctx, w, apperr.Internal("failed to save comment", err))
		return
	}

	view, err := h.Views.Comment(ctx, comment.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondOK(ctx, w, http.StatusCreated, view, "Comment added successfully")
}

// Update handles PATCH /api/v1/comments/c/{commentId}.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := mustUser(r)

	content, err := h.decodeContent(w, r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	comment, err := h.ownedComment(ctx, r.PathValue("commentId"), user.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	updated, err := h.Comments.UpdateContent(ctx, comment.ID, content)
	if err != nil {
		respondError(ctx, w, storeError(err, "comment not found", ""))
		return
	}
	respondOK(ctx, w, http.StatusOK, updated, "Comment updated successfully")
}

// Delete handles DELETE /api/v1/comments/c/{commentId}.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := mustUser(r)

	comment, err := h.ownedComment(ctx, r.PathValue("commentId"), user.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if err := h.Comments.Delete(ctx, comment.ID); err != nil {
		respondError(ctx, w, storeError(err, "comment not found", ""))
		return
	}
	respondOK(ctx, w, http.StatusOK, struct{}{}, "Comment deleted successfully")
}

func (h CommentHandler) ownedComment(ctx context.Context, commentID, userID string) (models.Comment, error) {
	if err := checkID("commentId", commentID); err != nil {
		return models.Comment{}, err
	}
	comment, err := h.Comments.FindByID(ctx, commentID)
	if err != nil {
		return models.Comment{}, storeError(err, "comment not found", "")
	}
	if comment.Owner != userID {
		return models.Comment{}, apperr.Forbidden("only the author can modify this comment")
	}
	return comment, nil
}
