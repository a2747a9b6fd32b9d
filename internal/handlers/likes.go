package handlers

import (
	"net/http"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/toggle"
)

// LikeHandler implements the like endpoints.
type LikeHandler struct {
	Toggles Toggler
	Views   ViewBuilder
}

type likeResponse struct {
	IsLiked bool   `json:"isLiked"`
	LikeID  string `json:"likeId,omitempty"`
}

// ToggleVideo handles POST /api/v1/likes/toggle/v/{videoId}.
func (h LikeHandler) ToggleVideo(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "videoId", models.VideoTarget)
}

// ToggleComment handles POST /api/v1/likes/toggle/c/{commentId}.
func (h LikeHandler) ToggleComment(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "commentId", models.CommentTarget)
}

func (h LikeHandler) toggle(w http.ResponseWriter, r *http.Request, param string, target func(string) models.LikeTarget) {
	ctx := r.Context()

	id, err := pathID(r, param)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	result, err := h.Toggles.Toggle(ctx, toggle.LikeEdge(mustUser(r).ID, target(id)))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if result.Removed {
		respondOK(ctx, w, http.StatusOK, likeResponse{IsLiked: false}, "Like removed")
		return
	}
	respondOK(ctx, w, http.StatusOK, likeResponse{IsLiked: true, LikeID: result.Created.ID()}, "Like added")
}

// LikedVideos handles GET /api/v1/likes/videos.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	liked, err := h.Views.LikedVideos(ctx, mustUser(r).ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondOK(ctx, w, http.StatusOK, liked, "Liked videos fetched successfully")
}

// LikedComments handles GET /api/v1/likes/comments.
func (h LikeHandler) LikedComments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	liked, err := h.Views.LikedComments(ctx, mustUser(r).ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondOK(ctx, w, http.StatusOK, liked, "Liked comments fetched successfully")
}
