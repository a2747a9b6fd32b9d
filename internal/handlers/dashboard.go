package handlers

import "net/http"

// DashboardHandler serves channel statistics and the channel's own videos.
type DashboardHandler struct {
	Stats StatsProvider
	Views ViewBuilder
}

// ChannelStats handles GET /api/v1/dashboard/stats/{channelId}.
func (h DashboardHandler) ChannelStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelID, err := pathID(r, "channelId")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	stats, err := h.Stats.ChannelStats(ctx, channelID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondOK(ctx, w, http.StatusOK, stats, "Channel stats fetched successfully")
}

// ChannelVideos handles GET /api/v1/dashboard/videos/{channelId}, including
// unpublished videos.
func (h DashboardHandler) ChannelVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channelID, err := pathID(r, "channelId")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	page, limit, err := pagination(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	videos, err := h.Views.ChannelVideos(ctx, channelID, page, limit)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondOK(ctx, w, http.StatusOK, videos, "Channel videos fetched successfully")
}
