package handlers

import (
	"net/http"

	"github.com/vidtube/backend/internal/toggle"
)

// SubscriptionHandler implements the subscription endpoints.
type SubscriptionHandler struct {
	Toggles Toggler
	Views   ViewBuilder
	Stats   StatsProvider
}

// Toggle handles POST /api/v1/subscriptions/c/{channelId}.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelID, err := pathID(r, "channelId")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	result, err := h.Toggles.Toggle(ctx, toggle.SubscriptionEdge(mustUser(r).ID, channelID))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if h.Stats != nil {
		h.Stats.Invalidate(channelID)
	}

	if result.Removed {
		respondOK(ctx, w, http.StatusOK, map[string]bool{"subscribed": false}, "Unsubscribed successfully")
		return
	}
	respondOK(ctx, w, http.StatusOK, map[string]bool{"subscribed": true}, "Subscribed successfully")
}

// Subscribers handles GET /api/v1/subscriptions/c/{channelId}.
func (h SubscriptionHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelID, err := pathID(r, "channelId")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	subscribers, err := h.Views.ChannelSubscribers(ctx, channelID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondOK(ctx, w, http.StatusOK, subscribers, "Subscribers fetched successfully")
}

// SubscribedChannels handles GET /api/v1/subscriptions/u/{subscriberId}.
func (h SubscriptionHandler) SubscribedChannels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subscriberID, err := pathID(r, "subscriberId")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	channels, err := h.Views.SubscribedChannels(ctx, subscriberID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondOK(ctx, w, http.StatusOK, channels, "Subscribed channels fetched successfully")
}
