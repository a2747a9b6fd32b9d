package handlers

import (
	"net/http"
	"strings"
	"time"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users     UserStore
	Sessions  SessionManager
	Videos    VideoStore
	Comments  CommentStore
	Playlists PlaylistStore
	Toggles   Toggler
	Views     ViewBuilder
	Stats     StatsProvider
	Prober    DurationProber
	Janitor   BlobJanitor
	Uploads   Uploads
	Cookies   CookiePolicy
	Limiter   RateLimiter
	Health    Pinger
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Media serves locally stored uploads under /media/ when set.
	Media   http.Handler
	NowFunc func() time.Time
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Store: deps.Health}
	authn := Authenticator{Users: deps.Users, Sessions: deps.Sessions}
	users := UserHandler{
		Users:    deps.Users,
		Sessions: deps.Sessions,
		Views:    deps.Views,
		Uploads:  deps.Uploads,
		Janitor:  deps.Janitor,
		Cookies:  deps.Cookies,
		Limiter:  deps.Limiter,
		NowFunc:  deps.NowFunc,
	}
	videos := VideoHandler{
		Videos:  deps.Videos,
		Users:   deps.Users,
		Views:   deps.Views,
		Stats:   deps.Stats,
		Uploads: deps.Uploads,
		Prober:  deps.Prober,
		Janitor: deps.Janitor,
		NowFunc: deps.NowFunc,
	}
	comments := CommentHandler{Comments: deps.Comments, Videos: deps.Videos, Views: deps.Views, NowFunc: deps.NowFunc}
	likes := LikeHandler{Toggles: deps.Toggles, Views: deps.Views}
	subscriptions := SubscriptionHandler{Toggles: deps.Toggles, Views: deps.Views, Stats: deps.Stats}
	dashboard := DashboardHandler{Stats: deps.Stats, Views: deps.Views}
	playlists := PlaylistHandler{Playlists: deps.Playlists, Videos: deps.Videos, Views: deps.Views, NowFunc: deps.NowFunc}

	mux.HandleFunc("GET /healthz", health.Handle)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}
	if deps.Media != nil {
		mux.Handle("GET /media/", http.StripPrefix("/media/", deps.Media))
	}

	const api = "/api/v1"
	private := func(pattern string, h http.HandlerFunc) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.HandleFunc(method+" "+api+path, authn.Require(h))
	}

	mux.HandleFunc("POST "+api+"/users/register", users.Register)
	mux.HandleFunc("POST "+api+"/users/login", users.Login)
	mux.HandleFunc("POST "+api+"/users/refresh-token", users.RefreshToken)
	private("POST /users/logout", users.Logout)
	private("POST /users/change-password", users.ChangePassword)
	private("GET /users/get-user", users.CurrentUser)
	private("PATCH /users/update-details", users.UpdateDetails)
	private("PATCH /users/avatar", users.UpdateAvatar)
	private("PATCH /users/cover-image", users.UpdateCoverImage)
	private("GET /users/c/{username}", users.ChannelProfile)
	private("GET /users/history", users.WatchHistory)

	private("GET /videos", videos.Feed)
	private("POST /videos", videos.Publish)
	private("GET /videos/{videoId}", videos.Get)
	private("PATCH /videos/{videoId}", videos.Update)
	private("DELETE /videos/{videoId}", videos.Delete)
	private("PATCH /videos/toggle/publish/{videoId}", videos.TogglePublish)

	private("GET /comments/{videoId}", comments.List)
	private("POST /comments/{videoId}", comments.Create)
	private("PATCH /comments/c/{commentId}", comments.Update)
	private("DELETE /comments/c/{commentId}", comments.Delete)

	private("POST /likes/toggle/v/{videoId}", likes.ToggleVideo)
	private("POST /likes/toggle/c/{commentId}", likes.ToggleComment)
	private("GET /likes/videos", likes.LikedVideos)
	private("GET /likes/comments", likes.LikedComments)

	private("POST /subscriptions/c/{channelId}", subscriptions.Toggle)
	private("GET /subscriptions/c/{channelId}", subscriptions.Subscribers)
	private("GET /subscriptions/u/{subscriberId}", subscriptions.SubscribedChannels)

	private("GET /dashboard/stats/{channelId}", dashboard.ChannelStats)
	private("GET /dashboard/videos/{channelId}", dashboard.ChannelVideos)

	private("POST /playlists", playlists.Create)
	private("GET /playlists/{playlistId}", playlists.Get)
	private("PATCH /playlists/{playlistId}", playlists.Update)
	private("DELETE /playlists/{playlistId}", playlists.Delete)
	private("GET /playlists/user/{userId}", playlists.ListByUser)
	private("PATCH /playlists/add/{videoId}/{playlistId}", playlists.AddVideo)
	private("PATCH /playlists/remove/{videoId}/{playlistId}", playlists.RemoveVideo)
}
