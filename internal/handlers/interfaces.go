package handlers

import (
	"context"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/toggle"
	"github.com/vidtube/backend/internal/views"
)

// UserStore captures the persistence operations required by the user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByLogin(ctx context.Context, email, username string) (models.User, error)
	UpdateDetails(ctx context.Context, id, fullname, email string) (models.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	ReplaceAvatar(ctx context.Context, id, location string) (models.User, string, error)
	ReplaceCoverImage(ctx context.Context, id, location string) (models.User, string, error)
	RecordWatch(ctx context.Context, userID, videoID string) error
}

// SessionManager issues, rotates and verifies authentication tokens.
type SessionManager interface {
	Rotate(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, presented string) (models.SessionTokens, error)
	Revoke(ctx context.Context, userID string) error
	VerifyAccess(token string) (auth.AccessClaims, error)
}

// VideoStore captures video persistence.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	Update(ctx context.Context, id string, changes repositories.VideoChanges) (models.Video, error)
	Delete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error
	TogglePublish(ctx context.Context, id string) (models.Video, error)
}

// CommentStore captures comment persistence.
type CommentStore interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	UpdateContent(ctx context.Context, id, content string) (models.Comment, error)
	Delete(ctx context.Context, id string) error
}

// PlaylistStore captures playlist persistence.
type PlaylistStore interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Playlist, error)
	Update(ctx context.Context, id, name, description string) (models.Playlist, error)
	Delete(ctx context.Context, id string) error
	AddVideo(ctx context.Context, id, videoID string) (models.Playlist, error)
	RemoveVideo(ctx context.Context, id, videoID string) (models.Playlist, error)
}

// Toggler flips like and subscription edges.
type Toggler interface {
	Toggle(ctx context.Context, edge toggle.Edge) (toggle.Result, error)
}

// ViewBuilder produces the aggregated read models.
type ViewBuilder interface {
	ChannelProfile(ctx context.Context, username, viewerID string) (views.ChannelProfile, error)
	ChannelVideos(ctx context.Context, channelID string, page, limit int64) (views.Page[models.Video], error)
	ChannelSubscribers(ctx context.Context, channelID string) ([]views.Subscriber, error)
	SubscribedChannels(ctx context.Context, subscriberID string) ([]views.SubscribedChannel, error)
	LikedVideos(ctx context.Context, userID string) ([]views.LikedVideo, error)
	LikedComments(ctx context.Context, userID string) ([]views.LikedComment, error)
	WatchHistory(ctx context.Context, userID string) ([]views.VideoSummary, error)
	VideoFeed(ctx context.Context, q views.FeedQuery) (views.Page[views.VideoSummary], error)
	VideoDetail(ctx context.Context, videoID, viewerID string) (views.VideoDetail, error)
	VideoComments(ctx context.Context, videoID string, page, limit int64) (views.Page[views.CommentView], error)
	Comment(ctx context.Context, commentID string) (views.CommentView, error)
	Playlist(ctx context.Context, playlistID string) (views.PlaylistView, error)
}

// StatsProvider serves channel statistics, possibly from a cache that writes
// invalidate.
type StatsProvider interface {
	ChannelStats(ctx context.Context, channelID string) (views.ChannelStats, error)
	Invalidate(channelID string)
}

// DurationProber measures the length of an uploaded video file.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// BlobJanitor schedules deletion of blobs that are no longer referenced.
type BlobJanitor interface {
	Discard(locations ...string)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
