package repositories

import (
	"context"
	"fmt"

	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
)

// Indexes are the secondary indexes every backend must provide. The unique
// ones carry the identity and edge invariants: one account per username and
// email, one like per (user, target), one subscription per (subscriber, channel).
func Indexes() []docstore.Index {
	return []docstore.Index{
		{Collection: models.UsersCollection, Name: "users_username_key", Fields: []string{"username"}, Unique: true},
		{Collection: models.UsersCollection, Name: "users_email_key", Fields: []string{"email"}, Unique: true},
		{Collection: models.VideosCollection, Name: "videos_owner_idx", Fields: []string{"owner"}},
		{Collection: models.CommentsCollection, Name: "comments_video_idx", Fields: []string{"video"}},
		{Collection: models.LikesCollection, Name: "likes_video_key", Fields: []string{"likedBy", "video"}, Unique: true, Partial: true},
		{Collection: models.LikesCollection, Name: "likes_comment_key", Fields: []string{"likedBy", "comment"}, Unique: true, Partial: true},
		{Collection: models.SubscriptionsCollection, Name: "subscriptions_pair_key", Fields: []string{"subscriber", "channel"}, Unique: true},
		{Collection: models.SubscriptionsCollection, Name: "subscriptions_channel_idx", Fields: []string{"channel"}},
		{Collection: models.PlaylistsCollection, Name: "playlists_owner_idx", Fields: []string{"owner"}},
	}
}

// EnsureIndexes creates Indexes on store.
func EnsureIndexes(ctx context.Context, store docstore.Store) error {
	if err := store.EnsureIndexes(ctx, Indexes()); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	return nil
}
