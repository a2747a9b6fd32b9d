package views

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vidtube/backend/internal/aggregate"
	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
)

// ChannelProfile is a user's public channel page as seen by a viewer.
type ChannelProfile struct {
	ID                string `json:"_id"`
	Username          string `json:"username"`
	Fullname          string `json:"fullname"`
	Email             string `json:"email"`
	Avatar            string `json:"avatar"`
	CoverImage        string `json:"coverImage"`
	SubscribersCount  int64  `json:"subscribersCount"`
	SubscribedToCount int64  `json:"subscribedToCount"`
	IsSubscribed      bool   `json:"isSubscribed"`
}

// ChannelProfile looks a channel up by username. IsSubscribed reports whether
// viewerID subscribes to it.
func (b *Builder) ChannelProfile(ctx context.Context, username, viewerID string) (ChannelProfile, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return ChannelProfile{}, apperr.Validation("username is required")
	}

	docs, err := b.run(ctx, models.UsersCollection,
		aggregate.Match(docstore.Eq("username", username)),
		aggregate.Join(models.SubscriptionsCollection, docstore.IDField, "channel", "subscribers"),
		aggregate.Join(models.SubscriptionsCollection, docstore.IDField, "subscriber", "subscribedTo"),
		aggregate.ComputeField("subscribersCount", aggregate.Size("subscribers")),
		aggregate.ComputeField("subscribedToCount", aggregate.Size("subscribedTo")),
		aggregate.ComputeField("isSubscribed", aggregate.Contains("subscribers.subscriber", viewerID)),
		aggregate.Project("username", "fullname", "email", "avatar", "coverImage",
			"subscribersCount", "subscribedToCount", "isSubscribed"),
	)
	if err != nil {
		return ChannelProfile{}, err
	}
	if len(docs) == 0 {
		return ChannelProfile{}, apperr.NotFound("channel does not exist")
	}

	doc := docs[0]
	return ChannelProfile{
		ID:                doc.ID(),
		Username:          doc.String("username"),
		Fullname:          doc.String("fullname"),
		Email:             doc.String("email"),
		Avatar:            doc.String("avatar"),
		CoverImage:        doc.String("coverImage"),
		SubscribersCount:  doc.Int("subscribersCount"),
		SubscribedToCount: doc.Int("subscribedToCount"),
		IsSubscribed:      doc.Bool("isSubscribed"),
	}, nil
}

// ChannelStats aggregates counters over a channel's content.
type ChannelStats struct {
	TotalVideos      int64 `json:"totalVideos"`
	TotalSubscribers int64 `json:"totalSubscribers"`
	TotalViews       int64 `json:"totalViews"`
	TotalLikes       int64 `json:"totalLikes"`
}

// ChannelStats computes the counters concurrently; view and like totals are
// summed inside one pipeline anchored on the channel. Unknown channels yield
// zero counters.
func (b *Builder) ChannelStats(ctx context.Context, channelID string) (ChannelStats, error) {
	var stats ChannelStats
	owned := docstore.Where(docstore.Eq("owner", channelID))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := b.count(gctx, models.VideosCollection, owned)
		stats.TotalVideos = n
		return err
	})
	g.Go(func() error {
		n, err := b.count(gctx, models.SubscriptionsCollection, docstore.Where(docstore.Eq("channel", channelID)))
		stats.TotalSubscribers = n
		return err
	})
	g.Go(func() error {
		docs, err := b.run(gctx, models.UsersCollection,
			aggregate.Match(docstore.Eq(docstore.IDField, channelID)),
			aggregate.Join(models.VideosCollection, docstore.IDField, "owner", "videos",
				aggregate.Join(models.LikesCollection, docstore.IDField, "video", "likes"),
				aggregate.ComputeField("likesCount", aggregate.Size("likes")),
				aggregate.Project("views", "likesCount"),
			),
			aggregate.ComputeField("totalViews", aggregate.Sum("videos.views")),
			aggregate.ComputeField("totalLikes", aggregate.Sum("videos.likesCount")),
			aggregate.Project("totalViews", "totalLikes"),
		)
		if len(docs) > 0 {
			stats.TotalViews = docs[0].Int("totalViews")
			stats.TotalLikes = docs[0].Int("totalLikes")
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return ChannelStats{}, err
	}
	return stats, nil
}

// ChannelVideos pages through every video a channel owns, newest first.
func (b *Builder) ChannelVideos(ctx context.Context, channelID string, page, limit int64) (Page[models.Video], error) {
	owned := docstore.Where(docstore.Eq("owner", channelID))

	var (
		items []models.Video
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := b.run(gctx, models.VideosCollection, stages(
			[]aggregate.Stage{aggregate.MatchStage{Filter: owned}, aggregate.Sort(docstore.Desc("createdAt"))},
			aggregate.Paginate(page, limit),
		)...)
		for _, doc := range docs {
			items = append(items, models.VideoFromDocument(doc))
		}
		return err
	})
	g.Go(func() error {
		var err error
		total, err = b.count(gctx, models.VideosCollection, owned)
		return err
	})
	if err := g.Wait(); err != nil {
		return Page[models.Video]{}, err
	}
	return newPage(items, page, limit, total), nil
}

// Subscriber is one entry of a channel's subscriber list.
type Subscriber struct {
	ID           string                `json:"_id"`
	Subscriber   *models.PublicProfile `json:"subscriber"`
	SubscribedAt time.Time             `json:"subscribedAt"`
}

// ChannelSubscribers lists who subscribes to channelID, most recent first.
func (b *Builder) ChannelSubscribers(ctx context.Context, channelID string) ([]Subscriber, error) {
	docs, err := b.run(ctx, models.SubscriptionsCollection, stages(
		[]aggregate.Stage{
			aggregate.Match(docstore.Eq("channel", channelID)),
			aggregate.Sort(docstore.Desc("createdAt")),
		},
		joinOwner("subscriber"),
	)...)
	if err != nil {
		return nil, err
	}
	out := make([]Subscriber, 0, len(docs))
	for _, doc := range docs {
		out = append(out, Subscriber{
			ID:           doc.ID(),
			Subscriber:   models.PublicProfileFromDocument(doc.Doc("subscriber")),
			SubscribedAt: doc.Time("createdAt"),
		})
	}
	return out, nil
}

// SubscribedChannel is one entry of the channels a user follows.
type SubscribedChannel struct {
	ID           string                `json:"_id"`
	Channel      *models.PublicProfile `json:"channel"`
	SubscribedAt time.Time             `json:"subscribedAt"`
}

func (b *Builder) SubscribedChannels(ctx context.Context, subscriberID string) ([]SubscribedChannel, error) {
	docs, err := b.run(ctx, models.SubscriptionsCollection, stages(
		[]aggregate.Stage{
			aggregate.Match(docstore.Eq("subscriber", subscriberID)),
			aggregate.Sort(docstore.Desc("createdAt")),
		},
		joinOwner("channel"),
	)...)
	if err != nil {
		return nil, err
	}
	out := make([]SubscribedChannel, 0, len(docs))
	for _, doc := range docs {
		out = append(out, SubscribedChannel{
			ID:           doc.ID(),
			Channel:      models.PublicProfileFromDocument(doc.Doc("channel")),
			SubscribedAt: doc.Time("createdAt"),
		})
	}
	return out, nil
}
