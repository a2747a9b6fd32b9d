package views

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/backend/internal/aggregate"
	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/docstore/memstore"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memstore.Store
	views *Builder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	require.NoError(t, repositories.EnsureIndexes(context.Background(), store))
	return &fixture{t: t, ctx: context.Background(), store: store, views: NewBuilder(aggregate.NewEngine(store))}
}

func (f *fixture) user(id string) {
	f.t.Helper()
	require.NoError(f.t, f.store.InsertOne(f.ctx, models.UsersCollection, models.User{
		ID: id, Username: id, Email: id + "@example.com", Fullname: "Full " + id, Avatar: id + ".png", CreatedAt: base,
	}.ToDocument()))
}

func (f *fixture) video(id, owner string, views int64, at time.Time) {
	f.t.Helper()
	require.NoError(f.t, f.store.InsertOne(f.ctx, models.VideosCollection, models.Video{
		ID: id, Title: "title " + id, Owner: owner, Views: views, IsPublished: true, CreatedAt: at, UpdatedAt: at,
	}.ToDocument()))
}

func (f *fixture) subscribe(id, subscriber, channel string, at time.Time) {
	f.t.Helper()
	require.NoError(f.t, f.store.InsertOne(f.ctx, models.SubscriptionsCollection, models.Subscription{
		ID: id, Subscriber: subscriber, Channel: channel, CreatedAt: at,
	}.ToDocument()))
}

func (f *fixture) like(id, user string, target models.LikeTarget, at time.Time) {
	f.t.Helper()
	like, err := models.NewLike(id, user, target, at)
	require.NoError(f.t, err)
	require.NoError(f.t, f.store.InsertOne(f.ctx, models.LikesCollection, like.ToDocument()))
}

func (f *fixture) comment(id, owner, video string, at time.Time) {
	f.t.Helper()
	require.NoError(f.t, f.store.InsertOne(f.ctx, models.CommentsCollection, models.Comment{
		ID: id, Content: "comment " + id, Owner: owner, Video: video, CreatedAt: at, UpdatedAt: at,
	}.ToDocument()))
}

func TestChannelProfile(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"alice", "bob", "carol"} {
		f.user(id)
	}
	f.subscribe("s1", "bob", "alice", base)
	f.subscribe("s2", "carol", "alice", base)
	f.subscribe("s3", "alice", "carol", base)

	profile, err := f.views.ChannelProfile(f.ctx, "ALICE", "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.ID)
	assert.Equal(t, "alice@example.com", profile.Email)
	assert.Equal(t, int64(2), profile.SubscribersCount)
	assert.Equal(t, int64(1), profile.SubscribedToCount)
	assert.True(t, profile.IsSubscribed)

	profile, err = f.views.ChannelProfile(f.ctx, "alice", "alice")
	require.NoError(t, err)
	assert.False(t, profile.IsSubscribed)

	_, err = f.views.ChannelProfile(f.ctx, "nobody", "bob")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.views.ChannelProfile(f.ctx, "  ", "bob")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestChannelStats(t *testing.T) {
	f := newFixture(t)
	f.user("alice")
	f.user("bob")
	f.video("v1", "alice", 10, base)
	f.video("v2", "alice", 5, base.Add(time.Minute))
	f.video("v3", "bob", 100, base)
	f.subscribe("s1", "bob", "alice", base)
	f.like("l1", "bob", models.VideoTarget("v1"), base)
	f.like("l2", "alice", models.VideoTarget("v1"), base)
	f.like("l3", "bob", models.VideoTarget("v2"), base)
	f.like("l4", "alice", models.VideoTarget("v3"), base)
	f.comment("c1", "bob", "v1", base)
	f.like("l5", "alice", models.CommentTarget("c1"), base)

	stats, err := f.views.ChannelStats(f.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ChannelStats{TotalVideos: 2, TotalSubscribers: 1, TotalViews: 15, TotalLikes: 3}, stats)

	stats, err = f.views.ChannelStats(f.ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, ChannelStats{}, stats)
}

type pipelineRecorder struct {
	*memstore.Store
	mu          sync.Mutex
	collections []string
}

func (r *pipelineRecorder) RunPipeline(_ context.Context, collection string, _ aggregate.Pipeline) ([]docstore.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections = append(r.collections, collection)
	return nil, aggregate.ErrNotNative
}

func TestChannelStatsSumsInsidePipeline(t *testing.T) {
	f := newFixture(t)
	recorder := &pipelineRecorder{Store: f.store}
	f.views = NewBuilder(aggregate.NewEngine(recorder))

	f.user("alice")
	for i := 0; i < 50; i++ {
		f.video(fmt.Sprintf("v%02d", i), "alice", int64(i), base)
	}
	f.like("l1", "alice", models.VideoTarget("v07"), base)

	stats, err := f.views.ChannelStats(f.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ChannelStats{TotalVideos: 50, TotalViews: 1225, TotalLikes: 1}, stats)
	assert.Equal(t, []string{models.UsersCollection}, recorder.collections)
}

func TestChannelVideosPagination(t *testing.T) {
	f := newFixture(t)
	f.user("alice")
	for i := 0; i < 15; i++ {
		f.video(fmt.Sprintf("v%02d", i), "alice", 0, base.Add(time.Duration(i)*time.Minute))
	}

	page, err := f.views.ChannelVideos(f.ctx, "alice", 2, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 5)
	assert.Equal(t, int64(15), page.TotalCount)
	assert.Equal(t, int64(2), page.TotalPages)
	assert.False(t, page.HasNextPage)
	// newest first: page two starts at the sixth newest.
	assert.Equal(t, "v04", page.Items[0].ID)

	for i := 15; i < 25; i++ {
		f.video(fmt.Sprintf("v%02d", i), "alice", 0, base.Add(time.Duration(i)*time.Minute))
	}
	page, err = f.views.ChannelVideos(f.ctx, "alice", 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 10)
	assert.Equal(t, int64(25), page.TotalCount)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, "v24", page.Items[0].ID)

	page, err = f.views.ChannelVideos(f.ctx, "alice", 1, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
}

func TestWatchHistoryPreservesOrder(t *testing.T) {
	f := newFixture(t)
	f.user("alice")
	f.user("bob")
	f.video("v1", "bob", 0, base)
	f.video("v2", "alice", 0, base)
	f.video("v3", "bob", 0, base)

	users := repositories.NewUserRepository(f.store)
	for _, id := range []string{"v3", "v1", "gone", "v2", "v3"} {
		require.NoError(t, users.RecordWatch(f.ctx, "alice", id))
	}

	history, err := f.views.WatchHistory(f.ctx, "alice")
	require.NoError(t, err)

	ids := make([]string, len(history))
	for i, v := range history {
		ids[i] = v.ID
	}
	assert.Equal(t, []string{"v3", "v2", "v1", "v3"}, ids)
	require.NotNil(t, history[0].Owner)
	assert.Equal(t, "bob", history[0].Owner.Username)
	assert.Equal(t, "alice", history[1].Owner.Username)

	_, err = f.views.WatchHistory(f.ctx, "nobody")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestVideoCommentsToleratesDeletedVideo(t *testing.T) {
	f := newFixture(t)
	f.user("alice")
	f.user("bob")
	f.video("v1", "alice", 0, base)
	f.comment("c1", "bob", "v1", base)
	f.comment("c2", "alice", "v1", base.Add(time.Minute))
	f.comment("c3", "bob", "v1", base.Add(2*time.Minute))

	page, err := f.views.VideoComments(f.ctx, "v1", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "c3", page.Items[0].ID)
	require.NotNil(t, page.Items[0].Owner)
	assert.Equal(t, "bob", page.Items[0].Owner.Username)
	require.NotNil(t, page.Items[0].Video)
	assert.Equal(t, "title v1", page.Items[0].Video.Title)

	require.NoError(t, repositories.NewVideoRepository(f.store).Delete(f.ctx, "v1"))

	page, err = f.views.VideoComments(f.ctx, "v1", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	for _, c := range page.Items {
		assert.Nil(t, c.Video)
		assert.NotNil(t, c.Owner)
	}
}

func TestLikedViews(t *testing.T) {
	f := newFixture(t)
	f.user("alice")
	f.user("bob")
	f.video("v1", "bob", 0, base)
	f.video("v2", "bob", 0, base)
	f.comment("c1", "bob", "v1", base)
	f.like("l1", "alice", models.VideoTarget("v1"), base)
	f.like("l2", "alice", models.VideoTarget("v2"), base.Add(time.Minute))
	f.like("l3", "alice", models.CommentTarget("c1"), base)
	f.like("l4", "bob", models.VideoTarget("v1"), base)

	require.NoError(t, repositories.NewVideoRepository(f.store).Delete(f.ctx, "v2"))

	videos, err := f.views.LikedVideos(f.ctx, "alice")
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "l2", videos[0].ID)
	assert.Nil(t, videos[0].Video)
	require.NotNil(t, videos[1].Video)
	assert.Equal(t, "v1", videos[1].Video.ID)
	assert.Equal(t, "bob", videos[1].Video.Owner.Username)

	comments, err := f.views.LikedComments(f.ctx, "alice")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.NotNil(t, comments[0].Comment)
	assert.Equal(t, "c1", comments[0].Comment.ID)
}

func TestSubscriberLists(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"alice", "bob", "carol"} {
		f.user(id)
	}
	f.subscribe("s1", "bob", "alice", base)
	f.subscribe("s2", "carol", "alice", base.Add(time.Minute))
	f.subscribe("s3", "bob", "carol", base)

	subs, err := f.views.ChannelSubscribers(f.ctx, "alice")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "carol", subs[0].Subscriber.Username)
	assert.Equal(t, "bob", subs[1].Subscriber.Username)

	channels, err := f.views.SubscribedChannels(f.ctx, "bob")
	require.NoError(t, err)
	require.Len(t, channels, 2)
	names := []string{channels[0].Channel.Username, channels[1].Channel.Username}
	assert.ElementsMatch(t, []string{"alice", "carol"}, names)
}

func TestPlaylistAndDetail(t *testing.T) {
	f := newFixture(t)
	f.user("alice")
	f.video("v1", "alice", 3, base)
	f.video("v2", "alice", 4, base)
	require.NoError(t, f.store.InsertOne(f.ctx, models.PlaylistsCollection, models.Playlist{
		ID: "p1", Name: "mix", Owner: "alice", Videos: []string{"v2", "v1"}, CreatedAt: base,
	}.ToDocument()))
	f.like("l1", "alice", models.VideoTarget("v2"), base)

	playlist, err := f.views.Playlist(f.ctx, "p1")
	require.NoError(t, err)
	require.Len(t, playlist.Videos, 2)
	assert.Equal(t, "v2", playlist.Videos[0].ID)
	assert.Equal(t, int64(7), playlist.TotalViews)
	assert.Equal(t, "alice", playlist.Owner.Username)

	detail, err := f.views.VideoDetail(f.ctx, "v2", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.LikesCount)
	assert.True(t, detail.IsLiked)

	_, err = f.views.VideoDetail(f.ctx, "missing", "alice")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestVideoFeed(t *testing.T) {
	f := newFixture(t)
	f.user("alice")
	f.video("v1", "alice", 30, base)
	f.video("v2", "alice", 10, base.Add(time.Minute))
	require.NoError(t, f.store.InsertOne(f.ctx, models.VideosCollection, models.Video{
		ID: "draft", Owner: "alice", IsPublished: false, CreatedAt: base.Add(time.Hour),
	}.ToDocument()))

	page, err := f.views.VideoFeed(f.ctx, FeedQuery{Page: 1, Limit: 10, SortBy: "views", Desc: true})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(2), page.TotalCount)
	assert.Equal(t, "v1", page.Items[0].ID)

	_, err = f.views.VideoFeed(f.ctx, FeedQuery{Page: 1, Limit: 10, SortBy: "password"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
