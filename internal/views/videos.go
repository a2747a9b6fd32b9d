package views

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vidtube/backend/internal/aggregate"
	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
)

// WatchHistory returns the user's watched videos, most recent first. Videos
// that were deleted since are skipped.
func (b *Builder) WatchHistory(ctx context.Context, userID string) ([]VideoSummary, error) {
	docs, err := b.run(ctx, models.UsersCollection,
		aggregate.Match(docstore.Eq(docstore.IDField, userID)),
		aggregate.JoinOrdered(models.VideosCollection, "watchHistory", docstore.IDField, "watchHistory", joinOwner("owner")...),
		aggregate.Project("watchHistory"),
	)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, apperr.NotFound("user not found")
	}

	history := docs[0].Docs("watchHistory")
	out := make([]VideoSummary, 0, len(history))
	for _, doc := range history {
		out = append(out, videoSummaryFromDocument(doc))
	}
	return out, nil
}

// FeedQuery selects published videos for the home feed.
type FeedQuery struct {
	Page    int64
	Limit   int64
	OwnerID string
	// SortBy is one of createdAt, views, duration or title.
	SortBy string
	Desc   bool
}

var feedSortFields = map[string]bool{"createdAt": true, "views": true, "duration": true, "title": true}

// VideoFeed pages through published videos with owners resolved.
func (b *Builder) VideoFeed(ctx context.Context, q FeedQuery) (Page[VideoSummary], error) {
	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = "createdAt"
	}
	if !feedSortFields[sortBy] {
		return Page[VideoSummary]{}, apperr.Validation("unsupported sortBy", "sortBy must be one of createdAt, views, duration, title")
	}

	filter := docstore.Where(docstore.Eq("isPublished", true))
	if q.OwnerID != "" {
		filter = filter.And(docstore.Eq("owner", q.OwnerID))
	}
	key := docstore.SortKey{Field: sortBy, Desc: q.Desc}

	var (
		items []VideoSummary
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := b.run(gctx, models.VideosCollection, stages(
			[]aggregate.Stage{aggregate.MatchStage{Filter: filter}, aggregate.Sort(key)},
			aggregate.Paginate(q.Page, q.Limit),
			joinOwner("owner"),
		)...)
		for _, doc := range docs {
			items = append(items, videoSummaryFromDocument(doc))
		}
		return err
	})
	g.Go(func() error {
		var err error
		total, err = b.count(gctx, models.VideosCollection, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return Page[VideoSummary]{}, err
	}
	return newPage(items, q.Page, q.Limit, total), nil
}

// VideoDetail is a single video page.
type VideoDetail struct {
	VideoSummary
	LikesCount int64 `json:"likesCount"`
	IsLiked    bool  `json:"isLiked"`
}

// VideoDetail loads a video with its owner and like state for viewerID.
func (b *Builder) VideoDetail(ctx context.Context, videoID, viewerID string) (VideoDetail, error) {
	docs, err := b.run(ctx, models.VideosCollection, stages(
		[]aggregate.Stage{aggregate.Match(docstore.Eq(docstore.IDField, videoID))},
		joinOwner("owner"),
		[]aggregate.Stage{
			aggregate.Join(models.LikesCollection, docstore.IDField, "video", "likes"),
			aggregate.ComputeField("likesCount", aggregate.Size("likes")),
			aggregate.ComputeField("isLiked", aggregate.Contains("likes.likedBy", viewerID)),
			aggregate.Exclude("likes"),
		},
	)...)
	if err != nil {
		return VideoDetail{}, err
	}
	if len(docs) == 0 {
		return VideoDetail{}, apperr.NotFound("video not found")
	}
	doc := docs[0]
	return VideoDetail{
		VideoSummary: videoSummaryFromDocument(doc),
		LikesCount:   doc.Int("likesCount"),
		IsLiked:      doc.Bool("isLiked"),
	}, nil
}

// VideoRef is the embedded reference to a comment's video. It is nil once the
// video is deleted.
type VideoRef struct {
	ID        string `json:"_id"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
	Owner     string `json:"owner"`
}

func videoRefFromDocument(doc docstore.Document) *VideoRef {
	if doc == nil {
		return nil
	}
	return &VideoRef{ID: doc.ID(), Title: doc.String("title"), Thumbnail: doc.String("thumbnail"), Owner: doc.String("owner")}
}

// CommentView is a comment with its author and video resolved.
type CommentView struct {
	ID        string                `json:"_id"`
	Content   string                `json:"content"`
	Owner     *models.PublicProfile `json:"owner"`
	Video     *VideoRef             `json:"video"`
	CreatedAt time.Time             `json:"createdAt"`
}

func commentViewFromDocument(doc docstore.Document) CommentView {
	return CommentView{
		ID:        doc.ID(),
		Content:   doc.String("content"),
		Owner:     models.PublicProfileFromDocument(doc.Doc("owner")),
		Video:     videoRefFromDocument(doc.Doc("video")),
		CreatedAt: doc.Time("createdAt"),
	}
}

func commentStages() []aggregate.Stage {
	return stages(
		joinOwner("owner"),
		[]aggregate.Stage{
			aggregate.Join(models.VideosCollection, "video", docstore.IDField, "video",
				aggregate.Project("title", "thumbnail", "owner")),
			aggregate.FlattenOne("video"),
			aggregate.Exclude("updatedAt"),
		},
	)
}

// VideoComments pages through a video's comments, newest first. Comments of a
// deleted video are still listed, with a nil Video.
func (b *Builder) VideoComments(ctx context.Context, videoID string, page, limit int64) (Page[CommentView], error) {
	filter := docstore.Where(docstore.Eq("video", videoID))

	var (
		items []CommentView
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := b.run(gctx, models.CommentsCollection, stages(
			[]aggregate.Stage{aggregate.MatchStage{Filter: filter}, aggregate.Sort(docstore.Desc("createdAt"))},
			aggregate.Paginate(page, limit),
			commentStages(),
		)...)
		for _, doc := range docs {
			items = append(items, commentViewFromDocument(doc))
		}
		return err
	})
	g.Go(func() error {
		var err error
		total, err = b.count(gctx, models.CommentsCollection, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return Page[CommentView]{}, err
	}
	return newPage(items, page, limit, total), nil
}

// Comment resolves a single comment.
func (b *Builder) Comment(ctx context.Context, commentID string) (CommentView, error) {
	docs, err := b.run(ctx, models.CommentsCollection, stages(
		[]aggregate.Stage{aggregate.Match(docstore.Eq(docstore.IDField, commentID))},
		commentStages(),
	)...)
	if err != nil {
		return CommentView{}, err
	}
	if len(docs) == 0 {
		return CommentView{}, apperr.NotFound("comment not found")
	}
	return commentViewFromDocument(docs[0]), nil
}

// PlaylistView is a playlist with its videos and owner resolved.
type PlaylistView struct {
	ID          string                `json:"_id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Owner       *models.PublicProfile `json:"owner"`
	Videos      []VideoSummary        `json:"videos"`
	TotalVideos int64                 `json:"totalVideos"`
	TotalViews  int64                 `json:"totalViews"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// Playlist resolves a playlist in its stored video order.
func (b *Builder) Playlist(ctx context.Context, playlistID string) (PlaylistView, error) {
	docs, err := b.run(ctx, models.PlaylistsCollection, stages(
		[]aggregate.Stage{
			aggregate.Match(docstore.Eq(docstore.IDField, playlistID)),
			aggregate.JoinOrdered(models.VideosCollection, "videos", docstore.IDField, "videos", joinOwner("owner")...),
			aggregate.ComputeField("totalVideos", aggregate.Size("videos")),
			aggregate.ComputeField("totalViews", aggregate.Sum("videos.views")),
		},
		joinOwner("owner"),
	)...)
	if err != nil {
		return PlaylistView{}, err
	}
	if len(docs) == 0 {
		return PlaylistView{}, apperr.NotFound("playlist not found")
	}

	doc := docs[0]
	videos := doc.Docs("videos")
	view := PlaylistView{
		ID:          doc.ID(),
		Name:        doc.String("name"),
		Description: doc.String("description"),
		Owner:       models.PublicProfileFromDocument(doc.Doc("owner")),
		Videos:      make([]VideoSummary, 0, len(videos)),
		TotalVideos: doc.Int("totalVideos"),
		TotalViews:  doc.Int("totalViews"),
		CreatedAt:   doc.Time("createdAt"),
		UpdatedAt:   doc.Time("updatedAt"),
	}
	for _, v := range videos {
		view.Videos = append(view.Videos, videoSummaryFromDocument(v))
	}
	return view, nil
}
