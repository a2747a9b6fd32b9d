package views

import (
	"context"
	"time"

	"github.com/vidtube/backend/internal/aggregate"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
)

// LikedVideo is a like on a video. Video is nil when it has been deleted.
type LikedVideo struct {
	ID      string        `json:"_id"`
	Video   *VideoSummary `json:"video"`
	LikedAt time.Time     `json:"likedAt"`
}

// LikedComment is a like on a comment. Comment is nil when it has been deleted.
type LikedComment struct {
	ID      string          `json:"_id"`
	Comment *models.Comment `json:"comment"`
	LikedAt time.Time       `json:"likedAt"`
}

func likedStages(userID string, kind models.TargetKind, from string, sub ...aggregate.Stage) []aggregate.Stage {
	field := string(kind)
	return []aggregate.Stage{
		aggregate.Match(docstore.Eq("likedBy", userID), docstore.Exists(field)),
		aggregate.Sort(docstore.Desc("createdAt")),
		aggregate.Join(from, field, docstore.IDField, field, sub...),
		aggregate.FlattenOne(field),
		aggregate.Exclude("likedBy", "updatedAt"),
	}
}

// LikedVideos lists the videos userID liked, most recent like first.
func (b *Builder) LikedVideos(ctx context.Context, userID string) ([]LikedVideo, error) {
	docs, err := b.run(ctx, models.LikesCollection,
		likedStages(userID, models.TargetVideo, models.VideosCollection, joinOwner("owner")...)...)
	if err != nil {
		return nil, err
	}
	out := make([]LikedVideo, 0, len(docs))
	for _, doc := range docs {
		entry := LikedVideo{ID: doc.ID(), LikedAt: doc.Time("createdAt")}
		if video := doc.Doc("video"); video != nil {
			summary := videoSummaryFromDocument(video)
			entry.Video = &summary
		}
		out = append(out, entry)
	}
	return out, nil
}

// LikedComments lists the comments userID liked, most recent like first.
func (b *Builder) LikedComments(ctx context.Context, userID string) ([]LikedComment, error) {
	docs, err := b.run(ctx, models.LikesCollection,
		likedStages(userID, models.TargetComment, models.CommentsCollection)...)
	if err != nil {
		return nil, err
	}
	out := make([]LikedComment, 0, len(docs))
	for _, doc := range docs {
		entry := LikedComment{ID: doc.ID(), LikedAt: doc.Time("createdAt")}
		if comment := doc.Doc("comment"); comment != nil {
			c := models.CommentFromDocument(comment)
			entry.Comment = &c
		}
		out = append(out, entry)
	}
	return out, nil
}
