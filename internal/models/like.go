package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/vidtube/backend/internal/docstore"
)

// TargetKind names the entity a Like points at. The value doubles as the
// stored field name.
type TargetKind string

const (
	TargetVideo   TargetKind = "video"
	TargetComment TargetKind = "comment"
)

// ErrInvalidLikeTarget is returned when a like does not reference exactly one target.
var ErrInvalidLikeTarget = errors.New("like must reference exactly one of video or comment")

// LikeTarget identifies exactly one likeable entity.
type LikeTarget struct {
	Kind TargetKind
	ID   string
}

func VideoTarget(id string) LikeTarget { return LikeTarget{Kind: TargetVideo, ID: id} }
func CommentTarget(id string) LikeTarget { return LikeTarget{Kind: TargetComment, ID: id} }

// Validate reports ErrInvalidLikeTarget for unknown kinds or empty ids.
func (t LikeTarget) Validate() error {
	if t.ID == "" || (t.Kind != TargetVideo && t.Kind != TargetComment) {
		return ErrInvalidLikeTarget
	}
	return nil
}

// Collection returns the collection holding the target entity.
func (t LikeTarget) Collection() string {
	if t.Kind == TargetComment {
		return CommentsCollection
	}
	return VideosCollection
}

// Like is an edge from a user to a video or a comment.
type Like struct {
	ID        string
	LikedBy   string
	Target    LikeTarget
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewLike builds a like after validating its target.
func NewLike(id, likedBy string, target LikeTarget, now time.Time) (Like, error) {
	if err := target.Validate(); err != nil {
		return Like{}, err
	}
	return Like{ID: id, LikedBy: likedBy, Target: target, CreatedAt: now, UpdatedAt: now}, nil
}

// ToDocument stores the target under its kind; the other target field is absent.
func (l Like) ToDocument() docstore.Document {
	doc := docstore.Document{
		"_id":       l.ID,
		"likedBy":   l.LikedBy,
		"createdAt": l.CreatedAt,
		"updatedAt": l.UpdatedAt,
	}
	doc[string(l.Target.Kind)] = l.Target.ID
	return docstore.NormalizeDocument(doc)
}

// LikeFromDocument rejects documents with both or neither target fields.
func LikeFromDocument(doc docstore.Document) (Like, error) {
	hasVideo, hasComment := doc.Has(string(TargetVideo)), doc.Has(string(TargetComment))
	if hasVideo == hasComment {
		return Like{}, ErrInvalidLikeTarget
	}
	target := VideoTarget(doc.String(string(TargetVideo)))
	if hasComment {
		target = CommentTarget(doc.String(string(TargetComment)))
	}
	return Like{
		ID:        doc.ID(),
		LikedBy:   doc.String("likedBy"),
		Target:    target,
		CreatedAt: doc.Time("createdAt"),
		UpdatedAt: doc.Time("updatedAt"),
	}, nil
}

func (l Like) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"_id":       l.ID,
		"likedBy":   l.LikedBy,
		"createdAt": l.CreatedAt,
		"updatedAt": l.UpdatedAt,
	}
	out[string(l.Target.Kind)] = l.Target.ID
	return json.Marshal(out)
}
