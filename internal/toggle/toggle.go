// Package toggle flips membership edges (likes and subscriptions) between a
// user and a target. Uniqueness of an edge is enforced by the store's unique
// indexes, so concurrent toggles never produce duplicates.
package toggle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
)

// Edge describes a single membership relation.
type Edge struct {
	kind       string
	collection string
	actor      string
	key        docstore.Filter
	// targetCollection and targetID must resolve to an existing document.
	targetCollection string
	targetID         string
	self             bool
	build            func(id string, now time.Time) (docstore.Document, error)
}

// LikeEdge is the relation "actor likes target".
func LikeEdge(actor string, target models.LikeTarget) Edge {
	return Edge{
		kind:             "like_" + string(target.Kind),
		collection:       models.LikesCollection,
		actor:            actor,
		key:              docstore.Where(docstore.Eq("likedBy", actor), docstore.Eq(string(target.Kind), target.ID)),
		targetCollection: target.Collection(),
		targetID:         target.ID,
		build: func(id string, now time.Time) (docstore.Document, error) {
			like, err := models.NewLike(id, actor, target, now)
			if err != nil {
				return nil, err
			}
			return like.ToDocument(), nil
		},
	}
}

// SubscriptionEdge is the relation "subscriber subscribes to channel".
func SubscriptionEdge(subscriber, channel string) Edge {
	return Edge{
		kind:             "subscription",
		collection:       models.SubscriptionsCollection,
		actor:            subscriber,
		key:              docstore.Where(docstore.Eq("subscriber", subscriber), docstore.Eq("channel", channel)),
		targetCollection: models.UsersCollection,
		targetID:         channel,
		self:             subscriber == channel,
		build: func(id string, now time.Time) (docstore.Document, error) {
			return models.Subscription{
				ID:         id,
				Subscriber: subscriber,
				Channel:    channel,
				CreatedAt:  now,
				UpdatedAt:  now,
			}.ToDocument(), nil
		},
	}
}

// Result reports what a toggle did. Exactly one of Previous and Created is set.
type Result struct {
	Removed  bool
	Previous docstore.Document
	Created  docstore.Document
}

// Service toggles edges against a document store.
type Service struct {
	store              docstore.Store
	allowSelfSubscribe bool
	now                func() time.Time
	newID              func() string
}

// Option customises a Service.
type Option func(*Service)

// WithSelfSubscription controls whether a user may subscribe to themselves.
func WithSelfSubscription(allow bool) Option {
	return func(s *Service) { s.allowSelfSubscribe = allow }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store docstore.Store, opts ...Option) *Service {
	s := &Service{
		store:              store,
		allowSelfSubscribe: true,
		now:                func() time.Time { return time.Now().UTC() },
		newID:              uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Toggle removes the edge if it exists and creates it otherwise.
func (s *Service) Toggle(ctx context.Context, edge Edge) (Result, error) {
	logger := logging.FromContext(ctx).With(slog.String("edge", edge.kind), slog.String("actor", edge.actor))

	if edge.actor == "" || edge.targetID == "" {
		return Result{}, apperr.Validation("invalid toggle target")
	}
	if edge.self && !s.allowSelfSubscribe {
		return Result{}, apperr.Validation("cannot subscribe to your own channel")
	}

	if _, err := s.store.FindOne(ctx, edge.targetCollection, docstore.ByID(edge.targetID)); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Result{}, apperr.NotFound(targetNotFoundMessage(edge.targetCollection))
		}
		return Result{}, apperr.Internal("failed to load toggle target", err)
	}

	existing, err := s.store.FindOne(ctx, edge.collection, edge.key)
	switch {
	case err == nil:
		if _, err := s.store.DeleteOne(ctx, edge.collection, docstore.ByID(existing.ID())); err != nil {
			return Result{}, apperr.Internal("failed to remove "+edge.kind, err)
		}
		logger.Debug("edge removed", slog.String("id", existing.ID()))
		metrics.RecordToggle(edge.kind, true)
		return Result{Removed: true, Previous: existing}, nil
	case !errors.Is(err, docstore.ErrNotFound):
		return Result{}, apperr.Internal("failed to load "+edge.kind, err)
	}

	doc, err := edge.build(s.newID(), s.now())
	if err != nil {
		return Result{}, apperr.Validation(err.Error())
	}
	if err := s.store.InsertOne(ctx, edge.collection, doc); err != nil {
		if !errors.Is(err, docstore.ErrConflict) {
			return Result{}, apperr.Internal("failed to create "+edge.kind, err)
		}
		// A concurrent toggle created the same edge first.
		winner, readErr := s.store.FindOne(ctx, edge.collection, edge.key)
		if readErr != nil {
			return Result{}, apperr.Conflict("concurrent " + edge.kind + " update, retry").Wrap(err)
		}
		logger.Debug("edge create lost race", slog.String("id", winner.ID()))
		return Result{Created: winner}, nil
	}

	logger.Debug("edge created", slog.String("id", doc.ID()))
	metrics.RecordToggle(edge.kind, false)
	return Result{Created: doc}, nil
}

func targetNotFoundMessage(collection string) string {
	switch collection {
	case models.VideosCollection:
		return "video not found"
	case models.CommentsCollection:
		return "comment not found"
	default:
		return "channel not found"
	}
}
