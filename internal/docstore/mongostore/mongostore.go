// Package mongostore implements docstore.Store on MongoDB and evaluates
// aggregation pipelines server side.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vidtube/backend/internal/docstore"
)

// Store wraps a database handle.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ docstore.Store = (*Store)(nil)

// Connect dials uri and verifies the deployment is reachable.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

func (s *Store) InsertOne(ctx context.Context, collection string, doc docstore.Document) error {
	doc = docstore.NormalizeDocument(doc)
	if doc.ID() == "" {
		return fmt.Errorf("mongostore insert into %s: missing _id", collection)
	}
	if _, err := s.db.Collection(collection).InsertOne(ctx, toBSON(doc)); err != nil {
		return mapError(fmt.Sprintf("insert into %s", collection), err)
	}
	return nil
}

func (s *Store) FindOne(ctx context.Context, collection string, filter docstore.Filter) (docstore.Document, error) {
	var raw bson.D
	err := s.db.Collection(collection).FindOne(ctx, compileFilter(filter)).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, docstore.ErrNotFound
		}
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	return documentFromBSON(raw), nil
}

func (s *Store) Find(ctx context.Context, collection string, filter docstore.Filter, opts docstore.FindOptions) ([]docstore.Document, error) {
	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		findOpts.SetSort(compileSort(opts.Sort))
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := s.db.Collection(collection).Find(ctx, compileFilter(filter), findOpts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	var raw []bson.D
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	docs := make([]docstore.Document, len(raw))
	for i, d := range raw {
		docs[i] = documentFromBSON(d)
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context, collection string, filter docstore.Filter) (int64, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, compileFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// UpdateOne relies on the server applying the filter and the modification
// atomically, which makes filters on current values compare-and-swaps.
func (s *Store) UpdateOne(ctx context.Context, collection string, filter docstore.Filter, upd docstore.Update) (int64, error) {
	coll := s.db.Collection(collection)
	if upd.Empty() {
		n, err := coll.CountDocuments(ctx, compileFilter(filter), options.Count().SetLimit(1))
		if err != nil {
			return 0, fmt.Errorf("update %s: %w", collection, err)
		}
		return n, nil
	}
	res, err := coll.UpdateOne(ctx, compileFilter(filter), compileUpdate(upd))
	if err != nil {
		return 0, mapError(fmt.Sprintf("update %s", collection), err)
	}
	return res.MatchedCount, nil
}

func (s *Store) DeleteOne(ctx context.Context, collection string, filter docstore.Filter) (int64, error) {
	res, err := s.db.Collection(collection).DeleteOne(ctx, compileFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", collection, err)
	}
	return res.DeletedCount, nil
}

func (s *Store) EnsureIndexes(ctx context.Context, indexes []docstore.Index) error {
	byCollection := make(map[string][]mongo.IndexModel)
	var order []string
	for _, idx := range indexes {
		if _, ok := byCollection[idx.Collection]; !ok {
			order = append(order, idx.Collection)
		}
		byCollection[idx.Collection] = append(byCollection[idx.Collection], indexModel(idx))
	}
	for _, collection := range order {
		if _, err := s.db.Collection(collection).Indexes().CreateMany(ctx, byCollection[collection]); err != nil {
			return fmt.Errorf("create indexes on %s: %w", collection, err)
		}
	}
	return nil
}

func indexModel(idx docstore.Index) mongo.IndexModel {
	keys := bson.D{}
	partial := bson.D{}
	for _, field := range idx.Fields {
		keys = append(keys, bson.E{Key: field, Value: 1})
		partial = append(partial, bson.E{Key: field, Value: bson.D{{Key: "$exists", Value: true}}})
	}
	opts := options.Index().SetName(idx.Name)
	if idx.Unique {
		opts.SetUnique(true)
	}
	if idx.Partial {
		opts.SetPartialFilterExpression(partial)
	}
	return mongo.IndexModel{Keys: keys, Options: opts}
}

// Ping checks connectivity for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func mapError(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", docstore.ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
