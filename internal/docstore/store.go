// Package docstore defines the document store used by every repository and by
// the aggregation engine, together with the value semantics shared by its
// backends (memstore, pgstore and mongostore).
package docstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates no document matched the filter.
	ErrNotFound = errors.New("document not found")
	// ErrConflict indicates a write would violate a unique index.
	ErrConflict = errors.New("document conflict")
)

// SortKey orders query results by a dotted field path.
type SortKey struct {
	Field string
	Desc  bool
}

func Asc(field string) SortKey { return SortKey{Field: field} }
func Desc(field string) SortKey { return SortKey{Field: field, Desc: true} }

// FindOptions shapes a Find call. Limit zero means unbounded.
type FindOptions struct {
	Sort  []SortKey
	Skip  int64
	Limit int64
}

// Index declares a secondary index. Partial indexes only cover documents in
// which every indexed field is present, which is how the Like uniqueness is
// scoped to its target kind.
type Index struct {
	Collection string
	Name       string
	Fields     []string
	Unique     bool
	Partial    bool
}

// Store is a collection-oriented document database. Each write touches a
// single document atomically.
type Store interface {
	InsertOne(ctx context.Context, collection string, doc Document) error
	FindOne(ctx context.Context, collection string, filter Filter) (Document, error)
	Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]Document, error)
	Count(ctx context.Context, collection string, filter Filter) (int64, error)
	// UpdateOne applies upd to the first document matching filter and
	// returns the number of matched documents (0 or 1). A filter that
	// includes the current value of a field makes the write a compare-and-swap.
	UpdateOne(ctx context.Context, collection string, filter Filter, upd Update) (int64, error)
	DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error)
	EnsureIndexes(ctx context.Context, indexes []Index) error
	Close(ctx context.Context) error
}
