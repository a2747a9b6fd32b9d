// Package memstore is an in-process docstore.Store used for local development
// and tests. It honours unique indexes and single-document atomicity.
package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vidtube/backend/internal/docstore"
)

type collection struct {
	order []string
	docs  map[string]docstore.Document
}

// Store keeps collections in memory behind a single mutex.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	indexes     map[string][]docstore.Index
}

var _ docstore.Store = (*Store)(nil)

// New constructs an empty store.
func New() *Store {
	return &Store{
		collections: make(map[string]*collection),
		indexes:     make(map[string][]docstore.Index),
	}
}

func (s *Store) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]docstore.Document)}
		s.collections[name] = c
	}
	return c
}

// InsertOne stores a copy of doc. The document must carry an _id.
func (s *Store) InsertOne(ctx context.Context, name string, doc docstore.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc = docstore.NormalizeDocument(doc).Clone()
	id := doc.ID()
	if id == "" {
		return fmt.Errorf("memstore insert into %s: missing _id", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(name)
	if _, exists := c.docs[id]; exists {
		return docstore.ErrConflict
	}
	if err := s.checkUniqueLocked(name, c, doc, ""); err != nil {
		return err
	}
	c.docs[id] = doc
	c.order = append(c.order, id)
	return nil
}

func (s *Store) FindOne(ctx context.Context, name string, filter docstore.Filter) (docstore.Document, error) {
	docs, err := s.Find(ctx, name, filter, docstore.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, docstore.ErrNotFound
	}
	return docs[0], nil
}

// Find returns copies of the matching documents in insertion order unless a
// sort is requested.
func (s *Store) Find(ctx context.Context, name string, filter docstore.Filter, opts docstore.FindOptions) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := s.matchLocked(name, filter)
	out := make([]docstore.Document, len(matched))
	for i, doc := range matched {
		out[i] = doc.Clone()
	}
	s.mu.RUnlock()

	docstore.SortDocuments(out, opts.Sort)
	return docstore.Window(out, opts.Skip, opts.Limit), nil
}

func (s *Store) Count(ctx context.Context, name string, filter docstore.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.matchLocked(name, filter))), nil
}

// UpdateOne applies upd to the first matching document. The match and the
// write happen under the same lock, so a filter on the current value acts as
// a compare-and-swap.
func (s *Store) UpdateOne(ctx context.Context, name string, filter docstore.Filter, upd docstore.Update) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.matchLocked(name, filter)
	if len(matched) == 0 {
		return 0, nil
	}
	current := matched[0]
	next := current.Clone()
	upd.Apply(next)
	next[docstore.IDField] = current.ID()

	c := s.coll(name)
	if err := s.checkUniqueLocked(name, c, next, current.ID()); err != nil {
		return 0, err
	}
	c.docs[current.ID()] = next
	return 1, nil
}

func (s *Store) DeleteOne(ctx context.Context, name string, filter docstore.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.matchLocked(name, filter)
	if len(matched) == 0 {
		return 0, nil
	}
	id := matched[0].ID()
	c := s.coll(name)
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return 1, nil
}

// EnsureIndexes registers index definitions. Only unique indexes affect
// behaviour; existing documents are not re-validated.
func (s *Store) EnsureIndexes(ctx context.Context, indexes []docstore.Index) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, idx := range indexes {
		if !idx.Unique {
			continue
		}
		s.indexes[idx.Collection] = append(s.indexes[idx.Collection], idx)
	}
	return nil
}

func (s *Store) Close(context.Context) error { return nil }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) matchLocked(name string, filter docstore.Filter) []docstore.Document {
	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	if id, ok := idLookup(filter); ok {
		doc, exists := c.docs[id]
		if !exists || !filter.Matches(doc) {
			return nil
		}
		return []docstore.Document{doc}
	}
	var out []docstore.Document
	for _, id := range c.order {
		if doc := c.docs[id]; filter.Matches(doc) {
			out = append(out, doc)
		}
	}
	return out
}

func idLookup(filter docstore.Filter) (string, bool) {
	for _, cond := range filter {
		if cond.Field == docstore.IDField && cond.Op == docstore.OpEq {
			id, ok := cond.Value.(string)
			return id, ok
		}
	}
	return "", false
}

func (s *Store) checkUniqueLocked(name string, c *collection, doc docstore.Document, selfID string) error {
	for _, idx := range s.indexes[name] {
		key, ok := indexKey(idx, doc)
		if !ok {
			continue
		}
		for id, other := range c.docs {
			if id == selfID || id == doc.ID() {
				continue
			}
			if otherKey, ok := indexKey(idx, other); ok && otherKey == key {
				return fmt.Errorf("%w: index %s", docstore.ErrConflict, idx.Name)
			}
		}
	}
	return nil
}

func indexKey(idx docstore.Index, doc docstore.Document) (string, bool) {
	parts := make([]string, len(idx.Fields))
	for i, field := range idx.Fields {
		v, ok := docstore.Get(doc, field)
		if !ok {
			if idx.Partial {
				return "", false
			}
			v = nil
		}
		parts[i] = fmt.Sprintf("%T:%v", v, v)
	}
	return strings.Join(parts, "\x00"), true
}
