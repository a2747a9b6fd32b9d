// Package pgstore implements docstore.Store on a single PostgreSQL (or
// CockroachDB) JSONB table created by the embedded migrations.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/docstore"
)

const maxTxAttempts = 3

// Store persists documents in the documents table.
type Store struct {
	pool db.Pool
}

var _ docstore.Store = (*Store)(nil)

// New constructs a store backed by the given pool.
func New(pool db.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) InsertOne(ctx context.Context, collection string, doc docstore.Document) error {
	doc = docstore.NormalizeDocument(doc)
	id := doc.ID()
	if id == "" {
		return fmt.Errorf("pgstore insert into %s: missing _id", collection)
	}
	raw, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
        INSERT INTO documents (collection, id, doc)
        VALUES ($1, $2, $3::jsonb)
    `, collection, id, raw)
	if err != nil {
		return mapError(fmt.Sprintf("insert into %s", collection), err)
	}
	return nil
}

func (s *Store) FindOne(ctx context.Context, collection string, filter docstore.Filter) (docstore.Document, error) {
	docs, err := s.Find(ctx, collection, filter, docstore.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, docstore.ErrNotFound
	}
	return docs[0], nil
}

func (s *Store) Find(ctx context.Context, collection string, filter docstore.Filter, opts docstore.FindOptions) ([]docstore.Document, error) {
	var q query
	where, err := q.where(collection, filter)
	if err != nil {
		return nil, err
	}
	sql := "SELECT doc FROM documents WHERE " + where + " ORDER BY " + q.orderBy(opts.Sort)
	if opts.Skip > 0 {
		sql += " OFFSET " + q.arg(opts.Skip)
	}
	if opts.Limit > 0 {
		sql += " LIMIT " + q.arg(opts.Limit)
	}

	rows, err := s.pool.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, mapError(fmt.Sprintf("find in %s", collection), err)
	}
	defer rows.Close()

	docs := []docstore.Document{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s document: %w", collection, err)
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(fmt.Sprintf("iterate %s", collection), err)
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context, collection string, filter docstore.Filter) (int64, error) {
	var q query
	where, err := q.where(collection, filter)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM documents WHERE "+where, q.args...).Scan(&count); err != nil {
		return 0, mapError(fmt.Sprintf("count %s", collection), err)
	}
	return count, nil
}

// UpdateOne locks the first matching row, applies upd in Go and writes the
// result back in the same transaction. The row lock re-evaluates the filter,
// so a filter on the current value behaves as a compare-and-swap.
func (s *Store) UpdateOne(ctx context.Context, collection string, filter docstore.Filter, upd docstore.Update) (int64, error) {
	var q query
	where, err := q.where(collection, filter)
	if err != nil {
		return 0, err
	}
	selectSQL := "SELECT id, doc FROM documents WHERE " + where + " ORDER BY seq LIMIT 1 FOR UPDATE"

	var matched int64
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		matched = 0
		var (
			id  string
			raw []byte
		)
		if err := tx.QueryRow(ctx, selectSQL, q.args...).Scan(&id, &raw); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return err
		}
		upd.Apply(doc)
		doc[docstore.IDField] = id
		encoded, err := encodeDocument(doc)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
            UPDATE documents SET doc = $3::jsonb
            WHERE collection = $1 AND id = $2
        `, collection, id, encoded); err != nil {
			return err
		}
		matched = 1
		return nil
	})
	if err != nil {
		return 0, mapError(fmt.Sprintf("update %s", collection), err)
	}
	return matched, nil
}

func (s *Store) DeleteOne(ctx context.Context, collection string, filter docstore.Filter) (int64, error) {
	var q query
	where, err := q.where(collection, filter)
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, `
        DELETE FROM documents
        WHERE collection = $1 AND id IN (
            SELECT id FROM documents WHERE `+where+` ORDER BY seq LIMIT 1
        )`, q.args...)
	if err != nil {
		return 0, mapError(fmt.Sprintf("delete from %s", collection), err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) EnsureIndexes(ctx context.Context, indexes []docstore.Index) error {
	for _, idx := range indexes {
		if _, err := s.pool.Exec(ctx, indexDDL(idx)); err != nil {
			return fmt.Errorf("create index %s: %w", idx.Name, err)
		}
	}
	return nil
}

// Ping checks connectivity for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

// inTx runs fn in a transaction, retrying serialization failures which
// CockroachDB reports for contended rows.
func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, fn)
		var pgErr *pgconn.PgError
		if err == nil || !errors.As(err, &pgErr) || pgErr.Code != "40001" {
			return err
		}
	}
	return err
}

func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", docstore.ErrConflict, pgErr.ConstraintName)
		case "23503":
			return docstore.ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
