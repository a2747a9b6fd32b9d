package repositories

import (
	"fmt"

	"github.com/vidtube/backend/internal/docstore"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = docstore.ErrNotFound
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = docstore.ErrConflict
)

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireMatched(op string, matched int64, err error) error {
	if err != nil {
		return wrap(op, err)
	}
	if matched == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
