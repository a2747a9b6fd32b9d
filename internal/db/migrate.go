package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	migrationMaxRetries  = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

// gooseUpContext and gooseStatusContext are seams for testing.
var (
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.UpContext(ctx, db, dir, opts...)
	}
	gooseStatusContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.StatusContext(ctx, db, dir, opts...)
	}
)

func setupGoose(out io.Writer) error {
	goose.SetBaseFS(migrationFS)
	goose.SetLogger(log.New(out, "", log.LstdFlags))
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Migrate applies every pending embedded migration. Transient errors such as
// serialization failures are retried with exponential backoff.
func Migrate(ctx context.Context, sqlDB *sql.DB, out io.Writer) error {
	if err := setupGoose(out); err != nil {
		return err
	}

	var attempt int
	for attempt = 0; attempt < migrationMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * migrationBaseBackoff
			if backoff > migrationMaxBackoff {
				backoff = migrationMaxBackoff
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := gooseUpContext(ctx, sqlDB, "migrations")
		if err == nil {
			return nil
		}
		if shouldRetryMigration(err) && attempt < migrationMaxRetries-1 {
			fmt.Fprintf(out, "transient error applying migrations (attempt %d/%d): %v\n", attempt+1, migrationMaxRetries, err)
			continue
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	return fmt.Errorf("apply migrations: exceeded max retries (%d)", attempt)
}

// MigrationStatus prints the applied state of every embedded migration.
func MigrationStatus(ctx context.Context, sqlDB *sql.DB, out io.Writer) error {
	if err := setupGoose(out); err != nil {
		return err
	}
	if err := gooseStatusContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return nil
}

func shouldRetryMigration(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := retryablePgErrorCodes[pgErr.Code]; ok {
			return true
		}
	}

	if errors.Is(err, pgx.ErrTxClosed) {
		return true
	}

	return false
}
