package db

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
)

func newMockDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func stubGooseUp(t *testing.T, fn func(calls int) error) *int {
	t.Helper()
	original := gooseUpContext
	t.Cleanup(func() { gooseUpContext = original })

	calls := 0
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		calls++
		if dir != "migrations" {
			t.Fatalf("unexpected migrations dir %q", dir)
		}
		return fn(calls)
	}
	return &calls
}

func TestMigrateSuccess(t *testing.T) {
	calls := stubGooseUp(t, func(int) error { return nil })

	if err := Migrate(context.Background(), newMockDB(t), &bytes.Buffer{}); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if *calls != 1 {
		t.Fatalf("expected a single goose run, got %d", *calls)
	}
}

func TestMigrateRetriesTransientErrors(t *testing.T) {
	calls := stubGooseUp(t, func(call int) error {
		if call == 1 {
			return fmt.Errorf("run migration: %w", &pgconn.PgError{Code: "40001"})
		}
		return nil
	})

	var out bytes.Buffer
	if err := Migrate(context.Background(), newMockDB(t), &out); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if *calls != 2 {
		t.Fatalf("expected a retry, got %d calls", *calls)
	}
	if !strings.Contains(out.String(), "transient error") {
		t.Fatalf("expected retry to be logged, got %q", out.String())
	}
}

func TestMigrateStopsOnPermanentErrors(t *testing.T) {
	syntaxErr := &pgconn.PgError{Code: "42601", Message: "syntax error"}
	calls := stubGooseUp(t, func(int) error { return syntaxErr })

	err := Migrate(context.Background(), newMockDB(t), &bytes.Buffer{})
	if !errors.Is(err, syntaxErr) {
		t.Fatalf("expected wrapped syntax error, got %v", err)
	}
	if *calls != 1 {
		t.Fatalf("expected no retry, got %d calls", *calls)
	}
}

func TestMigrateGivesUpAfterMaxRetries(t *testing.T) {
	calls := stubGooseUp(t, func(int) error { return &pgconn.PgError{Code: "40P01"} })

	if err := Migrate(context.Background(), newMockDB(t), &bytes.Buffer{}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if *calls != migrationMaxRetries {
		t.Fatalf("expected %d attempts, got %d", migrationMaxRetries, *calls)
	}
}

func TestMigrationStatus(t *testing.T) {
	original := gooseStatusContext
	t.Cleanup(func() { gooseStatusContext = original })

	gooseStatusContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("relation goose_db_version does not exist")
	}
	if err := MigrationStatus(context.Background(), newMockDB(t), &bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), "migration status") {
		t.Fatalf("expected wrapped status error, got %v", err)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected embedded migrations")
	}
	body, err := migrationFS.ReadFile("migrations/" + entries[0].Name())
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if !strings.Contains(string(body), "+goose Up") {
		t.Fatalf("expected goose annotations in %s", entries[0].Name())
	}
}

func TestShouldRetryMigration(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":           {err: nil, want: false},
		"deadline":      {err: context.DeadlineExceeded, want: true},
		"lock":          {err: &pgconn.PgError{Code: "55P03"}, want: true},
		"unique":        {err: &pgconn.PgError{Code: "23505"}, want: false},
		"generic error": {err: errors.New("boom"), want: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := shouldRetryMigration(tc.err); got != tc.want {
				t.Fatalf("shouldRetryMigration() = %v, want %v", got, tc.want)
			}
		})
	}
}
