//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/oljefondvakt/fundwatch/internal/platform/logger"
	"github.com/oljefondvakt/fundwatch/internal/platform/postgres"
)

// URL environment variables, checked in order.
const (
	EnvDatabaseURL      = "DATABASE_URL"
	EnvStoreDatabaseURL = "FUNDWATCH_STORE_DATABASE_URL"
)

// goose keeps global state, so migrations run once per test binary.
var (
	migrateOnce sync.Once
	migrateErr  error
)

// DatabaseURL returns the test database URL or "" when none is set.
func DatabaseURL() string {
	for _, name := range []string{EnvDatabaseURL, EnvStoreDatabaseURL} {
		if url := os.Getenv(name); url != "" {
			return url
		}
	}
	return ""
}

// Open connects to the test database, applies migrations and registers
// cleanup. The test is skipped when no database URL is set.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	url := DatabaseURL()
	if url == "" {
		t.Skip(EnvDatabaseURL + " not set - skipping integration test")
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, url)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	})

	migrateOnce.Do(func() {
		migrateErr = postgres.Migrate(ctx, db, logger.Discard())
	})
	if migrateErr != nil {
		t.Fatalf("failed to migrate test database: %v", migrateErr)
	}
	return db
}

// Truncate deletes every investment. Tests that call it must not run in
// parallel with other tests on the same database.
func Truncate(t *testing.T, db *sql.DB) {
	t.Helper()
	if _, err := db.Exec("TRUNCATE investments"); err != nil {
		t.Fatalf("failed to truncate investments: %v", err)
	}
}

// WithTx runs fn in a transaction that is rolled back afterwards.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	defer func() {
		// sql.ErrTxDone is expected if fn already ended the transaction.
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	fn(t, tx)
}
