// Package testutil provides helpers shared by package tests.
package testutil

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"taskboard/configs"
	"taskboard/repository/sqlstore"
)

// NewStore returns a migrated store backed by a private in-memory SQLite database.
// The store is closed when the test finishes.
func NewStore(t *testing.T) *sqlstore.Store {
	t.Helper()

	db, err := sqlstore.NewConnection(&configs.DatabaseConfig{
		Driver: "sqlite",
		URL:    ":memory:",
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := sqlstore.RunMigrations(context.Background(), db, zap.NewNop()); err != nil {
		db.Close()
		t.Fatalf("migrating test database: %v", err)
	}

	store, err := sqlstore.NewTaskRepository(db)
	if err != nil {
		db.Close()
		t.Fatalf("creating store: %v", err)
	}

	t.Cleanup(func() { store.Close() })
	return store
}
