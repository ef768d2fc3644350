// Package storetest opens throwaway in-memory databases for tests.
package storetest

import (
	"context"
	"testing"

	"clinic-management-server/internal/config"
	"clinic-management-server/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// New returns a migrated in-memory SQLite database private to the test.
func New(t testing.TB) *store.DB {
	t.Helper()
	db, err := store.Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.Shared(context.Background()).DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
