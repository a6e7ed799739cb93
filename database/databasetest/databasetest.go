// Package databasetest opens throwaway sqlite databases for package tests.
package databasetest

import (
	"path/filepath"
	"testing"

	"github.com/josh-vincent/roast-me-characters-sub001/config"
	"github.com/josh-vincent/roast-me-characters-sub001/database"
	"gorm.io/gorm"
)

// New returns a migrated sqlite database living in the test's temp dir.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(config.Database{
		Driver: "sqlite",
		URL:    filepath.Join(t.TempDir(), "roast.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	return db
}
