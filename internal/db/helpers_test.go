package db

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestDB creates a file-backed test database with migrations applied
func setupTestDB(t *testing.T) (*DB, *Repositories) {
	t.Helper()

	database, err := New(filepath.Join(t.TempDir(), "test.db"), DefaultOptions())
	require.NoError(t, err, "Failed to create test database")
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err, "Failed to get SQL DB")

	// Resolve migrations relative to this file so tests work from any directory
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to get current file path")
	moduleDir := filepath.Dir(filepath.Dir(filepath.Dir(filename)))

	err = RunMigrations(sqlDB, "file://"+filepath.Join(moduleDir, "migrations"))
	require.NoError(t, err, "Failed to run migrations")

	return database, NewRepositories(database)
}
