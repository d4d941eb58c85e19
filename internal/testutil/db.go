package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/repositories"
	"github.com/stretchr/testify/require"
)

// NewSQLiteDB returns a migrated sqlite database living in the test's temp dir.
func NewSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "spycatagency.db")
	db, err := repositories.Open(ctx, repositories.DriverSQLite, path, repositories.DBOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repositories.Migrate(ctx, db, repositories.DriverSQLite))
	return db
}
