package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	if err != nil {
		t.Fatalf("tableExists query failed: %v", err)
	}
	return n > 0
}

func TestInitDatabase_CreatesSchema(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "state.db")

	db, err := InitDatabase(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"goose_db_version", "metadata", "check_cache", "usage_ledger", "offline_snapshot"} {
		require.True(t, tableExists(t, db, table), "table %s", table)
	}
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "state.db")

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db), "second run must be a no-op")
}

func TestRepositories_SurviveReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "state.db")
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	db, err := InitDatabase(ctx, dsn)
	require.NoError(t, err)
	repos := NewRepositories(db)
	require.NoError(t, repos.Metadata.Set(ctx, "enabled", []byte("1")))
	require.NoError(t, repos.Checks.Save(ctx, &models.CheckResult{ChildID: 2, Allowed: true, FetchedAt: now, ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, db.Close())

	db, err = InitDatabase(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()
	repos = NewRepositories(db)

	v, err := repos.Metadata.Get(ctx, "enabled")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	res, err := repos.Checks.Get(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.True(t, res.Allowed)
}
