package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sqlx.DB, name string) bool {
	t.Helper()
	var exists bool
	require.NoError(t, db.Get(&exists, "SELECT COUNT(*) > 0 FROM sqlite_master WHERE type='table' AND name=?", name))
	return exists
}

func createTable(name string) func(*sql.Tx) error {
	return func(tx *sql.Tx) error {
		_, err := tx.Exec("CREATE TABLE " + name + " (id INTEGER PRIMARY KEY)")
		return err
	}
}

func TestOpen(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, VerifyConfiguration(context.Background(), db))
}

func TestDefaultDBPath(t *testing.T) {
	t.Run("with SKILLKIT_BASE_PATH", func(t *testing.T) {
		t.Setenv("SKILLKIT_BASE_PATH", "/custom/path")
		path, err := DefaultDBPath()
		require.NoError(t, err)
		assert.Equal(t, "/custom/path/state.db", path)
	})

	t.Run("without SKILLKIT_BASE_PATH", func(t *testing.T) {
		t.Setenv("SKILLKIT_BASE_PATH", "")
		path, err := DefaultDBPath()
		require.NoError(t, err)
		home, _ := os.UserHomeDir()
		assert.Equal(t, filepath.Join(home, ".skillkit", "state.db"), path)
	})
}

func TestMigrationRunnerOrdersAndSkipsApplied(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	migrations := []Migration{
		{
			Version:     20240101000002,
			Description: "Add column",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec("ALTER TABLE installs ADD COLUMN name TEXT")
				return err
			},
		},
		{Version: 20240101000001, Description: "Create table", Up: createTable("installs")},
	}

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run(ctx, migrations))
	require.NoError(t, runner.Run(ctx, migrations))

	versions, err := runner.GetAppliedVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{20240101000001, 20240101000002}, versions)
	assert.True(t, tableExists(t, db, "installs"))
}

func TestMigrationRunnerFailureRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	migrations := []Migration{
		{
			Version:     20240101000001,
			Description: "Broken",
			Up: func(tx *sql.Tx) error {
				if err := createTable("half")(tx); err != nil {
					return err
				}
				_, err := tx.Exec("THIS IS NOT SQL")
				return err
			},
		},
	}

	err := NewMigrationRunner(db).Run(ctx, migrations)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Broken")
	assert.False(t, tableExists(t, db, "half"))
}

func TestMigrationRunnerRollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	migrations := []Migration{
		{
			Version:     20240101000001,
			Description: "Create test table",
			Up:          createTable("test_table"),
			Down: func(tx *sql.Tx) error {
				_, err := tx.Exec("DROP TABLE test_table")
				return err
			},
		},
	}

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run(ctx, migrations))
	assert.True(t, tableExists(t, db, "test_table"))

	require.NoError(t, runner.Rollback(ctx, migrations))
	assert.False(t, tableExists(t, db, "test_table"))

	versions, err := runner.GetAppliedVersions(ctx)
	require.NoError(t, err)
	assert.Empty(t, versions)

	require.NoError(t, runner.Rollback(ctx, migrations), "nothing left to roll back")
}

func TestOpenAndMigrate(t *testing.T) {
	db, err := OpenAndMigrate(context.Background(), filepath.Join(t.TempDir(), "state.db"),
		[]Migration{{Version: 1, Description: "create", Up: createTable("things")}})
	require.NoError(t, err)
	defer db.Close()

	assert.True(t, tableExists(t, db, "things"))
}
