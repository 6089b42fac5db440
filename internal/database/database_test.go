package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndMigrateSQLite(t *testing.T) {
	db, err := New(SQLite, filepath.Join(t.TempDir(), "wiki.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))
	// Migrating twice is a no-op.
	require.NoError(t, Migrate(ctx, db))

	for _, table := range []string{"users", "identities", "pages", "revisions", "simple_pages"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}
}

func TestNewUnsupportedDriver(t *testing.T) {
	_, err := New("mysql", "whatever")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: Postgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.Rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &DB{Dialect: SQLite}
	assert.Equal(t, "SELECT ? FROM t", lite.Rebind("SELECT ? FROM t"))
}

func TestIsUniqueViolation(t *testing.T) {
	db, err := New(SQLite, filepath.Join(t.TempDir(), "wiki.db"))
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))

	_, err = db.ExecContext(ctx, "INSERT INTO pages (title, created_at) VALUES (?, CURRENT_TIMESTAMP)", "StartPage")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO pages (title, created_at) VALUES (?, CURRENT_TIMESTAMP)", "StartPage")
	require.Error(t, err)

	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsTransient(err))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}
