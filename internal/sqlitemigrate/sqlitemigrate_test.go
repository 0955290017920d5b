package sqlitemigrate

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query).Scan(&n))
	return n
}

func TestApplyRecordsEachFileOnce(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()
	files := fstest.MapFS{
		"migrations/001_wallets.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE wallets(user_id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE wallets;")},
		"migrations/002_groups.sql":  {Data: []byte("CREATE TABLE investor_groups(name TEXT PRIMARY KEY);")},
	}

	require.NoError(t, Apply(ctx, db, files, "migrations"))
	require.NoError(t, Apply(ctx, db, files, "migrations"))

	require.Equal(t, 2, countRows(t, db, "SELECT COUNT(*) FROM schema_migrations"))
	require.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'wallets'"))
	require.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM schema_migrations WHERE name = 'migrations/001_wallets.sql'"))
}

func TestApplyLeavesFailedMigrationUnrecorded(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()
	bad := fstest.MapFS{"001_bad.sql": {Data: []byte("-- +migrate Up\nCREAT TABLE nope(id INT);")}}

	require.Error(t, Apply(ctx, db, bad, ""))
	require.Equal(t, 0, countRows(t, db, "SELECT COUNT(*) FROM schema_migrations"))

	fixed := fstest.MapFS{"001_bad.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE nope(id INT);")}}
	require.NoError(t, Apply(ctx, db, fixed, ""))
	require.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM schema_migrations"))
}

func TestUpSection(t *testing.T) {
	require.Equal(t, "\nA;\n", UpSection("-- +migrate Up\nA;\n-- +migrate Down\nB;"))
	require.Equal(t, "A;", UpSection("A;"))
}
