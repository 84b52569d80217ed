package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// openTestDB opens a migrated SQLite database in a temp dir.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "crm.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := MigrateDB(db); err != nil {
		t.Fatalf("MigrateDB: %v", err)
	}
	return db
}

// TestMigrateDB_CreatesKVTable verifies the schema after migration.
func TestMigrateDB_CreatesKVTable(t *testing.T) {
	db := openTestDB(t)

	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='kv'").Scan(&name)
	if err != nil {
		t.Fatalf("kv table missing: %v", err)
	}

	var version int
	var dirty bool
	if err := db.QueryRow("SELECT version, dirty FROM schema_migrations").Scan(&version, &dirty); err != nil {
		t.Fatalf("schema_migrations: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("version = %d dirty = %v, want 1 clean", version, dirty)
	}
}

// TestMigrateDB_Idempotent runs the migrations twice.
func TestMigrateDB_Idempotent(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateDB(db); err != nil {
		t.Fatalf("second MigrateDB: %v", err)
	}
	if _, err := db.ExecContext(context.Background(),
		"INSERT INTO kv (scope, key, value, updated_at) VALUES ('s', 'k', x'00', '2022-09-09T10:00:00Z')"); err != nil {
		t.Errorf("insert after migrations: %v", err)
	}
}

// TestOpenDB_WAL verifies the journal mode pragma.
func TestOpenDB_WAL(t *testing.T) {
	db := openTestDB(t)
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}
