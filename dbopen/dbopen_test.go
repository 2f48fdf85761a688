package dbopen_test

import (
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/ainavigator/continuum/dbopen"
)

func TestOpenAppliesPragmas(t *testing.T) {
	// WHAT: Open applies foreign_keys, busy_timeout and synchronous pragmas.
	// WHY: Cascade deletes and ref_count updates depend on them.
	db := dbopen.OpenMemory(t)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}

	var bt int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&bt); err != nil {
		t.Fatal(err)
	}
	if bt != 10_000 {
		t.Fatalf("busy_timeout = %d, want 10000", bt)
	}

	var sync int
	if err := db.QueryRow("PRAGMA synchronous").Scan(&sync); err != nil {
		t.Fatal(err)
	}
	if sync != 1 { // NORMAL
		t.Fatalf("synchronous = %d, want 1", sync)
	}
}

func TestWithSchema(t *testing.T) {
	// WHAT: WithSchema executes DDL right after opening.
	db := dbopen.OpenMemory(t, dbopen.WithSchema(`CREATE TABLE sample (id TEXT PRIMARY KEY)`))
	if _, err := db.Exec(`INSERT INTO sample (id) VALUES ('a')`); err != nil {
		t.Fatalf("insert into schema-created table: %v", err)
	}
}

func TestWithMkdirAll(t *testing.T) {
	// WHAT: WithMkdirAll creates missing parent directories.
	path := filepath.Join(t.TempDir(), "nested", "dir", "store.db")
	db, err := dbopen.Open(path, dbopen.WithMkdirAll())
	if err != nil {
		t.Fatalf("open with mkdir: %v", err)
	}
	db.Close()
}

func TestWithoutForeignKeys(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithoutForeignKeys())
	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 0 {
		t.Fatalf("foreign_keys = %d, want 0", fk)
	}
}
