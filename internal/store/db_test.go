package store

import (
	"testing"
)

// testDB opens a fresh in-memory database for a test.
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMemory(t *testing.T) {
	db := testDB(t)
	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 4 {
		t.Errorf("SchemaVersion = %d, want 4", v)
	}
}

func TestTablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"schema_versions", "memories", "relationships", "feedback_events", "mem_vectors"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestMemoriesConstraints(t *testing.T) {
	db := testDB(t)

	// Valid insert
	_, err := db.Exec(`
		INSERT INTO memories (content, importance, created_at, updated_at)
		VALUES ('test', 5, 1000, 1000)
	`)
	if err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}

	// Importance out of range
	_, err = db.Exec(`
		INSERT INTO memories (content, importance, created_at, updated_at)
		VALUES ('test', 10, 1000, 1000)
	`)
	if err == nil {
		t.Error("expected error for importance 10, got nil")
	}

	// Invalid status
	_, err = db.Exec(`
		INSERT INTO memories (content, importance, status, created_at, updated_at)
		VALUES ('test', 5, 'gone', 1000, 1000)
	`)
	if err == nil {
		t.Error("expected error for invalid status, got nil")
	}

	// Invalid level
	_, err = db.Exec(`
		INSERT INTO memories (content, importance, level, created_at, updated_at)
		VALUES ('test', 5, 4, 1000, 1000)
	`)
	if err == nil {
		t.Error("expected error for level 4, got nil")
	}
}

func TestRelationshipsConstraints(t *testing.T) {
	db := testDB(t)

	if err := db.CreateMemory(&Memory{Content: "a", Importance: 5}); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateMemory(&Memory{Content: "b", Importance: 5}); err != nil {
		t.Fatal(err)
	}

	_, err := db.Exec(`
		INSERT INTO relationships (source_id, target_id, rel_type, strength, created_at, updated_at)
		VALUES (1, 2, 'similar', 0.5, 1000, 1000)
	`)
	if err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}

	// Duplicate (source, target, type) must be rejected
	_, err = db.Exec(`
		INSERT INTO relationships (source_id, target_id, rel_type, strength, created_at, updated_at)
		VALUES (1, 2, 'similar', 0.5, 1000, 1000)
	`)
	if err == nil {
		t.Error("expected error for duplicate edge, got nil")
	}

	// Invalid rel_type
	_, err = db.Exec(`
		INSERT INTO relationships (source_id, target_id, rel_type, strength, created_at, updated_at)
		VALUES (2, 1, 'friends', 0.5, 1000, 1000)
	`)
	if err == nil {
		t.Error("expected error for invalid rel_type, got nil")
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db := testDB(t)

	// Running migrate again should be a no-op
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 4 {
		t.Errorf("SchemaVersion after re-migrate = %d, want 4", v)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	db := testDB(t)

	var fk int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}
