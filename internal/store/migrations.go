package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "memories: the core knowledge units",
		SQL: `
CREATE TABLE memories (
    id              INTEGER PRIMARY KEY,
    content         TEXT NOT NULL,
    compressed      TEXT,
    scope           TEXT NOT NULL DEFAULT 'global' CHECK (scope IN ('global', 'project')),
    project         TEXT,
    importance      INTEGER NOT NULL CHECK (importance BETWEEN 1 AND 9),
    usefulness      REAL NOT NULL DEFAULT 5.0,
    times_helpful   INTEGER NOT NULL DEFAULT 0,
    times_unhelpful INTEGER NOT NULL DEFAULT 0,
    status          TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'archived', 'consolidated')),
    level           INTEGER NOT NULL DEFAULT 1 CHECK (level BETWEEN 1 AND 3),
    parent_id       INTEGER REFERENCES memories(id),
    accessed_at     INTEGER,
    access_count    INTEGER NOT NULL DEFAULT 0,
    last_decay      INTEGER,
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);

CREATE INDEX idx_memories_status     ON memories(status);
CREATE INDEX idx_memories_level      ON memories(status, level);
CREATE INDEX idx_memories_usefulness ON memories(usefulness);
CREATE INDEX idx_memories_parent     ON memories(parent_id);
`,
	},
	{
		Version:     2,
		Description: "relationships: similar and derived_from edges",
		SQL: `
CREATE TABLE relationships (
    id          INTEGER PRIMARY KEY,
    source_id   INTEGER NOT NULL REFERENCES memories(id),
    target_id   INTEGER NOT NULL REFERENCES memories(id),
    rel_type    TEXT NOT NULL CHECK (rel_type IN ('similar', 'derived_from')),
    strength    REAL NOT NULL,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL,

    UNIQUE (source_id, target_id, rel_type)
);

CREATE INDEX idx_rel_source ON relationships(source_id);
CREATE INDEX idx_rel_target ON relationships(target_id);
CREATE INDEX idx_rel_type   ON relationships(rel_type);
`,
	},
	{
		Version:     3,
		Description: "feedback_events: append-only feedback audit trail",
		SQL: `
CREATE TABLE feedback_events (
    id            INTEGER PRIMARY KEY,
    memory_id     INTEGER NOT NULL REFERENCES memories(id),
    feedback_type TEXT NOT NULL CHECK (feedback_type IN ('helpful', 'unhelpful', 'outdated', 'incorrect')),
    context       TEXT,
    created_at    INTEGER NOT NULL
);

CREATE INDEX idx_feedback_memory  ON feedback_events(memory_id);
CREATE INDEX idx_feedback_created ON feedback_events(created_at DESC);
`,
	},
	{
		Version:     4,
		Description: "mem_vectors: embedding vectors for similarity clustering",
		SQL: `
CREATE TABLE mem_vectors (
    memory_id  INTEGER PRIMARY KEY REFERENCES memories(id) ON DELETE CASCADE,
    embedding  BLOB NOT NULL,
    model      TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
