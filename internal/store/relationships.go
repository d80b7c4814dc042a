package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Relationship edge types.
const (
	RelSimilar     = "similar"
	RelDerivedFrom = "derived_from"
)

// MaxStrength caps similar-edge strength growth from co-access learning.
const MaxStrength = 10.0

// Relationship is a weighted edge between two memories. similar edges are
// learned from co-access and decay; derived_from edges are permanent
// provenance links written by consolidation.
type Relationship struct {
	ID        int64   `json:"id"`
	SourceID  int64   `json:"source_id"`
	TargetID  int64   `json:"target_id"`
	Type      string  `json:"type"`
	Strength  float64 `json:"strength"`
	CreatedAt int64   `json:"created_at"`
	UpdatedAt int64   `json:"updated_at"`
}

// UpsertSimilar creates a similar edge at the given strength or adds to an
// existing one, capped at MaxStrength. Callers canonicalize the pair as
// (min, max) so reciprocal duplicates never exist.
func (db *DB) UpsertSimilar(sourceID, targetID int64, increment float64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO relationships (source_id, target_id, rel_type, strength, created_at, updated_at)
		VALUES (?, ?, 'similar', min(?, ?), ?, ?)
		ON CONFLICT(source_id, target_id, rel_type)
		DO UPDATE SET strength = min(?, strength + ?), updated_at = ?
	`, sourceID, targetID, increment, MaxStrength, now, now,
		MaxStrength, increment, now)
	if err != nil {
		return fmt.Errorf("upsert similar (%d,%d): %w", sourceID, targetID, err)
	}
	return nil
}

// CreateRelationship inserts an edge of any type at the given strength.
func (db *DB) CreateRelationship(sourceID, targetID int64, relType string, strength float64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO relationships (source_id, target_id, rel_type, strength, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sourceID, targetID, relType, strength, now, now)
	if err != nil {
		return fmt.Errorf("create relationship (%d,%d,%s): %w", sourceID, targetID, relType, err)
	}
	return nil
}

// QueryRelationships returns every edge touching the given memory id,
// in either direction.
func (db *DB) QueryRelationships(memoryID int64) ([]Relationship, error) {
	rows, err := db.Query(`
		SELECT id, source_id, target_id, rel_type, strength, created_at, updated_at
		FROM relationships WHERE source_id = ? OR target_id = ?
		ORDER BY id
	`, memoryID, memoryID)
	if err != nil {
		return nil, fmt.Errorf("query relationships %d: %w", memoryID, err)
	}
	defer rows.Close()
	return scanRelationships(rows)
}

// RelationshipsTouching returns every similar edge incident to any id in the
// given set. Used by the suggestion ranker.
func (db *DB) RelationshipsTouching(ids []int64) ([]Relationship, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ph := ""
	args := make([]any, 0, len(ids)*2)
	for i, id := range ids {
		if i > 0 {
			ph += ","
		}
		ph += "?"
		args = append(args, id)
	}
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := db.Query(`
		SELECT id, source_id, target_id, rel_type, strength, created_at, updated_at
		FROM relationships
		WHERE rel_type = 'similar' AND (source_id IN (`+ph+`) OR target_id IN (`+ph+`))
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("relationships touching: %w", err)
	}
	defer rows.Close()
	return scanRelationships(rows)
}

// DecayRelationships multiplies every similar edge's strength by factor and
// deletes edges whose strength falls below floor. derived_from provenance
// edges never decay. Returns (updated, deleted).
func (db *DB) DecayRelationships(factor, floor float64) (int, int, error) {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		UPDATE relationships SET strength = strength * ?, updated_at = ?
		WHERE rel_type = 'similar'
	`, factor, now)
	if err != nil {
		return 0, 0, fmt.Errorf("decay relationships: %w", err)
	}
	updated, _ := res.RowsAffected()

	res, err = db.Exec(`
		DELETE FROM relationships WHERE rel_type = 'similar' AND strength < ?
	`, floor)
	if err != nil {
		return int(updated), 0, fmt.Errorf("sweep weak relationships: %w", err)
	}
	deleted, _ := res.RowsAffected()

	return int(updated), int(deleted), nil
}

func scanRelationships(rows *sql.Rows) ([]Relationship, error) {
	var rels []Relationship
	for rows.Next() {
		var r Relationship
		if err := rows.Scan(&r.ID, &r.SourceID, &r.TargetID, &r.Type,
			&r.Strength, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}
