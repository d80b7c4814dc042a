package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Memory statuses.
const (
	StatusActive       = "active"
	StatusArchived     = "archived"
	StatusConsolidated = "consolidated"
)

// Memory scopes.
const (
	ScopeGlobal  = "global"
	ScopeProject = "project"
)

// Memory is one stored unit of knowledge. Usefulness is derived by the
// engine's scorer and never set directly by callers.
type Memory struct {
	ID             int64   `json:"id"`
	Content        string  `json:"content"`
	Compressed     string  `json:"compressed,omitempty"` // compact symbolic form, owned by the encoding layer
	Scope          string  `json:"scope"`                // "global" or "project"
	Project        string  `json:"project,omitempty"`
	Importance     int     `json:"importance"` // 1..9, set at creation
	Usefulness     float64 `json:"usefulness"`
	TimesHelpful   int     `json:"times_helpful"`
	TimesUnhelpful int     `json:"times_unhelpful"`
	Status         string  `json:"status"` // active, archived, consolidated
	Level          int     `json:"level"`  // 1 raw, 2 pattern, 3 principle
	ParentID       *int64  `json:"parent_id,omitempty"` // set when status = consolidated
	AccessedAt     *int64  `json:"accessed_at,omitempty"`
	AccessCount    int     `json:"access_count"`
	LastDecay      *int64  `json:"last_decay,omitempty"`
	CreatedAt      int64   `json:"created_at"`
	UpdatedAt      int64   `json:"updated_at"`
}

const memoryColumns = `id, content, compressed, scope, project, importance, usefulness,
	times_helpful, times_unhelpful, status, level, parent_id,
	accessed_at, access_count, last_decay, created_at, updated_at`

// CreateMemory inserts a new memory with the neutral lifecycle defaults:
// status active, level 1 (unless set for an abstraction), usefulness 5.0.
func (db *DB) CreateMemory(m *Memory) error {
	if m.Importance < 1 || m.Importance > 9 {
		return fmt.Errorf("create memory: importance %d out of range [1,9]", m.Importance)
	}
	if m.Scope == "" {
		m.Scope = ScopeGlobal
	}
	if m.Status == "" {
		m.Status = StatusActive
	}
	if m.Level == 0 {
		m.Level = 1
	}
	if m.Usefulness == 0 {
		m.Usefulness = 5.0
	}

	now := time.Now().UnixMilli()
	result, err := db.Exec(`
		INSERT INTO memories (content, compressed, scope, project, importance, usefulness,
			times_helpful, times_unhelpful, status, level, parent_id,
			accessed_at, access_count, last_decay, created_at, updated_at)
		VALUES (?, ?, ?, NULLIF(?, ''), ?, ?, 0, 0, ?, ?, ?, NULL, 0, NULL, ?, ?)
	`, m.Content, m.Compressed, m.Scope, m.Project, m.Importance, m.Usefulness,
		m.Status, m.Level, m.ParentID, now, now)
	if err != nil {
		return fmt.Errorf("create memory: %w", err)
	}

	id, _ := result.LastInsertId()
	m.ID = id
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

// GetMemory returns a memory by id, or nil if not found. Archived and
// consolidated memories remain reachable by id.
func (db *DB) GetMemory(id int64) (*Memory, error) {
	row := db.QueryRow(`SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory %d: %w", id, err)
	}
	return m, nil
}

// MemoryFilter narrows QueryMemories. Zero values mean "any".
type MemoryFilter struct {
	Status string
	Level  int
	Scope  string
	Limit  int
}

// QueryMemories returns memories matching the filter, ordered by id.
func (db *DB) QueryMemories(f MemoryFilter) ([]Memory, error) {
	var conds []string
	var args []any
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.Level != 0 {
		conds = append(conds, "level = ?")
		args = append(args, f.Level)
	}
	if f.Scope != "" {
		conds = append(conds, "scope = ?")
		args = append(args, f.Scope)
	}

	query := `SELECT ` + memoryColumns + ` FROM memories`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// GetMemoriesByIDs returns memories for the given ids, ordered by id.
func (db *DB) GetMemoriesByIDs(ids []int64) ([]Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = "?"
		args[i] = id
	}

	rows, err := db.Query(`SELECT `+memoryColumns+` FROM memories
		WHERE id IN (`+strings.Join(ph, ",")+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("get memories by ids: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// UpdateStatus moves a memory to a new status. parentID must be set when
// the new status is consolidated and nil otherwise.
func (db *DB) UpdateStatus(id int64, status string, parentID *int64) error {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		UPDATE memories SET status = ?, parent_id = ?, updated_at = ? WHERE id = ?
	`, status, parentID, now, id)
	if err != nil {
		return fmt.Errorf("update status %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("update status: memory %d not found", id)
	}
	return nil
}

// UpdateUsefulness persists a recomputed usefulness score and the decay stamp.
func (db *DB) UpdateUsefulness(id int64, score float64, lastDecay int64) error {
	_, err := db.Exec(`
		UPDATE memories SET usefulness = ?, last_decay = ?, updated_at = ? WHERE id = ?
	`, score, lastDecay, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("update usefulness %d: %w", id, err)
	}
	return nil
}

// IncrementFeedback bumps the helpful/unhelpful counters. Deltas are 0 or 1;
// counters never decrease.
func (db *DB) IncrementFeedback(id int64, helpfulDelta, unhelpfulDelta int) error {
	_, err := db.Exec(`
		UPDATE memories SET times_helpful = times_helpful + ?,
			times_unhelpful = times_unhelpful + ?, updated_at = ?
		WHERE id = ?
	`, helpfulDelta, unhelpfulDelta, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("increment feedback %d: %w", id, err)
	}
	return nil
}

// TouchMemory records a retrieval: accessed_at is set to now and the access
// count incremented.
func (db *DB) TouchMemory(id int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE memories SET accessed_at = ?, access_count = access_count + 1 WHERE id = ?
	`, now, id)
	if err != nil {
		return fmt.Errorf("touch memory %d: %w", id, err)
	}
	return nil
}

// DeleteMemory permanently removes a memory, its embedding, and every edge
// touching it, in one transaction. Irreversible.
func (db *DB) DeleteMemory(id int64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("delete memory %d: begin: %w", id, err)
	}
	steps := []string{
		"DELETE FROM mem_vectors WHERE memory_id = ?",
		"DELETE FROM relationships WHERE source_id = ? OR target_id = ?",
		"DELETE FROM memories WHERE id = ?",
	}
	for _, q := range steps {
		args := []any{id}
		if strings.Contains(q, "target_id") {
			args = append(args, id)
		}
		if _, err := tx.Exec(q, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("delete memory %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete memory %d: commit: %w", id, err)
	}
	return nil
}

// ApplyConsolidation atomically creates the abstraction memory, flips each
// source to consolidated with the new parent id, and writes a derived_from
// edge per source. A failure rolls the whole cluster back so no memory is
// ever left consolidated without a valid parent.
func (db *DB) ApplyConsolidation(abstraction *Memory, sourceIDs []int64, edgeStrength float64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("consolidate: begin: %w", err)
	}

	now := time.Now().UnixMilli()
	res, err := tx.Exec(`
		INSERT INTO memories (content, compressed, scope, project, importance, usefulness,
			times_helpful, times_unhelpful, status, level, parent_id,
			accessed_at, access_count, last_decay, created_at, updated_at)
		VALUES (?, ?, ?, NULLIF(?, ''), ?, 5.0, 0, 0, 'active', ?, NULL, NULL, 0, NULL, ?, ?)
	`, abstraction.Content, abstraction.Compressed, abstraction.Scope, abstraction.Project,
		abstraction.Importance, abstraction.Level, now, now)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("consolidate: create abstraction: %w", err)
	}
	parentID, _ := res.LastInsertId()

	for _, srcID := range sourceIDs {
		if _, err := tx.Exec(`
			UPDATE memories SET status = 'consolidated', parent_id = ?, updated_at = ? WHERE id = ?
		`, parentID, now, srcID); err != nil {
			tx.Rollback()
			return fmt.Errorf("consolidate: mark source %d: %w", srcID, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO relationships (source_id, target_id, rel_type, strength, created_at, updated_at)
			VALUES (?, ?, 'derived_from', ?, ?, ?)
		`, srcID, parentID, edgeStrength, now, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("consolidate: link source %d: %w", srcID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("consolidate: commit: %w", err)
	}

	abstraction.ID = parentID
	abstraction.Status = StatusActive
	abstraction.Usefulness = 5.0
	abstraction.CreatedAt = now
	abstraction.UpdatedAt = now
	return nil
}

func scanMemory(row *sql.Row) (*Memory, error) {
	var m Memory
	var compressed, project sql.NullString
	var parentID, accessedAt, lastDecay sql.NullInt64
	err := row.Scan(&m.ID, &m.Content, &compressed, &m.Scope, &project, &m.Importance,
		&m.Usefulness, &m.TimesHelpful, &m.TimesUnhelpful, &m.Status, &m.Level,
		&parentID, &accessedAt, &m.AccessCount, &lastDecay, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Compressed = compressed.String
	m.Project = project.String
	if parentID.Valid {
		m.ParentID = &parentID.Int64
	}
	if accessedAt.Valid {
		m.AccessedAt = &accessedAt.Int64
	}
	if lastDecay.Valid {
		m.LastDecay = &lastDecay.Int64
	}
	return &m, nil
}

func scanMemories(rows *sql.Rows) ([]Memory, error) {
	var memories []Memory
	for rows.Next() {
		var m Memory
		var compressed, project sql.NullString
		var parentID, accessedAt, lastDecay sql.NullInt64
		if err := rows.Scan(&m.ID, &m.Content, &compressed, &m.Scope, &project, &m.Importance,
			&m.Usefulness, &m.TimesHelpful, &m.TimesUnhelpful, &m.Status, &m.Level,
			&parentID, &accessedAt, &m.AccessCount, &lastDecay, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		m.Compressed = compressed.String
		m.Project = project.String
		if parentID.Valid {
			m.ParentID = &parentID.Int64
		}
		if accessedAt.Valid {
			m.AccessedAt = &accessedAt.Int64
		}
		if lastDecay.Valid {
			m.LastDecay = &lastDecay.Int64
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}
