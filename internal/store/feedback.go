package store

import (
	"fmt"
	"time"
)

// Feedback types.
const (
	FeedbackHelpful   = "helpful"
	FeedbackUnhelpful = "unhelpful"
	FeedbackOutdated  = "outdated"
	FeedbackIncorrect = "incorrect"
)

// FeedbackEvent is an append-only audit record. Events are never mutated or
// deleted; the scorer reads only the aggregate counters on the memory row.
type FeedbackEvent struct {
	ID        int64  `json:"id"`
	MemoryID  int64  `json:"memory_id"`
	Type      string `json:"type"`
	Context   string `json:"context,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// ValidFeedbackType reports whether t is one of the four feedback types.
func ValidFeedbackType(t string) bool {
	switch t {
	case FeedbackHelpful, FeedbackUnhelpful, FeedbackOutdated, FeedbackIncorrect:
		return true
	}
	return false
}

// RecordFeedbackEvent appends a feedback event for a memory.
func (db *DB) RecordFeedbackEvent(memoryID int64, feedbackType, context string) (*FeedbackEvent, error) {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		INSERT INTO feedback_events (memory_id, feedback_type, context, created_at)
		VALUES (?, ?, NULLIF(?, ''), ?)
	`, memoryID, feedbackType, context, now)
	if err != nil {
		return nil, fmt.Errorf("record feedback event: %w", err)
	}
	id, _ := res.LastInsertId()
	return &FeedbackEvent{
		ID:        id,
		MemoryID:  memoryID,
		Type:      feedbackType,
		Context:   context,
		CreatedAt: now,
	}, nil
}

// ListFeedback returns the feedback log for a memory, oldest first.
func (db *DB) ListFeedback(memoryID int64) ([]FeedbackEvent, error) {
	rows, err := db.Query(`
		SELECT id, memory_id, feedback_type, COALESCE(context, ''), created_at
		FROM feedback_events WHERE memory_id = ? ORDER BY id
	`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("list feedback %d: %w", memoryID, err)
	}
	defer rows.Close()

	var events []FeedbackEvent
	for rows.Next() {
		var e FeedbackEvent
		if err := rows.Scan(&e.ID, &e.MemoryID, &e.Type, &e.Context, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
