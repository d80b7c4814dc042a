package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/birchwood/mnemo/internal/store"
)

// RecordFeedback appends a feedback event for a memory, bumps its counters,
// and recomputes its usefulness score.
//
// helpful increments times_helpful; unhelpful and incorrect increment
// times_unhelpful; outdated increments neither — it flags staleness without
// penalizing the future helpfulness ratio — but is still logged and still
// triggers a rescore.
func (e *Engine) RecordFeedback(ctx context.Context, memoryID int64, feedbackType, context_ string) (*store.FeedbackEvent, error) {
	if !store.ValidFeedbackType(feedbackType) {
		return nil, fmt.Errorf("invalid feedback type %q", feedbackType)
	}

	m, err := e.DB.GetMemory(memoryID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("record feedback %d: %w", memoryID, ErrNotFound)
	}

	event, err := e.DB.RecordFeedbackEvent(memoryID, feedbackType, context_)
	if err != nil {
		return nil, err
	}

	helpfulDelta, unhelpfulDelta := 0, 0
	switch feedbackType {
	case store.FeedbackHelpful:
		helpfulDelta = 1
	case store.FeedbackUnhelpful, store.FeedbackIncorrect:
		unhelpfulDelta = 1
	}
	if helpfulDelta+unhelpfulDelta > 0 {
		if err := e.DB.IncrementFeedback(memoryID, helpfulDelta, unhelpfulDelta); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	m.TimesHelpful += helpfulDelta
	m.TimesUnhelpful += unhelpfulDelta
	if err := e.DB.UpdateUsefulness(memoryID, Score(m, now), now.UnixMilli()); err != nil {
		return nil, err
	}

	return event, nil
}
