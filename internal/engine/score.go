package engine

import (
	"context"
	"math"
	"time"

	"github.com/birchwood/mnemo/internal/store"
)

const (
	minScore = 1.0
	maxScore = 9.0

	// recencyCapDays floors the recency term at its 365-day value so
	// ancient memories don't underflow the formula.
	recencyCapDays = 365.0
)

// Score computes the usefulness score for a memory at the given instant.
// Deterministic in (importance, feedback counters, last access, access
// count); no side effects. The result is always within [1.0, 9.0].
//
// helpfulRatio uses add-one smoothing so a single feedback event cannot
// saturate the ratio. A memory never accessed falls back to its creation
// time for the recency term.
func Score(m *store.Memory, now time.Time) float64 {
	helpfulRatio := float64(m.TimesHelpful+1) / float64(m.TimesHelpful+m.TimesUnhelpful+2)

	days := daysSinceAccess(m, now)
	if days > recencyCapDays {
		days = recencyCapDays
	}
	recencyBoost := math.Pow(0.98, days)

	accessBoost := math.Log(float64(m.AccessCount)+1) / 10

	raw := float64(m.Importance) * (0.5 + 0.3*helpfulRatio + 0.15*recencyBoost + 0.05*accessBoost)
	return clamp(raw, minScore, maxScore)
}

// daysSinceAccess returns fractional days since the memory was last
// retrieved, or since creation if it never was.
func daysSinceAccess(m *store.Memory, now time.Time) float64 {
	ref := m.CreatedAt
	if m.AccessedAt != nil {
		ref = *m.AccessedAt
	}
	elapsed := now.UnixMilli() - ref
	if elapsed <= 0 {
		return 0
	}
	return float64(elapsed) / float64(24*time.Hour/time.Millisecond)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DecayScores recomputes the usefulness score of every active memory
// exactly once and persists it along with the decay timestamp. Status and
// level are never touched. Per-memory persistence failures are collected;
// the pass continues.
func (e *Engine) DecayScores(ctx context.Context) (*BatchResult, error) {
	memories, err := e.DB.QueryMemories(store.MemoryFilter{Status: store.StatusActive})
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	now := time.Now()
	for i := range memories {
		score := Score(&memories[i], now)
		if err := e.DB.UpdateUsefulness(memories[i].ID, score, now.UnixMilli()); err != nil {
			result.Failures = append(result.Failures, Failure{ID: memories[i].ID, Error: err.Error()})
			continue
		}
		result.Processed++
	}
	return result, nil
}
