package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/birchwood/mnemo/internal/store"
)

const (
	// protectedImportance and recentAccessDays are the hard pruning safety
	// gates. They are not configurable: no threshold combination can select
	// a protected memory.
	protectedImportance = 8
	recentAccessDays    = 7.0
)

// PruneOptions controls a pruning pass.
type PruneOptions struct {
	// MinUsefulness selects memories scoring below this value.
	// Zero means the configured default.
	MinUsefulness float64

	// MaxAgeDays selects memories idle for at least this many days.
	// Zero means the configured default.
	MaxAgeDays int

	// Permanent deletes rows, embeddings, and incident edges instead of
	// archiving. Irreversible.
	Permanent bool

	// DryRun reports the selection without acting on it.
	DryRun bool
}

// Prune selects active memories that are both low-scoring and long idle,
// then archives them (or deletes them permanently). Two exclusions always
// hold regardless of thresholds: importance >= 8, and any access within the
// last 7 days. Each exclusion is reported as a warning naming the id.
func (e *Engine) Prune(ctx context.Context, opts PruneOptions) (*PruneResult, error) {
	minUsefulness := opts.MinUsefulness
	if minUsefulness == 0 {
		minUsefulness = e.cfg.MinUsefulness
	}
	maxAgeDays := opts.MaxAgeDays
	if maxAgeDays == 0 {
		maxAgeDays = e.cfg.MaxAgeDays
	}

	memories, err := e.DB.QueryMemories(store.MemoryFilter{Status: store.StatusActive})
	if err != nil {
		return nil, err
	}

	result := &PruneResult{
		PrunedIDs: []int64{},
		Permanent: opts.Permanent,
		DryRun:    opts.DryRun,
	}
	now := time.Now()

	var selected []store.Memory
	for _, m := range memories {
		age := daysSinceAccess(&m, now)
		if m.Usefulness >= minUsefulness || age < float64(maxAgeDays) {
			continue
		}

		// Hard safety gates, checked after threshold selection so the
		// exclusions are visible in the warnings rather than silent.
		if m.Importance >= protectedImportance {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("memory %d excluded: importance %d is protected", m.ID, m.Importance))
			continue
		}
		if age < recentAccessDays {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("memory %d excluded: accessed %.1f days ago", m.ID, age))
			continue
		}

		selected = append(selected, m)
	}

	if opts.DryRun {
		for _, m := range selected {
			result.PrunedIDs = append(result.PrunedIDs, m.ID)
		}
		return result, nil
	}

	for _, m := range selected {
		// Should be unreachable after the gates above; if it trips, skip
		// just this memory and make noise.
		if err := checkPrunable(&m, now); err != nil {
			log.Printf("prune: REFUSING memory %d: %v", m.ID, err)
			result.Failures = append(result.Failures, Failure{ID: m.ID, Error: err.Error()})
			continue
		}

		var actErr error
		if opts.Permanent {
			actErr = e.DB.DeleteMemory(m.ID)
		} else {
			actErr = e.DB.UpdateStatus(m.ID, store.StatusArchived, nil)
		}
		if actErr != nil {
			result.Failures = append(result.Failures, Failure{ID: m.ID, Error: actErr.Error()})
			continue
		}
		result.PrunedIDs = append(result.PrunedIDs, m.ID)
	}

	return result, nil
}

// checkPrunable re-verifies the safety invariants immediately before a
// mutation. A violation here is an engine bug, not a data condition.
func checkPrunable(m *store.Memory, now time.Time) error {
	if m.Importance >= protectedImportance {
		return fmt.Errorf("%w: importance %d", ErrInvariantViolation, m.Importance)
	}
	if daysSinceAccess(m, now) < recentAccessDays {
		return fmt.Errorf("%w: accessed within %v days", ErrInvariantViolation, recentAccessDays)
	}
	return nil
}

// Restore flips an archived memory back to active. Archiving is the only
// reversible lifecycle exit; consolidated memories stay consolidated.
func (e *Engine) Restore(ctx context.Context, id int64) (*store.Memory, error) {
	m, err := e.DB.GetMemory(id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("restore %d: %w", id, ErrNotFound)
	}
	if m.Status != store.StatusArchived {
		return nil, fmt.Errorf("restore %d: status is %s, not archived", id, m.Status)
	}

	if err := e.DB.UpdateStatus(id, store.StatusActive, nil); err != nil {
		return nil, err
	}
	m.Status = store.StatusActive
	return m, nil
}
