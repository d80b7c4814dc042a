package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/birchwood/mnemo/internal/store"
)

// RecordAccess marks each memory as retrieved: accessed_at is stamped and
// the access count incremented.
func (e *Engine) RecordAccess(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		if err := e.DB.TouchMemory(id); err != nil {
			return err
		}
	}
	return nil
}

// RecordRetrieval is the per-batch entry point the host calls after serving
// a retrieval: it touches every memory and strengthens co-access edges with
// the configured increment.
func (e *Engine) RecordRetrieval(ctx context.Context, ids []int64) error {
	if err := e.RecordAccess(ctx, ids); err != nil {
		return err
	}
	return e.RecordCoAccess(ctx, ids, e.cfg.CoAccessIncrement)
}

// RecordCoAccess creates or strengthens a similar edge for every unordered
// pair in the set. Pairs are canonicalized as (min, max) so reciprocal
// duplicates never exist; strength is capped at store.MaxStrength.
func (e *Engine) RecordCoAccess(ctx context.Context, ids []int64, increment float64) error {
	unique := dedupeIDs(ids)
	if len(unique) < 2 {
		return nil
	}

	for i := 0; i < len(unique); i++ {
		for j := i + 1; j < len(unique); j++ {
			if err := e.DB.UpsertSimilar(unique[i], unique[j], increment); err != nil {
				return fmt.Errorf("co-access (%d,%d): %w", unique[i], unique[j], err)
			}
		}
	}
	return nil
}

// DecayRelationships weakens every similar edge by the given factor and
// drops edges below the floor. Applying it twice with factor f is the same
// as once with f*f, so the pass composes cleanly with itself and with
// concurrent co-access recording.
func (e *Engine) DecayRelationships(ctx context.Context, factor, floor float64) (int, int, error) {
	if factor < 0 {
		return 0, 0, fmt.Errorf("decay factor %f must be non-negative", factor)
	}
	return e.DB.DecayRelationships(factor, floor)
}

// DecayRelationshipsDefault runs a relationship decay pass with the
// configured factor and floor.
func (e *Engine) DecayRelationshipsDefault(ctx context.Context) (int, int, error) {
	return e.DecayRelationships(ctx, e.cfg.RelationshipDecay, e.cfg.RelationshipFloor)
}

// Suggestion is one entry of a suggested-memory list.
type Suggestion struct {
	Memory   store.Memory `json:"memory"`
	Strength float64      `json:"strength"`
}

// SuggestMemories ranks active memories related to the just-retrieved set by
// the sum of similar-edge strengths connecting them to it. Memories already
// in the set are excluded. Ties break on higher usefulness, then lower id.
func (e *Engine) SuggestMemories(ctx context.Context, currentIDs []int64, limit int) ([]Suggestion, error) {
	if limit <= 0 || len(currentIDs) == 0 {
		return nil, nil
	}

	inSet := make(map[int64]bool, len(currentIDs))
	for _, id := range currentIDs {
		inSet[id] = true
	}

	edges, err := e.DB.RelationshipsTouching(currentIDs)
	if err != nil {
		return nil, err
	}

	strengths := make(map[int64]float64)
	for _, edge := range edges {
		other := edge.SourceID
		if inSet[other] {
			other = edge.TargetID
		}
		if inSet[other] {
			continue // both endpoints retrieved together already
		}
		strengths[other] += edge.Strength
	}
	if len(strengths) == 0 {
		return nil, nil
	}

	candidateIDs := make([]int64, 0, len(strengths))
	for id := range strengths {
		candidateIDs = append(candidateIDs, id)
	}
	memories, err := e.DB.GetMemoriesByIDs(candidateIDs)
	if err != nil {
		return nil, err
	}

	var suggestions []Suggestion
	for _, m := range memories {
		if m.Status != store.StatusActive {
			continue
		}
		suggestions = append(suggestions, Suggestion{Memory: m, Strength: strengths[m.ID]})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Strength != suggestions[j].Strength {
			return suggestions[i].Strength > suggestions[j].Strength
		}
		if suggestions[i].Memory.Usefulness != suggestions[j].Memory.Usefulness {
			return suggestions[i].Memory.Usefulness > suggestions[j].Memory.Usefulness
		}
		return suggestions[i].Memory.ID < suggestions[j].Memory.ID
	})

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// dedupeIDs returns the unique ids in ascending order.
func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	var unique []int64
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })
	return unique
}
