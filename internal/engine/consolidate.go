package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/birchwood/mnemo/internal/llm"
	"github.com/birchwood/mnemo/internal/store"
)

// ConsolidateOptions controls a consolidation pass.
type ConsolidateOptions struct {
	// Threshold is the minimum cosine similarity to join a cluster.
	// Zero means the configured default.
	Threshold float64

	// DryRun computes cluster assignments without mutating anything.
	DryRun bool

	// Levels widens the candidate set beyond the default of level 1.
	Levels []int
}

// Consolidate clusters similar active memories and, unless DryRun, replaces
// each cluster with a higher-level abstraction: the sources flip to
// consolidated with a parent pointer and a derived_from edge, and a new
// memory is created one level up.
//
// Clustering is greedy and anchor-based over an id-ordered snapshot: each
// unassigned memory opens a cluster and claims every remaining unassigned
// candidate at or above the threshold. Two memories both similar to the
// anchor but not to each other land in the same cluster. Deterministic
// given the same store state, so a dry run and a following live run select
// identically.
//
// Consolidation is best-effort: a missing embedder yields zero clusters
// with a warning, and a memory whose embedding cannot be produced is left
// out of this pass.
func (e *Engine) Consolidate(ctx context.Context, opts ConsolidateOptions) (*ConsolidateResult, error) {
	result := &ConsolidateResult{Clusters: [][]int64{}}

	if e.Embedder == nil {
		result.Warnings = append(result.Warnings, "embedder unavailable, consolidation skipped")
		return result, nil
	}

	threshold := opts.Threshold
	if threshold == 0 {
		threshold = e.cfg.SimilarityThreshold
	}

	levels := opts.Levels
	if len(levels) == 0 {
		levels = []int{1}
	}
	wantLevel := make(map[int]bool, len(levels))
	for _, l := range levels {
		wantLevel[l] = true
	}

	all, err := e.DB.QueryMemories(store.MemoryFilter{Status: store.StatusActive})
	if err != nil {
		return nil, err
	}
	var candidates []store.Memory
	for _, m := range all {
		if wantLevel[m.Level] {
			candidates = append(candidates, m)
		}
	}

	// Snapshot similarity inputs for the whole pass: one vector per
	// candidate, resolved before any clustering decision is made.
	records, err := e.DB.AllVectors()
	if err != nil {
		return nil, err
	}
	stored := make(map[int64][]float64, len(records))
	for _, rec := range records {
		if rec.Model == e.Embedder.Model() {
			stored[rec.MemoryID] = rec.Embedding
		}
	}

	vecs := make(map[int64][]float64, len(candidates))
	kept := candidates[:0]
	for i := range candidates {
		m := &candidates[i]
		if v, ok := stored[m.ID]; ok {
			vecs[m.ID] = v
			kept = append(kept, *m)
			continue
		}

		vec, err := e.Embedder.Embed(ctx, m.Content)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("memory %d excluded: embed failed: %v", m.ID, err))
			continue
		}
		if !opts.DryRun {
			if err := e.DB.SaveVector(m.ID, vec, e.Embedder.Model()); err != nil {
				log.Printf("consolidate: save vector %d: %v", m.ID, err)
			}
		}
		vecs[m.ID] = vec
		kept = append(kept, *m)
	}
	candidates = kept

	// Greedy anchor-based clustering. Intentionally not transitive closure.
	claimed := make(map[int64]bool)
	var clusters [][]store.Memory
	for i := 0; i < len(candidates); i++ {
		if claimed[candidates[i].ID] {
			continue
		}
		claimed[candidates[i].ID] = true
		cluster := []store.Memory{candidates[i]}

		for j := i + 1; j < len(candidates); j++ {
			if claimed[candidates[j].ID] {
				continue
			}
			sim := CosineSimilarity(vecs[candidates[i].ID], vecs[candidates[j].ID])
			if sim >= threshold {
				claimed[candidates[j].ID] = true
				cluster = append(cluster, candidates[j])
			}
		}

		if len(cluster) < 2 {
			continue // nothing to consolidate
		}
		clusters = append(clusters, cluster)
		ids := make([]int64, len(cluster))
		for k, m := range cluster {
			ids[k] = m.ID
		}
		result.Clusters = append(result.Clusters, ids)
	}

	if opts.DryRun {
		return result, nil
	}

	for ci, cluster := range clusters {
		abstraction := buildAbstraction(cluster)
		abstraction.Content = e.synthesizeRollup(ctx, cluster, result)
		strength := averagePairwiseSimilarity(cluster, vecs)

		sourceIDs := result.Clusters[ci]
		if err := e.DB.ApplyConsolidation(abstraction, sourceIDs, strength); err != nil {
			result.Failures = append(result.Failures, Failure{ID: sourceIDs[0], Error: err.Error()})
			continue
		}
		log.Printf("consolidate: %d memories -> %d (level %d, importance %d)",
			len(sourceIDs), abstraction.ID, abstraction.Level, abstraction.Importance)
		result.Created = append(result.Created, abstraction.ID)
	}

	return result, nil
}

// buildAbstraction derives the new memory's fields from its cluster:
// importance grows logarithmically with cluster size (capped at 9), the
// level steps up from the deepest source (capped at 3), and scope widens to
// global if any source is global.
func buildAbstraction(cluster []store.Memory) *store.Memory {
	maxImportance, maxLevel := 0, 0
	scope := store.ScopeProject
	project := cluster[0].Project
	for _, m := range cluster {
		if m.Importance > maxImportance {
			maxImportance = m.Importance
		}
		if m.Level > maxLevel {
			maxLevel = m.Level
		}
		if m.Scope == store.ScopeGlobal {
			scope = store.ScopeGlobal
		}
		if m.Project != project {
			project = ""
		}
	}

	importance := maxImportance + int(math.Floor(math.Log2(float64(len(cluster)))))
	if importance > 9 {
		importance = 9
	}
	level := maxLevel + 1
	if level > 3 {
		level = 3
	}
	if scope == store.ScopeGlobal {
		project = ""
	}

	return &store.Memory{
		Scope:      scope,
		Project:    project,
		Importance: importance,
		Level:      level,
	}
}

// synthesizeRollup asks the encoding collaborator for one rollup text over
// the cluster's source contents. If no summarizer is configured or the call
// fails, a deterministic concatenation stands in so consolidation never
// blocks on the collaborator.
func (e *Engine) synthesizeRollup(ctx context.Context, cluster []store.Memory, result *ConsolidateResult) string {
	contents := make([]string, len(cluster))
	for i, m := range cluster {
		contents[i] = m.Content
	}

	if e.Summarizer != nil {
		resp, err := e.Summarizer.Complete(ctx, llm.RollupPrompt(contents))
		if err == nil && strings.TrimSpace(resp.Content) != "" {
			return strings.TrimSpace(resp.Content)
		}
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("rollup synthesis failed: %v", err))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Consolidated from %d memories:\n", len(cluster))
	for _, c := range contents {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	return strings.TrimSpace(b.String())
}

// averagePairwiseSimilarity is the mean cosine similarity over all pairs in
// the cluster; it becomes the strength of each derived_from edge.
func averagePairwiseSimilarity(cluster []store.Memory, vecs map[int64][]float64) float64 {
	if len(cluster) < 2 {
		return 0
	}
	var sum float64
	var pairs int
	for i := 0; i < len(cluster); i++ {
		for j := i + 1; j < len(cluster); j++ {
			sum += CosineSimilarity(vecs[cluster[i].ID], vecs[cluster[j].ID])
			pairs++
		}
	}
	return sum / float64(pairs)
}
