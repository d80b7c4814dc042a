package engine

// Skip records a memory left out of a batch pass and why.
type Skip struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// Failure records a memory whose mutation failed mid-pass. Other items in
// the same pass are unaffected.
type Failure struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

// BatchResult is the structured outcome of a batch pass (score decay,
// relationship decay). Batch passes never fail wholesale over per-item
// issues.
type BatchResult struct {
	Processed int       `json:"processed"`
	Skipped   []Skip    `json:"skipped,omitempty"`
	Failures  []Failure `json:"failures,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
}

// ConsolidateResult reports cluster assignments and, on a live run, the
// abstractions created. A dry run fills Clusters only.
type ConsolidateResult struct {
	Clusters [][]int64 `json:"clusters"`
	Created  []int64   `json:"created,omitempty"`
	Failures []Failure `json:"failures,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`
}

// PruneResult reports the memories selected for pruning and the safety
// exclusions that kept others out.
type PruneResult struct {
	PrunedIDs []int64   `json:"pruned_ids"`
	Failures  []Failure `json:"failures,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
	Permanent bool      `json:"permanent"`
	DryRun    bool      `json:"dry_run"`
}
