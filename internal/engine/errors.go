package engine

import "errors"

// Error taxonomy. Store failures are wrapped with %w and propagated as-is.
var (
	// ErrNotFound means a referenced memory id does not resolve.
	ErrNotFound = errors.New("memory not found")

	// ErrCollaboratorUnavailable means the embedding or encoding service is
	// down. Batch operations degrade to a partial or no-op result with
	// warnings instead of returning this; single-item paths may surface it.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	// ErrInvariantViolation marks an internal bug, such as an attempt to
	// prune an importance-9 memory. Detection aborts only the offending
	// item's action.
	ErrInvariantViolation = errors.New("invariant violation")
)
