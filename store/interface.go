// Package store defines the vector store contract shared by the pipelines,
// plus an in-memory reference implementation.
package store

import (
	"context"
	"fmt"

	"github.com/aqua777/docindex/schema"
)

// DuplicatePolicy controls what Write does when a passage ID already exists.
type DuplicatePolicy string

const (
	// DuplicateFail rejects the whole batch if any passage already exists.
	DuplicateFail DuplicatePolicy = "fail"
	// DuplicateOverwrite replaces existing passages in place.
	DuplicateOverwrite DuplicatePolicy = "overwrite"
)

// DuplicateError is returned by Write under DuplicateFail when at least one
// passage ID is already present.
type DuplicateError struct {
	IDs []string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%d passages already exist in the store", len(e.IDs))
}

// VectorStore is the persistence contract. Implementations index passages by
// their content ID and answer similarity queries over their embeddings.
//
// Passages whose location list is empty are tombstones left behind by
// deindexing: they stay addressable through GetByIDs so re-ingesting the same
// content revives them, but Query and FilterBySource never return them.
type VectorStore interface {
	// GetByIDs returns the stored passages for the given IDs, in store
	// order. IDs that are not present are silently skipped.
	GetByIDs(ctx context.Context, ids []string) ([]schema.Passage, error)

	// FilterBySource returns every passage referencing at least one of the
	// given source IDs.
	FilterBySource(ctx context.Context, sourceIDs []string) ([]schema.Passage, error)

	// Query returns up to topK passages most similar to the embedding,
	// best first. A non-empty sourceIDs restricts results to passages
	// referencing at least one of those sources.
	Query(ctx context.Context, embedding []float32, topK int, sourceIDs []string) ([]schema.ScoredPassage, error)

	// Write stores the passages according to the duplicate policy.
	Write(ctx context.Context, passages []schema.Passage, policy DuplicatePolicy) error

	// Count returns the number of stored passages, tombstones included.
	Count(ctx context.Context) (int, error)
}
