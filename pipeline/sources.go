// Package pipeline wires parsing, splitting, deduplication, embedding and
// the vector store into the ingestion, deindexing and query flows.
package pipeline

import "github.com/google/uuid"

// NewSourceID issues a fresh opaque source identifier.
func NewSourceID() string {
	return uuid.NewString()
}

// PairSources returns exactly n source IDs paired positionally with the
// sources: missing IDs are padded with fresh UUIDs, extras are truncated.
func PairSources(n int, ids []string) []string {
	paired := make([]string, n)
	for i := range paired {
		if i < len(ids) {
			paired[i] = ids[i]
		} else {
			paired[i] = NewSourceID()
		}
	}
	return paired
}
