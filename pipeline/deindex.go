package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aqua777/docindex/metrics"
	"github.com/aqua777/docindex/store"
)

// Deindexer removes sources from the store. Passages shared with surviving
// sources keep their other locations; passages left without locations become
// tombstones that queries exclude.
//
// Deindexing is idempotent; retrying after a failure is safe. Callers must
// serialise Deindex calls with every other store mutation.
type Deindexer struct {
	Store   store.VectorStore
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// NewDeindexer creates a Deindexer with the default logger and no-op
// metrics.
func NewDeindexer(s store.VectorStore) *Deindexer {
	return &Deindexer{
		Store:   s,
		Logger:  slog.Default(),
		Metrics: metrics.NewNop(),
	}
}

// Deindex strips every reference to the given source IDs from the store.
func (d *Deindexer) Deindex(ctx context.Context, sourceIDs []string) error {
	if len(sourceIDs) == 0 {
		return nil
	}

	passages, err := d.Store.FilterBySource(ctx, sourceIDs)
	if err != nil {
		return fmt.Errorf("failed to retrieve passages for deindex: %w", err)
	}
	if len(passages) == 0 {
		return nil
	}

	for i := range passages {
		passages[i].RemoveSources(sourceIDs)
	}
	if err := d.Store.Write(ctx, passages, store.DuplicateOverwrite); err != nil {
		return fmt.Errorf("failed to write deindexed passages: %w", err)
	}

	d.Metrics.SourcesDeindexed.Add(float64(len(sourceIDs)))
	d.Logger.Info("deindexed sources", "source_ids", sourceIDs, "passages", len(passages))
	return nil
}
