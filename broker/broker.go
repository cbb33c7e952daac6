// Package broker coordinates the lifecycle of in-flight ingest jobs and
// serialises every mutating operation against the vector store.
package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/aqua777/docindex/store"
)

// Status is the lifecycle state of a source.
type Status string

const (
	// StatusWaiting means the upload is accepted and queued; it can still
	// be aborted.
	StatusWaiting Status = "waiting"
	// StatusAborted means the upload was cancelled before indexing began.
	StatusAborted Status = "aborted"
	// StatusIndexing means the ingestion pipeline is running; abort is
	// refused.
	StatusIndexing Status = "indexing"
	// StatusIndexed is derived: no in-flight work and at least one stored
	// passage references the source.
	StatusIndexed Status = "indexed"
	// StatusNotFound is derived: no in-flight work and no stored passage
	// references the source.
	StatusNotFound Status = "not_found"
)

// Broker tracks per-source status for in-flight jobs and owns the
// store-write mutex. Absence from the status map means no in-flight work;
// such sources report a status derived from the store.
type Broker struct {
	store store.VectorStore

	mu       sync.Mutex
	statuses map[string]Status

	// writeMu serialises ingest and deindex runs against the store. It is
	// held across the entire operation, not per store call.
	writeMu sync.Mutex
}

// New creates a Broker deriving indexed/not_found statuses from the given
// store.
func New(s store.VectorStore) *Broker {
	return &Broker{
		store:    s,
		statuses: make(map[string]Status),
	}
}

// AcquireWrite takes the store-write mutex. Every ingest or deindex run
// must hold it from before its first store access until after its last.
func (b *Broker) AcquireWrite() {
	b.writeMu.Lock()
}

// ReleaseWrite releases the store-write mutex.
func (b *Broker) ReleaseWrite() {
	b.writeMu.Unlock()
}

// SetWaiting marks a source as queued for ingestion.
func (b *Broker) SetWaiting(sourceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses[sourceID] = StatusWaiting
}

// SetAborted cancels a queued upload. It is a no-op unless the source is
// waiting; once indexing has started the compute is already committed.
// It reports whether the abort took effect.
func (b *Broker) SetAborted(sourceID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.statuses[sourceID] != StatusWaiting {
		return false
	}
	b.statuses[sourceID] = StatusAborted
	return true
}

// SetIndexing marks a source as being ingested. It is a no-op unless the
// source is waiting, so a late transition cannot override an abort. It
// reports whether the transition took effect.
func (b *Broker) SetIndexing(sourceID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.statuses[sourceID] != StatusWaiting {
		return false
	}
	b.statuses[sourceID] = StatusIndexing
	return true
}

// SetCompleted removes the in-flight entry unconditionally. The source's
// status becomes derived from the store.
func (b *Broker) SetCompleted(sourceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.statuses, sourceID)
}

// Status reports the status of one source.
func (b *Broker) Status(ctx context.Context, sourceID string) (Status, error) {
	statuses, err := b.Statuses(ctx, []string{sourceID})
	if err != nil {
		return "", err
	}
	return statuses[sourceID], nil
}

// Statuses reports the status of each source. In-flight sources are
// answered from the status map; the rest are derived from the store in a
// single retrieval.
func (b *Broker) Statuses(ctx context.Context, sourceIDs []string) (map[string]Status, error) {
	result := make(map[string]Status, len(sourceIDs))

	b.mu.Lock()
	var derived []string
	for _, id := range sourceIDs {
		if status, ok := b.statuses[id]; ok {
			result[id] = status
		} else {
			derived = append(derived, id)
		}
	}
	b.mu.Unlock()

	if len(derived) == 0 {
		return result, nil
	}

	passages, err := b.store.FilterBySource(ctx, derived)
	if err != nil {
		return nil, fmt.Errorf("failed to derive source statuses: %w", err)
	}
	for _, id := range derived {
		result[id] = StatusNotFound
	}
	for _, p := range passages {
		for _, id := range derived {
			if p.HasSource(id) {
				result[id] = StatusIndexed
			}
		}
	}
	return result, nil
}

// DeletePlan partitions a delete request by the current status of each
// source.
type DeletePlan struct {
	// Deindex lists indexed sources whose passages must be removed.
	Deindex []string
	// Cancelled lists waiting sources that were moved to aborted instead
	// of being deindexed.
	Cancelled []string
	// Ignored lists sources with nothing to do: indexing, already aborted
	// or unknown.
	Ignored []string
}

// PlanDelete resolves a delete request: waiting uploads are aborted on the
// spot, indexed sources are scheduled for deindexing, everything else is
// ignored. This is how an upload is cancelled before its embedding cost is
// paid.
func (b *Broker) PlanDelete(ctx context.Context, sourceIDs []string) (DeletePlan, error) {
	statuses, err := b.Statuses(ctx, sourceIDs)
	if err != nil {
		return DeletePlan{}, err
	}

	var plan DeletePlan
	for _, id := range sourceIDs {
		switch statuses[id] {
		case StatusWaiting:
			if b.SetAborted(id) {
				plan.Cancelled = append(plan.Cancelled, id)
			} else {
				plan.Ignored = append(plan.Ignored, id)
			}
		case StatusIndexed:
			plan.Deindex = append(plan.Deindex, id)
		default:
			plan.Ignored = append(plan.Ignored, id)
		}
	}
	return plan, nil
}
