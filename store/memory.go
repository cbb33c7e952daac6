package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aqua777/docindex/schema"
)

// MemoryStore is a brute-force in-memory VectorStore. It is the default
// backend for tests and small corpora.
type MemoryStore struct {
	mu       sync.RWMutex
	passages map[string]schema.Passage
	order    []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{passages: make(map[string]schema.Passage)}
}

// GetByIDs returns the stored passages for the given IDs, in insertion
// order. Unknown IDs are skipped.
func (s *MemoryStore) GetByIDs(ctx context.Context, ids []string) ([]schema.Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	var result []schema.Passage
	for _, id := range s.order {
		if _, ok := want[id]; ok {
			result = append(result, clonePassage(s.passages[id]))
		}
	}
	return result, nil
}

// FilterBySource returns every passage referencing at least one of the given
// source IDs, in insertion order.
func (s *MemoryStore) FilterBySource(ctx context.Context, sourceIDs []string) ([]schema.Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []schema.Passage
	for _, id := range s.order {
		p := s.passages[id]
		for _, sourceID := range sourceIDs {
			if p.HasSource(sourceID) {
				result = append(result, clonePassage(p))
				break
			}
		}
	}
	return result, nil
}

// Query returns up to topK passages most similar to the embedding. Passages
// without locations are excluded.
func (s *MemoryStore) Query(ctx context.Context, embedding []float32, topK int, sourceIDs []string) ([]schema.ScoredPassage, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var scored []schema.ScoredPassage
	for _, id := range s.order {
		p := s.passages[id]
		if len(p.Locations()) == 0 {
			continue
		}
		if len(sourceIDs) > 0 && !referencesAny(p, sourceIDs) {
			continue
		}
		scored = append(scored, schema.ScoredPassage{
			Passage: clonePassage(p),
			Score:   cosineSimilarity(embedding, p.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Write stores the passages according to the duplicate policy.
func (s *MemoryStore) Write(ctx context.Context, passages []schema.Passage, policy DuplicatePolicy) error {
	if policy != DuplicateFail && policy != DuplicateOverwrite {
		return fmt.Errorf("unknown duplicate policy %q", policy)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if policy == DuplicateFail {
		var existing []string
		for _, p := range passages {
			if _, ok := s.passages[p.ID]; ok {
				existing = append(existing, p.ID)
			}
		}
		if len(existing) > 0 {
			return &DuplicateError{IDs: existing}
		}
	}

	for _, p := range passages {
		if _, ok := s.passages[p.ID]; !ok {
			s.order = append(s.order, p.ID)
		}
		s.passages[p.ID] = clonePassage(p)
	}
	return nil
}

// Count returns the number of stored passages, tombstones included.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.passages), nil
}

func referencesAny(p schema.Passage, sourceIDs []string) bool {
	for _, id := range sourceIDs {
		if p.HasSource(id) {
			return true
		}
	}
	return false
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	// Embeddings are unit-norm, so the dot product is the cosine.
	return dot
}

func clonePassage(p schema.Passage) schema.Passage {
	clone := p
	if p.Embedding != nil {
		clone.Embedding = append([]float32(nil), p.Embedding...)
	}
	if p.Meta != nil {
		clone.Meta = make(map[string]any, len(p.Meta))
		for k, v := range p.Meta {
			if locs, ok := v.([]schema.Location); ok {
				v = append([]schema.Location(nil), locs...)
			}
			clone.Meta[k] = v
		}
	}
	return clone
}

var _ VectorStore = (*MemoryStore)(nil)
