// Package chromem persists passages in a chromem-go collection.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"

	"github.com/philippgille/chromem-go"

	"github.com/aqua777/docindex/embedding"
	"github.com/aqua777/docindex/schema"
	"github.com/aqua777/docindex/store"
)

const (
	// metaLocations holds the passage's locations as a JSON array.
	metaLocations = "locations"
	// metaExtra holds any non-location metadata as a JSON object.
	metaExtra = "extra"
	// sourceKeyPrefix marks membership of a source for exact-match filtering.
	sourceKeyPrefix = "src_"
)

// Store is a VectorStore backed by chromem-go. Embeddings are computed
// upstream and passed through; the collection never calls an embedding
// function itself.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimensions int
}

// Option configures a Store.
type Option func(*Store)

// WithDimensions sets the embedding dimensionality the store expects.
// Defaults to embedding.DefaultDimensions.
func WithDimensions(dimensions int) Option {
	return func(s *Store) {
		s.dimensions = dimensions
	}
}

// New creates a chromem-backed store. If persistPath is empty the store is
// in-memory only; otherwise documents are persisted under that directory.
func New(persistPath, collectionName string, opts ...Option) (*Store, error) {
	var db *chromem.DB
	if persistPath != "" {
		var err error
		db, err = chromem.NewPersistentDB(persistPath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create persistent chromem db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create collection: %w", err)
	}

	s := &Store{
		db:         db,
		collection: collection,
		dimensions: embedding.DefaultDimensions,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetByIDs returns the stored passages for the given IDs. Unknown IDs are
// skipped.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]schema.Passage, error) {
	var result []schema.Passage
	for _, id := range ids {
		doc, err := s.collection.GetByID(ctx, id)
		if err != nil {
			continue
		}
		p, err := documentToPassage(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

// FilterBySource returns every passage referencing at least one of the given
// source IDs. chromem only filters by exact metadata match, so each source is
// retrieved with its own membership key and the results are unioned.
func (s *Store) FilterBySource(ctx context.Context, sourceIDs []string) ([]schema.Passage, error) {
	seen := make(map[string]struct{})
	var result []schema.Passage
	for _, sourceID := range sourceIDs {
		docs, err := s.queryAll(ctx, map[string]string{sourceKeyPrefix + sourceID: "true"})
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if _, ok := seen[doc.ID]; ok {
				continue
			}
			seen[doc.ID] = struct{}{}
			p, err := resultToPassage(doc)
			if err != nil {
				return nil, err
			}
			result = append(result, p)
		}
	}
	return result, nil
}

// Query returns up to topK passages most similar to the embedding, best
// first. Passages without locations are excluded.
func (s *Store) Query(ctx context.Context, emb []float32, topK int, sourceIDs []string) ([]schema.ScoredPassage, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	var results []chromem.Result
	if len(sourceIDs) == 0 {
		var err error
		// Tombstones are filtered after the fact, so retrieve the full
		// ranking rather than stopping at topK.
		results, err = s.query(ctx, emb, s.collection.Count(), nil)
		if err != nil {
			return nil, err
		}
	} else {
		seen := make(map[string]struct{})
		for _, sourceID := range sourceIDs {
			perSource, err := s.query(ctx, emb, s.collection.Count(), map[string]string{sourceKeyPrefix + sourceID: "true"})
			if err != nil {
				return nil, err
			}
			for _, r := range perSource {
				if _, ok := seen[r.ID]; ok {
					continue
				}
				seen[r.ID] = struct{}{}
				results = append(results, r)
			}
		}
	}

	var scored []schema.ScoredPassage
	for _, r := range results {
		p, err := resultToPassage(r)
		if err != nil {
			return nil, err
		}
		if len(p.Locations()) == 0 {
			continue
		}
		scored = append(scored, schema.ScoredPassage{Passage: p, Score: float64(r.Similarity)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Write stores the passages according to the duplicate policy. Callers
// serialise writes; see broker.Broker.
func (s *Store) Write(ctx context.Context, passages []schema.Passage, policy store.DuplicatePolicy) error {
	if len(passages) == 0 {
		return nil
	}

	switch policy {
	case store.DuplicateFail:
		var existing []string
		for _, p := range passages {
			if _, err := s.collection.GetByID(ctx, p.ID); err == nil {
				existing = append(existing, p.ID)
			}
		}
		if len(existing) > 0 {
			return &store.DuplicateError{IDs: existing}
		}
	case store.DuplicateOverwrite:
		ids := make([]string, len(passages))
		for i, p := range passages {
			ids[i] = p.ID
		}
		if err := s.collection.Delete(ctx, nil, nil, ids...); err != nil {
			return fmt.Errorf("failed to delete existing documents: %w", err)
		}
	default:
		return fmt.Errorf("unknown duplicate policy %q", policy)
	}

	docs := make([]chromem.Document, len(passages))
	for i, p := range passages {
		doc, err := passageToDocument(p)
		if err != nil {
			return err
		}
		docs[i] = doc
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents to chromem collection: %w", err)
	}
	return nil
}

// Count returns the number of stored passages, tombstones included.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

func (s *Store) query(ctx context.Context, emb []float32, nResults int, where map[string]string) ([]chromem.Result, error) {
	if count := s.collection.Count(); nResults > count {
		nResults = count
	}
	if nResults == 0 {
		return nil, nil
	}
	results, err := s.collection.QueryEmbedding(ctx, emb, nResults, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromem collection: %w", err)
	}
	return results, nil
}

// queryAll retrieves every document matching the metadata filter. chromem has
// no enumeration API, so a fixed probe vector is queried with nResults equal
// to the collection size.
func (s *Store) queryAll(ctx context.Context, where map[string]string) ([]chromem.Result, error) {
	probe := make([]float32, s.dimensions)
	probe[0] = 1
	return s.query(ctx, probe, s.collection.Count(), where)
}

func passageToDocument(p schema.Passage) (chromem.Document, error) {
	if len(p.Embedding) == 0 {
		return chromem.Document{}, fmt.Errorf("passage %s has no embedding", p.ID)
	}

	locs := p.Locations()
	if locs == nil {
		locs = []schema.Location{}
	}
	locsJSON, err := json.Marshal(locs)
	if err != nil {
		return chromem.Document{}, fmt.Errorf("failed to encode locations for passage %s: %w", p.ID, err)
	}

	meta := map[string]string{metaLocations: string(locsJSON)}
	for _, loc := range locs {
		meta[sourceKeyPrefix+loc.ID] = "true"
	}

	extra := make(map[string]any)
	for k, v := range p.Meta {
		if k != schema.MetaKeyLocations {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		extraJSON, err := json.Marshal(extra)
		if err != nil {
			return chromem.Document{}, fmt.Errorf("failed to encode metadata for passage %s: %w", p.ID, err)
		}
		meta[metaExtra] = string(extraJSON)
	}

	return chromem.Document{
		ID:        p.ID,
		Content:   p.Content,
		Metadata:  meta,
		Embedding: p.Embedding,
	}, nil
}

func documentToPassage(doc chromem.Document) (schema.Passage, error) {
	return decodePassage(doc.ID, doc.Content, doc.Embedding, doc.Metadata)
}

func resultToPassage(r chromem.Result) (schema.Passage, error) {
	return decodePassage(r.ID, r.Content, r.Embedding, r.Metadata)
}

func decodePassage(id, content string, emb []float32, meta map[string]string) (schema.Passage, error) {
	p := schema.Passage{
		ID:        id,
		Content:   content,
		Embedding: emb,
		Meta:      make(map[string]any, 1),
	}

	var locs []schema.Location
	if raw, ok := meta[metaLocations]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &locs); err != nil {
			return schema.Passage{}, fmt.Errorf("failed to decode locations for passage %s: %w", id, err)
		}
	}
	if locs == nil {
		locs = []schema.Location{}
	}

	if raw, ok := meta[metaExtra]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.Meta); err != nil {
			return schema.Passage{}, fmt.Errorf("failed to decode metadata for passage %s: %w", id, err)
		}
	}
	p.SetLocations(locs)
	return p, nil
}

var _ store.VectorStore = (*Store)(nil)
