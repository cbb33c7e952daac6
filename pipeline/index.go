package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aqua777/docindex/embedding"
	"github.com/aqua777/docindex/metrics"
	"github.com/aqua777/docindex/parser"
	"github.com/aqua777/docindex/schema"
	"github.com/aqua777/docindex/store"
	"github.com/aqua777/docindex/textsplitter"
)

// DefaultBatchSize is the batch size for duplicate checks and embedding
// calls.
const DefaultBatchSize = 32

// Indexer is the ingestion pipeline: parse sources into passages, dedupe
// against the store, embed only the genuinely new content, and write under
// the multi-source location model.
//
// Callers must serialise Index calls with every other store mutation; see
// broker.Broker.
type Indexer struct {
	Store     store.VectorStore
	Model     embedding.Model
	Splitter  *textsplitter.Splitter
	BatchSize int
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// NewIndexer creates an Indexer with default batch size, logger and no-op
// metrics. Fields may be adjusted before first use.
func NewIndexer(s store.VectorStore, model embedding.Model, splitter *textsplitter.Splitter) *Indexer {
	return &Indexer{
		Store:     s,
		Model:     model,
		Splitter:  splitter,
		BatchSize: DefaultBatchSize,
		Logger:    slog.Default(),
		Metrics:   metrics.NewNop(),
	}
}

// Index ingests the files at the given paths under the given source IDs,
// paired positionally (padded with fresh UUIDs, truncated when too many).
// It returns the effective source IDs. Files that fail to parse are logged
// and skipped; embedding or store failures abort the whole call.
func (ix *Indexer) Index(ctx context.Context, paths []string, sourceIDs []string) ([]string, error) {
	sourceIDs = PairSources(len(paths), sourceIDs)

	var parsed []schema.Passage
	for i, path := range paths {
		sections, err := parser.ParseFile(path)
		if err != nil {
			var parseErr *parser.ParseError
			if errors.As(err, &parseErr) {
				ix.Logger.Warn("skipping unparsable source",
					"path", path, "source_id", sourceIDs[i], "error", err)
				ix.Metrics.ParseFailures.Inc()
				continue
			}
			return nil, err
		}
		loc := schema.Location{ID: sourceIDs[i], Type: schema.LocationTypeDocx}
		for _, section := range sections {
			loc.Path = section.Headings
			body := textsplitter.Clean(section.Body)
			for _, window := range ix.Splitter.Split(body) {
				parsed = append(parsed, schema.NewPassage(window, loc))
			}
		}
	}
	if len(parsed) == 0 {
		return sourceIDs, nil
	}

	merged := schema.MergePassages(parsed)
	hits, misses, retrieved, err := ix.checkDuplicates(ctx, merged)
	if err != nil {
		return nil, err
	}

	// The two tails are independent; the call completes when both have.
	var wg sync.WaitGroup
	var overwriteErr, writeErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		overwriteErr = ix.overwriteHits(ctx, retrieved, hits)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		writeErr = ix.writeMisses(ctx, misses)
	}()

	wg.Wait()
	if err := errors.Join(overwriteErr, writeErr); err != nil {
		return nil, err
	}
	return sourceIDs, nil
}

// checkDuplicates partitions passages into those already stored (hits) and
// new ones (misses), and returns the authoritative store records for the
// hits. The store is not mutated.
func (ix *Indexer) checkDuplicates(ctx context.Context, passages []schema.Passage) (hits, misses, retrieved []schema.Passage, err error) {
	batch := ix.batchSize()
	existing := make(map[string]struct{})
	for start := 0; start < len(passages); start += batch {
		end := start + batch
		if end > len(passages) {
			end = len(passages)
		}
		ids := make([]string, 0, end-start)
		for _, p := range passages[start:end] {
			ids = append(ids, p.ID)
		}
		records, err := ix.Store.GetByIDs(ctx, ids)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("duplicate check failed: %w", err)
		}
		retrieved = append(retrieved, records...)
		for _, r := range records {
			existing[r.ID] = struct{}{}
		}
	}

	for _, p := range passages {
		if _, ok := existing[p.ID]; ok {
			hits = append(hits, p)
		} else {
			misses = append(misses, p)
		}
	}
	return hits, misses, retrieved, nil
}

// overwriteHits merges the fresh locations of hit passages into the stored
// records and writes them back. Stored content and embeddings are kept, so
// hits never touch the embedding model.
func (ix *Indexer) overwriteHits(ctx context.Context, retrieved, hits []schema.Passage) error {
	if len(hits) == 0 {
		return nil
	}
	merged := schema.MergePassages(retrieved, hits)
	for i := range merged {
		merged[i].DedupLocations()
	}
	if err := ix.Store.Write(ctx, merged, store.DuplicateOverwrite); err != nil {
		return fmt.Errorf("failed to update existing passages: %w", err)
	}
	return nil
}

// writeMisses embeds new passages and writes them under the strict policy;
// a duplicate here means another writer slipped in.
func (ix *Indexer) writeMisses(ctx context.Context, misses []schema.Passage) error {
	if len(misses) == 0 {
		return nil
	}
	if err := ix.embed(ctx, misses); err != nil {
		return err
	}
	if err := ix.Store.Write(ctx, misses, store.DuplicateFail); err != nil {
		return fmt.Errorf("failed to write new passages: %w", err)
	}
	ix.Metrics.PassagesIndexed.Add(float64(len(misses)))
	return nil
}

func (ix *Indexer) embed(ctx context.Context, passages []schema.Passage) error {
	batch := ix.batchSize()
	for start := 0; start < len(passages); start += batch {
		end := start + batch
		if end > len(passages) {
			end = len(passages)
		}
		texts := make([]string, 0, end-start)
		for _, p := range passages[start:end] {
			texts = append(texts, p.Content)
		}
		vectors, err := ix.Model.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding failed: %w", err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embedding model returned %d vectors for %d texts", len(vectors), len(texts))
		}
		for i := range vectors {
			passages[start+i].Embedding = vectors[i]
		}
		ix.Metrics.PassagesEmbedded.Add(float64(len(texts)))
	}
	return nil
}

func (ix *Indexer) batchSize() int {
	if ix.BatchSize > 0 {
		return ix.BatchSize
	}
	return DefaultBatchSize
}
