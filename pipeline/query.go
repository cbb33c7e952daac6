package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aqua777/docindex/embedding"
	"github.com/aqua777/docindex/metrics"
	"github.com/aqua777/docindex/schema"
	"github.com/aqua777/docindex/store"
)

// DefaultTopK is the number of results returned when the caller does not
// ask for a specific count.
const DefaultTopK = 3

// ErrEmptyQuery is returned when the query content is empty.
var ErrEmptyQuery = errors.New("query content is empty")

// Querier is the query pipeline: embed the query text and retrieve the
// top-k most similar passages, optionally restricted to a set of sources.
// Queries never block behind ingest or deindex.
type Querier struct {
	Store   store.VectorStore
	Model   embedding.Model
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// NewQuerier creates a Querier with the default logger and no-op metrics.
func NewQuerier(s store.VectorStore, model embedding.Model) *Querier {
	return &Querier{
		Store:   s,
		Model:   model,
		Logger:  slog.Default(),
		Metrics: metrics.NewNop(),
	}
}

// Query embeds content and returns up to topK passages by cosine
// similarity, best first. topK <= 0 means DefaultTopK. When sourceIDs is
// non-empty, results are restricted to those sources and each returned
// passage's locations are pruned to the queried set.
func (q *Querier) Query(ctx context.Context, content string, topK int, sourceIDs []string) ([]schema.ScoredPassage, error) {
	if content == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	timer := prometheus.NewTimer(q.Metrics.QueryDuration)
	defer timer.ObserveDuration()

	emb, err := q.Model.EmbedQuery(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := q.Store.Query(ctx, emb, topK, sourceIDs)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	if len(sourceIDs) > 0 {
		for i := range results {
			results[i].Passage.PruneSources(sourceIDs)
		}
	}

	q.Metrics.QueriesTotal.Inc()
	return results, nil
}
