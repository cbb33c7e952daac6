// Package metrics exposes Prometheus instrumentation for the indexing and
// query pipelines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	PassagesIndexed  prometheus.Counter
	PassagesEmbedded prometheus.Counter
	SourcesDeindexed prometheus.Counter
	ParseFailures    prometheus.Counter
	QueriesTotal     prometheus.Counter
	QueryDuration    prometheus.Histogram
}

// New registers the service collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PassagesIndexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "docindex_passages_indexed_total",
			Help: "Passages written to the vector store by ingestion.",
		}),
		PassagesEmbedded: factory.NewCounter(prometheus.CounterOpts{
			Name: "docindex_passages_embedded_total",
			Help: "Passages sent to the embedding model.",
		}),
		SourcesDeindexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "docindex_sources_deindexed_total",
			Help: "Sources removed from the vector store.",
		}),
		ParseFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "docindex_parse_failures_total",
			Help: "Files that could not be parsed during ingestion.",
		}),
		QueriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "docindex_queries_total",
			Help: "Semantic search queries served.",
		}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "docindex_query_duration_seconds",
			Help:    "Semantic search latency, embedding included.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// NewNop returns metrics backed by a throwaway registry, for tests and
// callers that do not scrape.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
