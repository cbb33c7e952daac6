// Package server exposes the ingestion, status, deindex and query
// operations over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aqua777/docindex/broker"
	"github.com/aqua777/docindex/pipeline"
	"github.com/aqua777/docindex/schema"
)

// Server translates REST calls into pipeline and broker operations and
// schedules background ingestion jobs.
type Server struct {
	indexer   *pipeline.Indexer
	deindexer *pipeline.Deindexer
	querier   *pipeline.Querier
	broker    *broker.Broker
	logger    *slog.Logger
	gatherer  prometheus.Gatherer
	tempDir   string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer sets the registry served at /metrics. Defaults to the
// process-wide default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithTempDir sets the upload staging directory. Defaults to the system
// temp directory.
func WithTempDir(dir string) Option {
	return func(s *Server) {
		s.tempDir = dir
	}
}

// New creates a Server over the given pipelines and broker.
func New(ix *pipeline.Indexer, d *pipeline.Deindexer, q *pipeline.Querier, b *broker.Broker, opts ...Option) *Server {
	s := &Server{
		indexer:   ix,
		deindexer: d,
		querier:   q,
		broker:    b,
		logger:    slog.Default(),
		gatherer:  prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/sources", s.handleUpload)
		r.Get("/sources/{id}", s.handleStatus)
		r.Get("/sources", s.handleStatuses)
		r.Delete("/sources/{id}", s.handleDelete)
		r.Delete("/sources", s.handleDelete)
		r.Get("/query", s.handleQuery)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return r
}

type sourceStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type queryResult struct {
	ID        string            `json:"id"`
	Score     float64           `json:"score"`
	Content   string            `json:"content"`
	Locations []schema.Location `json:"locations"`
}

// handleUpload stages the uploaded document to a temp file and schedules a
// background ingestion job for it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "malformed upload: expected multipart field \"file\"", http.StatusBadRequest)
		return
	}
	defer file.Close()

	staged, err := os.CreateTemp(s.tempDir, "docindex-upload-*.docx")
	if err != nil {
		s.logger.Error("failed to stage upload", "error", err)
		http.Error(w, "failed to store upload", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(staged, file); err != nil {
		staged.Close()
		os.Remove(staged.Name())
		s.logger.Error("failed to stage upload", "error", err)
		http.Error(w, "failed to store upload", http.StatusInternalServerError)
		return
	}
	staged.Close()

	sourceID := pipeline.NewSourceID()
	s.broker.SetWaiting(sourceID)
	go s.runIndexJob(sourceID, staged.Name())

	writeJSON(w, http.StatusCreated, sourceStatus{ID: sourceID, Status: string(broker.StatusIndexing)})
}

// runIndexJob is the background half of an upload. The temp file is owned
// by the job and removed when it finishes, successfully or not.
func (s *Server) runIndexJob(sourceID, path string) {
	defer os.Remove(path)
	defer s.broker.SetCompleted(sourceID)

	s.broker.AcquireWrite()
	defer s.broker.ReleaseWrite()

	// An abort may have landed while the job queued for the write mutex;
	// in that case the embedding cost is never paid.
	if !s.broker.SetIndexing(sourceID) {
		s.logger.Info("upload aborted before indexing", "source_id", sourceID)
		return
	}

	if _, err := s.indexer.Index(context.Background(), []string{path}, []string{sourceID}); err != nil {
		s.logger.Error("indexing failed", "source_id", sourceID, "error", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := s.broker.Status(r.Context(), id)
	if err != nil {
		s.logger.Error("status lookup failed", "source_id", id, "error", err)
		http.Error(w, "status lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sourceStatus{ID: id, Status: string(status)})
}

func (s *Server) handleStatuses(w http.ResponseWriter, r *http.Request) {
	ids := sourceIDParams(r)
	statuses, err := s.broker.Statuses(r.Context(), ids)
	if err != nil {
		s.logger.Error("status lookup failed", "error", err)
		http.Error(w, "status lookup failed", http.StatusInternalServerError)
		return
	}

	result := make([]sourceStatus, 0, len(ids))
	for _, id := range ids {
		result = append(result, sourceStatus{ID: id, Status: string(statuses[id])})
	}
	writeJSON(w, http.StatusOK, result)
}

// handleDelete serves both the single-source and the batched form. Waiting
// uploads are cancelled, indexed sources are deindexed, the rest is left
// alone.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ids := sourceIDParams(r)
	if id := chi.URLParam(r, "id"); id != "" {
		ids = []string{id}
	}

	plan, err := s.broker.PlanDelete(r.Context(), ids)
	if err != nil {
		s.logger.Error("delete planning failed", "error", err)
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}

	if len(plan.Deindex) > 0 {
		s.broker.AcquireWrite()
		err = s.deindexer.Deindex(r.Context(), plan.Deindex)
		s.broker.ReleaseWrite()
		if err != nil {
			s.logger.Error("deindex failed", "source_ids", plan.Deindex, "error", err)
			http.Error(w, "delete failed", http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	content := params.Get("content")
	if content == "" {
		http.Error(w, "missing required argument: content", http.StatusBadRequest)
		return
	}

	topK := 0
	if raw := params.Get("top_k"); raw != "" {
		var err error
		topK, err = strconv.Atoi(raw)
		if err != nil || topK <= 0 {
			http.Error(w, "top_k must be a positive integer", http.StatusBadRequest)
			return
		}
	}

	sourceIDs := splitParams(params["source_ids"])
	results, err := s.querier.Query(r.Context(), content, topK, sourceIDs)
	if err != nil {
		s.logger.Error("query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	records := make([]queryResult, 0, len(results))
	for _, sp := range results {
		locs := sp.Passage.Locations()
		if locs == nil {
			locs = []schema.Location{}
		}
		records = append(records, queryResult{
			ID:        sp.Passage.ID,
			Score:     sp.Score,
			Content:   sp.Passage.Content,
			Locations: locs,
		})
	}
	writeJSON(w, http.StatusOK, records)
}

// sourceIDParams reads the repeatable source_ids query parameter; each
// value may itself be comma-separated.
func sourceIDParams(r *http.Request) []string {
	return splitParams(r.URL.Query()["source_ids"])
}

func splitParams(values []string) []string {
	var ids []string
	for _, value := range values {
		for _, id := range strings.Split(value, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, context.Canceled) {
		slog.Default().Error("failed to encode response", "error", err)
	}
}
