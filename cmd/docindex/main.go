// Command docindex runs the document indexing and semantic search service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/aqua777/docindex/broker"
	"github.com/aqua777/docindex/config"
	"github.com/aqua777/docindex/embedding"
	"github.com/aqua777/docindex/metrics"
	"github.com/aqua777/docindex/pipeline"
	"github.com/aqua777/docindex/server"
	"github.com/aqua777/docindex/store"
	"github.com/aqua777/docindex/store/chromem"
	"github.com/aqua777/docindex/textsplitter"
)

func main() {
	configPath := pflag.String("config", "", "path to the YAML config file")
	addr := pflag.String("addr", "", "listen address, overrides the config")
	pflag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vectorStore, err := newStore(cfg.Store, cfg.Embedding.Dimensions)
	if err != nil {
		return err
	}
	model, err := newModel(cfg.Embedding)
	if err != nil {
		return err
	}
	splitter, err := textsplitter.New(
		textsplitter.Unit(cfg.Splitter.Unit), cfg.Splitter.Length, cfg.Splitter.Overlap)
	if err != nil {
		return err
	}

	if err := embedding.Warm(ctx, model); err != nil {
		logger.Warn("embedding model warm-up failed", "error", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	indexer := pipeline.NewIndexer(vectorStore, model, splitter)
	indexer.BatchSize = cfg.Embedding.BatchSize
	indexer.Logger = logger
	indexer.Metrics = m
	deindexer := pipeline.NewDeindexer(vectorStore)
	deindexer.Logger = logger
	deindexer.Metrics = m
	querier := pipeline.NewQuerier(vectorStore, model)
	querier.Logger = logger
	querier.Metrics = m

	srv := server.New(indexer, deindexer, querier, broker.New(vectorStore),
		server.WithLogger(logger), server.WithGatherer(registry))

	if cfg.Watch.Dir != "" {
		if err := srv.Watch(ctx, cfg.Watch.Dir); err != nil {
			return err
		}
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func newStore(cfg config.Store, dimensions int) (store.VectorStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "chromem":
		return chromem.New(cfg.Path, cfg.Collection, chromem.WithDimensions(dimensions))
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func newModel(cfg config.Embedding) (embedding.Model, error) {
	switch cfg.Provider {
	case "", "openai":
		opts := []embedding.OpenAIOption{embedding.WithOpenAIDimensions(cfg.Dimensions)}
		if cfg.Model != "" {
			opts = append(opts, embedding.WithOpenAIModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, embedding.WithOpenAIBaseURL(cfg.BaseURL))
		}
		if cfg.APIKey != "" {
			opts = append(opts, embedding.WithOpenAIAPIKey(cfg.APIKey))
		}
		return embedding.NewOpenAIModel(opts...), nil
	case "ollama":
		var opts []embedding.OllamaOption
		if cfg.Model != "" {
			opts = append(opts, embedding.WithOllamaModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, embedding.WithOllamaBaseURL(cfg.BaseURL))
		}
		return embedding.NewOllamaModel(opts...), nil
	case "mock":
		return &embedding.MockModel{Dimensions: cfg.Dimensions}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
