package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"regdocs-rag/internal/app"
	"regdocs-rag/internal/config"
	"regdocs-rag/internal/contextutil"
	"regdocs-rag/internal/http"
	"regdocs-rag/internal/service"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API answers questions about regulatory documents (ISO standards,
// guidance) using retrieval-augmented generation over an indexed corpus.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Regulatory Documents RAG API
//   description: |
//     Semantic search and question answering over converted, chunked and embedded
//     regulatory documents. Answers cite the retrieved sources.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := app.SetupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = contextutil.WithLogger(ctx, logger)

	a, err := app.New(ctx, cfg, app.Options{ProbeEmbedder: true})
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() {
		_ = a.Close()
	}()

	indexService := service.NewIndexService(ctx, a.Pipeline)

	router := http.NewRouter(&http.Deps{
		QueryService: a.Queries,
		IndexService: indexService,
		Collection:   a.Collection,
		Version:      app.Version,
	})

	// Start indexing in background after router is ready
	if cfg.IngestOnStart {
		slog.Info("Starting background ingestion of corpus", "dir", cfg.CorpusDir)
		if err := indexService.Start(false); err != nil {
			slog.Error("Failed to start ingestion", "error", err)
		}
	}

	addr := ":" + cfg.APIPort
	server := &nethttp.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("Starting API server", "addr", addr, "version", app.Version)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		log.Fatalf("API server failed to start: %v", err)
	}

	// Let a running ingestion observe the cancellation and record its state
	indexService.Wait()
}
