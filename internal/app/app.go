// Package app wires configuration into the ingestion pipeline and the
// query engine shared by the API server and the CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"regdocs-rag/internal/config"
	"regdocs-rag/internal/convert"
	"regdocs-rag/internal/corpus"
	"regdocs-rag/internal/embedcache"
	"regdocs-rag/internal/indexer"
	"regdocs-rag/internal/llm"
	"regdocs-rag/internal/rag"
	"regdocs-rag/internal/service"
	"regdocs-rag/internal/storage"
	"regdocs-rag/internal/vectorstore"
)

// Version is the build version, set with -ldflags "-X regdocs-rag/internal/app.Version=...".
var Version = "dev"

// remoteFormats are converted by the conversion service.
var remoteFormats = []string{".pdf", ".docx", ".pptx", ".html"}

// Options adjusts what New sets up.
type Options struct {
	// ProbeEmbedder embeds a test string at start-up and fails if the
	// provider is unreachable or returns vectors of the wrong size.
	ProbeEmbedder bool
	// Progress is passed to the ingestion pipeline.
	Progress func(indexer.FileResult)
}

// App holds the wired components.
type App struct {
	Config     *config.Config
	DB         *sql.DB
	Store      vectorstore.VectorStore
	Collection *vectorstore.Collection
	Embedder   rag.Embedder
	Pipeline   *indexer.Pipeline
	Engine     rag.Engine
	Queries    service.QueryService

	closers []func() error
}

// New opens the catalog, the vector store and the collection, and builds the
// pipeline and the engine. An existing collection with a vector size other
// than QDRANT_VECTOR_SIZE is an error.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}
	if err := a.init(ctx, opts); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, opts Options) error {
	cfg := a.Config

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	if err := storage.Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.InfoContext(ctx, "Database initialized", "path", cfg.DBPath)
	docRepo := storage.NewDocumentRepo(db)

	switch cfg.VectorStore {
	case "memory":
		a.Store = vectorstore.NewMemoryStore()
		// The catalog outlives the process but the vectors do not
		if err := docRepo.DeleteAll(ctx); err != nil {
			return fmt.Errorf("failed to reset catalog for in-memory store: %w", err)
		}
	default:
		qs, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			return fmt.Errorf("failed to create Qdrant client: %w", err)
		}
		a.Store = qs
		a.closers = append(a.closers, qs.Close)
	}

	coll, err := vectorstore.Open(ctx, a.Store, cfg.QdrantCollection, cfg.QdrantVectorSize)
	if err != nil {
		if errors.Is(err, vectorstore.ErrDimensionMismatch) {
			return fmt.Errorf("%w (set QDRANT_VECTOR_SIZE to match, or rebuild the collection)", err)
		}
		return fmt.Errorf("failed to open collection: %w", err)
	}
	a.Collection = coll
	slog.InfoContext(ctx, "Vector collection ready", "store", cfg.VectorStore, "collection", coll.Name(), "vector_size", coll.Dimension())

	client := llm.NewEmbeddingsClient(
		cfg.EmbeddingBaseURL,
		cfg.LLMAPIKey,
		cfg.EmbeddingModelName,
		cfg.QdrantVectorSize,
		llm.WithBatchSize(cfg.EmbeddingBatchSize),
		llm.WithConcurrency(cfg.EmbeddingConcurrency),
		llm.WithMaxAttempts(cfg.EmbeddingMaxAttempts),
		llm.WithRateLimit(cfg.EmbeddingRPS),
		llm.WithAttemptTimeout(cfg.EmbeddingTimeout),
	)
	if opts.ProbeEmbedder {
		if err := ProbeEmbedder(ctx, client, cfg.QdrantVectorSize); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Embedding client validated", "model", cfg.EmbeddingModelName, "vector_size", cfg.QdrantVectorSize)
	}
	a.Embedder = client

	if cfg.EmbeddingCachePath != "" {
		cache, err := embedcache.Open(cfg.EmbeddingCachePath, client, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
		if err != nil {
			return err
		}
		a.Embedder = cache
		a.closers = append(a.closers, cache.Close)
		slog.InfoContext(ctx, "Embedding cache enabled", "path", cfg.EmbeddingCachePath)
	}

	scanner, err := corpus.NewScanner(cfg.CorpusDir, cfg.CorpusInclude, cfg.CorpusExclude)
	if err != nil {
		return err
	}
	converter := convert.NewByExtension(convert.NewDoclingClient(cfg.ConverterBaseURL), remoteFormats...)

	pipelineOpts := []indexer.Option{
		indexer.WithChunkerConfig(indexer.ChunkerConfig{
			TargetTokens: cfg.ChunkTargetTokens,
			OverlapChars: cfg.ChunkOverlapChars,
		}),
		indexer.WithConcurrency(cfg.IngestConcurrency),
		indexer.WithEmbeddingModel(cfg.EmbeddingModelName),
	}
	if opts.Progress != nil {
		pipelineOpts = append(pipelineOpts, indexer.WithProgress(opts.Progress))
	}
	a.Pipeline = indexer.NewPipeline(
		scanner,
		converter,
		a.Embedder,
		coll,
		docRepo,
		storage.NewChunkRepo(db),
		pipelineOpts...,
	)

	retriever := rag.NewRetriever(a.Embedder, coll, rag.WithLexicalRerank(cfg.RerankLexical))
	synthesizer := rag.NewSynthesizer(
		llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName),
		cfg.ContextBudgetTokens,
		cfg.GenerationTimeout,
	)
	a.Engine = rag.NewEngine(retriever, synthesizer)
	a.Queries = service.NewQueryService(a.Engine)
	slog.InfoContext(ctx, "RAG engine initialized", "llm_model", cfg.LLMModelName, "rerank_lexical", cfg.RerankLexical)

	return nil
}

// Close releases everything New opened, last opened first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// ProbeEmbedder embeds one string and checks the vector size.
func ProbeEmbedder(ctx context.Context, embedder rag.Embedder, dim int) error {
	vecs, err := embedder.EmbedTexts(ctx, []string{"dimension probe"})
	if err != nil {
		return fmt.Errorf("failed to validate embedding client: %w", err)
	}
	if len(vecs) != 1 {
		return fmt.Errorf("embedding probe returned %d vectors, expected 1", len(vecs))
	}
	if len(vecs[0]) != dim {
		return &vectorstore.DimensionError{Collection: "embedding probe", Expected: dim, Actual: len(vecs[0])}
	}
	return nil
}

// SetupLogging installs the default slog logger described by cfg.
func SetupLogging(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)
	return logger
}
