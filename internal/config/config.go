package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	LLMBaseURL   string
	LLMModelName string
	LLMAPIKey    string

	EmbeddingBaseURL     string
	EmbeddingModelName   string
	EmbeddingBatchSize   int
	EmbeddingConcurrency int
	EmbeddingMaxAttempts int
	EmbeddingRPS         float64
	EmbeddingTimeout     time.Duration
	EmbeddingCachePath   string

	ConverterBaseURL string
	CorpusDir        string
	CorpusInclude    []string
	CorpusExclude    []string

	DBPath           string
	VectorStore      string // "qdrant" or "memory"
	QdrantURL        string
	QdrantCollection string
	QdrantVectorSize int

	ChunkTargetTokens   int
	ChunkOverlapChars   int
	ContextBudgetTokens int
	GenerationTimeout   time.Duration
	IngestConcurrency   int
	IngestOnStart       bool
	RerankLexical       bool

	APIPort   string
	LogLevel  slog.Level
	LogFormat string // "text" or "json"
}

// source resolves a key from the environment first, then from the optional
// YAML config file, then from the given default.
type source struct {
	file map[string]string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
// If CONFIG_FILE names a YAML file, its keys (lower-case variable names) fill in
// anything the environment leaves unset.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	// Walk up to find a project-level .env
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	src := source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		values, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = values
	}

	cfg := &Config{
		LLMBaseURL:         src.get("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       src.get("LLM_MODEL", "gpt-4o"),
		LLMAPIKey:          src.get("LLM_API_KEY", "dummy-key"),
		EmbeddingBaseURL:   src.get("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: src.get("EMBEDDING_MODEL_NAME", "text-embedding-3-large"),
		EmbeddingCachePath: src.get("EMBEDDING_CACHE_PATH", ""),
		ConverterBaseURL:   src.get("CONVERTER_BASE_URL", "http://localhost:5001"),
		CorpusDir:          src.get("CORPUS_DIR", "./docs"),
		CorpusInclude:      splitList(src.get("CORPUS_INCLUDE", "**/*.pdf,**/*.md,**/*.txt")),
		CorpusExclude:      splitList(src.get("CORPUS_EXCLUDE", "")),
		DBPath:             src.get("DB_PATH", "./data/regdocs-rag.db"),
		VectorStore:        strings.ToLower(src.get("VECTOR_STORE", "qdrant")),
		QdrantURL:          src.get("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   src.get("QDRANT_COLLECTION", "iso_documents"),
		APIPort:            src.get("API_PORT", "8080"),
		LogFormat:          strings.ToLower(src.get("LOG_FORMAT", "text")),
	}

	// Note: QDRANT_VECTOR_SIZE must match the output size of the embeddings model.
	// text-embedding-3-large produces 3072 dimensions. If it changes, the collection
	// must be rebuilt.
	vectorSizeStr := src.get("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	cfg.QdrantVectorSize = vectorSize

	ints := []struct {
		key  string
		def  int
		min  int
		dest *int
	}{
		{"EMBEDDING_BATCH_SIZE", 64, 1, &cfg.EmbeddingBatchSize},
		{"EMBEDDING_CONCURRENCY", 4, 1, &cfg.EmbeddingConcurrency},
		{"EMBEDDING_MAX_ATTEMPTS", 5, 1, &cfg.EmbeddingMaxAttempts},
		{"CHUNK_TARGET_TOKENS", 350, 1, &cfg.ChunkTargetTokens},
		{"CHUNK_OVERLAP_CHARS", 120, 0, &cfg.ChunkOverlapChars},
		{"CONTEXT_BUDGET_TOKENS", 3000, 1, &cfg.ContextBudgetTokens},
		{"INGEST_CONCURRENCY", 2, 1, &cfg.IngestConcurrency},
	}
	for _, field := range ints {
		v, err := src.getInt(field.key, field.def)
		if err != nil {
			return nil, err
		}
		if v < field.min {
			return nil, fmt.Errorf("%s must be at least %d", field.key, field.min)
		}
		*field.dest = v
	}

	rps, err := strconv.ParseFloat(src.get("EMBEDDING_RPS", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_RPS must be a number: %w", err)
	}
	if rps < 0 {
		return nil, fmt.Errorf("EMBEDDING_RPS must not be negative")
	}
	cfg.EmbeddingRPS = rps

	embedTimeout, err := time.ParseDuration(src.get("EMBEDDING_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_TIMEOUT must be a duration: %w", err)
	}
	if embedTimeout <= 0 {
		return nil, fmt.Errorf("EMBEDDING_TIMEOUT must be greater than 0")
	}
	cfg.EmbeddingTimeout = embedTimeout

	timeout, err := time.ParseDuration(src.get("GENERATION_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("GENERATION_TIMEOUT must be a duration: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("GENERATION_TIMEOUT must be greater than 0")
	}
	cfg.GenerationTimeout = timeout

	if cfg.IngestOnStart, err = src.getBool("INGEST_ON_START", false); err != nil {
		return nil, err
	}
	if cfg.RerankLexical, err = src.getBool("RERANK_LEXICAL", false); err != nil {
		return nil, err
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(src.get("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	if cfg.VectorStore != "qdrant" && cfg.VectorStore != "memory" {
		return nil, fmt.Errorf("VECTOR_STORE must be qdrant or memory, got %q", cfg.VectorStore)
	}
	if cfg.ChunkOverlapChars >= cfg.ChunkTargetTokens*4 {
		return nil, fmt.Errorf("CHUNK_OVERLAP_CHARS must be smaller than the chunk target (%d chars)", cfg.ChunkTargetTokens*4)
	}

	// Create ./data directory if it doesn't exist
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// readFile loads a flat YAML mapping of configuration keys.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		switch val := v.(type) {
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			values[strings.ToUpper(k)] = strings.Join(parts, ",")
		default:
			values[strings.ToUpper(k)] = fmt.Sprint(val)
		}
	}
	return values, nil
}

func (s source) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := s.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (s source) getInt(key string, defaultValue int) (int, error) {
	raw := s.get(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

func (s source) getBool(key string, defaultValue bool) (bool, error) {
	raw := s.get(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return v, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	return source{}.get(key, defaultValue)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
