package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode"

	"regdocs-rag/internal/convert"
	"regdocs-rag/internal/corpus"
	"regdocs-rag/internal/storage"
	"regdocs-rag/internal/vectorstore"
)

const testDim = 128

// wordEmbedder is a bag-of-words embedder: each distinct word gets its own
// dimension, so cosine distance reflects shared vocabulary.
type wordEmbedder struct {
	mu    sync.Mutex
	vocab map[string]int
	calls int
	fail  string // texts containing this word fail to embed
}

func newWordEmbedder() *wordEmbedder {
	return &wordEmbedder{vocab: make(map[string]int)}
}

func (e *wordEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if e.fail != "" && strings.Contains(text, e.fail) {
			return nil, fmt.Errorf("provider rejected input")
		}
		vec := make([]float32, testDim)
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			idx, ok := e.vocab[w]
			if !ok {
				idx = len(e.vocab)
				if idx >= testDim {
					return nil, fmt.Errorf("vocabulary exceeds %d words", testDim)
				}
				e.vocab[w] = idx
			}
			vec[idx]++
		}
		out[i] = vec
	}
	return out, nil
}

type testEnv struct {
	dir      string
	pipeline *Pipeline
	embedder *wordEmbedder
	coll     *vectorstore.Collection
	docRepo  *storage.DocumentRepo
	results  []FileResult
}

func newTestEnv(t *testing.T, files map[string]string, opts ...Option) *testEnv {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	for name, content := range files {
		writeCorpusFile(t, dir, name, content)
	}

	scanner, err := corpus.NewScanner(dir, []string{"**/*.md"}, nil)
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}

	db, err := storage.New(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	coll, err := vectorstore.Open(ctx, vectorstore.NewMemoryStore(), "test_documents", testDim)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	env := &testEnv{
		dir:      dir,
		embedder: newWordEmbedder(),
		coll:     coll,
		docRepo:  storage.NewDocumentRepo(db),
	}
	var mu sync.Mutex
	opts = append([]Option{WithProgress(func(r FileResult) {
		mu.Lock()
		env.results = append(env.results, r)
		mu.Unlock()
	})}, opts...)

	env.pipeline = NewPipeline(
		scanner,
		convert.NewByExtension(nil),
		env.embedder,
		coll,
		env.docRepo,
		storage.NewChunkRepo(db),
		opts...,
	)
	return env
}

func writeCorpusFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func (e *testEnv) count(t *testing.T) int {
	t.Helper()
	n, err := e.coll.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	return n
}
