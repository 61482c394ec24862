package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regdocs-rag/internal/config"
	"regdocs-rag/internal/llm"
	"regdocs-rag/internal/service"
	"regdocs-rag/internal/vectorstore"
)

const testDim = 8

// newProviderServer fakes the embeddings and chat completion endpoints.
// Embeddings have size dim.
func newProviderServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req llm.EmbeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := llm.EmbeddingsResponse{}
		for i, text := range req.Input {
			vec := make([]float64, dim)
			vec[0] = 1
			vec[1+len(strings.Fields(text))%(dim-1)] = 1
			resp.Data = append(resp.Data, llm.EmbeddingData{Index: i, Embedding: vec})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(llm.ChatResponse{
			Choices: []llm.ChatChoice{{Message: llm.ChatChoiceMessage{Role: "assistant", Content: "A documented process is required [1]."}}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, providerURL string) *config.Config {
	t.Helper()
	corpusDir := t.TempDir()
	doc := "# ISO 14971\n\n## 4.2 Risk Management\n\nRisk management requires a documented process.\n"
	require.NoError(t, os.WriteFile(filepath.Join(corpusDir, "14971.md"), []byte(doc), 0644))

	return &config.Config{
		LLMBaseURL:           providerURL,
		LLMModelName:         "test-llm",
		LLMAPIKey:            "key",
		EmbeddingBaseURL:     providerURL,
		EmbeddingModelName:   "test-embed",
		EmbeddingBatchSize:   8,
		EmbeddingConcurrency: 1,
		EmbeddingMaxAttempts: 1,
		CorpusDir:            corpusDir,
		CorpusInclude:        []string{"**/*.md"},
		DBPath:               filepath.Join(t.TempDir(), "catalog.db"),
		VectorStore:          "memory",
		QdrantCollection:     "test_documents",
		QdrantVectorSize:     testDim,
		ChunkTargetTokens:    350,
		ChunkOverlapChars:    120,
		ContextBudgetTokens:  3000,
		GenerationTimeout:    5 * time.Second,
		IngestConcurrency:    1,
	}
}

func TestNew_EndToEnd(t *testing.T) {
	srv := newProviderServer(t, testDim)
	cfg := testConfig(t, srv.URL)
	ctx := context.Background()

	a, err := New(ctx, cfg, Options{ProbeEmbedder: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	report, err := a.Pipeline.IngestAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)
	assert.Empty(t, report.Errors)

	result, err := a.Queries.Search(ctx, service.SearchRequest{Query: "risk management process"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Candidates)
	assert.Equal(t, "14971.md", result.Candidates[0].Source)
	assert.Contains(t, result.Candidates[0].SectionPath, "4.2 Risk Management")

	answer, err := a.Queries.Ask(ctx, service.AskRequest{Question: "What does risk management require?"})
	require.NoError(t, err)
	assert.Equal(t, "A documented process is required [1].", answer.Text)
	assert.False(t, answer.NoContext)
	assert.NotEmpty(t, answer.Sources)
}

func TestNew_EmbeddingCache(t *testing.T) {
	srv := newProviderServer(t, testDim)
	cfg := testConfig(t, srv.URL)
	cfg.EmbeddingCachePath = filepath.Join(t.TempDir(), "embeddings.bolt")

	a, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	_, err = a.Pipeline.IngestAll(context.Background(), false)
	require.NoError(t, err)

	_, err = os.Stat(cfg.EmbeddingCachePath)
	assert.NoError(t, err)
}

func TestNew_ProbeDimensionMismatch(t *testing.T) {
	srv := newProviderServer(t, testDim)
	cfg := testConfig(t, srv.URL)
	cfg.QdrantVectorSize = testDim * 2

	a, err := New(context.Background(), cfg, Options{ProbeEmbedder: true})
	require.Error(t, err)
	assert.Nil(t, a)
}

func TestNew_InvalidCorpusPattern(t *testing.T) {
	srv := newProviderServer(t, testDim)
	cfg := testConfig(t, srv.URL)
	cfg.CorpusInclude = []string{"[unclosed"}

	_, err := New(context.Background(), cfg, Options{})
	assert.Error(t, err)
}

type fixedEmbedder struct {
	vecs [][]float32
	err  error
}

func (f fixedEmbedder) EmbedTexts(context.Context, []string) ([][]float32, error) {
	return f.vecs, f.err
}

func TestProbeEmbedder(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, ProbeEmbedder(ctx, fixedEmbedder{vecs: [][]float32{make([]float32, 4)}}, 4))

	err := ProbeEmbedder(ctx, fixedEmbedder{vecs: [][]float32{make([]float32, 3)}}, 4)
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	err = ProbeEmbedder(ctx, fixedEmbedder{vecs: nil}, 4)
	assert.Error(t, err)

	err = ProbeEmbedder(ctx, fixedEmbedder{err: &llm.StatusError{StatusCode: 401}}, 4)
	assert.Error(t, err)
}
