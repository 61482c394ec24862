package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_rag.go -package=mocks regdocs-rag/internal/rag Embedder,Index,Generator,Engine

import (
	"context"
	"fmt"
	"sort"

	"regdocs-rag/internal/contextutil"
	"regdocs-rag/internal/vectorstore"
)

// rerankFetchFactor is how many more candidates are fetched than requested
// when lexical re-ranking may promote lower-ranked ones.
const rerankFetchFactor = 3

// Embedder embeds query text. It must be the same embedder used at ingestion.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is the searchable side of a collection handle.
type Index interface {
	Search(ctx context.Context, query []float32, k int, filters map[string]any) ([]vectorstore.SearchResult, error)
}

// Retriever finds the chunks nearest to a query.
type Retriever struct {
	embedder Embedder
	index    Index
	rerank   bool
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLexicalRerank enables the lexical re-rank stage.
func WithLexicalRerank(enabled bool) RetrieverOption {
	return func(r *Retriever) {
		r.rerank = enabled
	}
}

// NewRetriever creates a retriever over index.
func NewRetriever(embedder Embedder, index Index, opts ...RetrieverOption) *Retriever {
	r := &Retriever{embedder: embedder, index: index}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve embeds q.Text and returns at most q.Limit candidates in ascending
// distance order. Candidates with equal distance keep the index's order.
func (r *Retriever) Retrieve(ctx context.Context, q Query) (RetrievalResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if q.Limit <= 0 {
		return RetrievalResult{}, fmt.Errorf("limit must be greater than 0")
	}

	embeddings, err := r.embedder.EmbedTexts(ctx, []string{q.Text})
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed query", "error", err)
		return RetrievalResult{}, &RetrievalError{Stage: StageEmbed, Err: err}
	}
	if len(embeddings) != 1 {
		return RetrievalResult{}, &RetrievalError{
			Stage: StageEmbed,
			Err:   fmt.Errorf("expected 1 embedding, got %d", len(embeddings)),
		}
	}

	var filters map[string]any
	if q.Source != "" {
		filters = map[string]any{vectorstore.FieldSource: q.Source}
	}

	k := q.Limit
	if r.rerank {
		k *= rerankFetchFactor
	}

	results, err := r.index.Search(ctx, embeddings[0], k, filters)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search index", "error", err)
		return RetrievalResult{}, &RetrievalError{Stage: StageSearch, Err: err}
	}

	candidates := make([]Candidate, 0, len(results))
	for _, res := range results {
		candidates = append(candidates, candidateFromResult(res))
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})

	if r.rerank {
		rerankLexical(q.Text, candidates)
	}
	if len(candidates) > q.Limit {
		candidates = candidates[:q.Limit]
	}

	logger.InfoContext(ctx, "retrieval completed",
		"limit", q.Limit,
		"fetched", len(results),
		"returned", len(candidates),
		"rerank", r.rerank,
	)
	return RetrievalResult{Query: q.Text, Candidates: candidates}, nil
}

// candidateFromResult reads the chunk payload. Integers may come back as
// int, int64 or float64 depending on the store.
func candidateFromResult(res vectorstore.SearchResult) Candidate {
	c := Candidate{
		ChunkID:  stringField(res.Meta, vectorstore.FieldChunkID),
		Distance: res.Distance,
	}
	if c.ChunkID == "" {
		c.ChunkID = res.PointID
	}
	c.DocumentID = stringField(res.Meta, vectorstore.FieldDocumentID)
	c.Title = stringField(res.Meta, vectorstore.FieldTitle)
	c.Source = stringField(res.Meta, vectorstore.FieldSource)
	c.Text = stringField(res.Meta, vectorstore.FieldText)

	switch v := res.Meta[vectorstore.FieldPosition].(type) {
	case int:
		c.Position = v
	case int64:
		c.Position = int(v)
	case float64:
		c.Position = int(v)
	}

	switch v := res.Meta[vectorstore.FieldSectionPath].(type) {
	case []string:
		c.SectionPath = append([]string(nil), v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				c.SectionPath = append(c.SectionPath, s)
			}
		}
	}
	return c
}

func stringField(meta map[string]any, key string) string {
	s, _ := meta[key].(string)
	return s
}
