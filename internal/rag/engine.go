package rag

import (
	"context"

	"regdocs-rag/internal/contextutil"
)

// NoContextAnswer is returned when retrieval finds nothing to answer from.
const NoContextAnswer = "No relevant passages were found in the indexed documents to answer this question."

// Engine exposes the two query operations.
type Engine interface {
	// Search retrieves the chunks nearest to the query without generation.
	Search(ctx context.Context, q Query) (RetrievalResult, error)

	// Ask retrieves chunks for the question and generates an answer from them.
	Ask(ctx context.Context, q Query) (Answer, error)
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	retriever   *Retriever
	synthesizer *Synthesizer
}

// NewEngine creates a new RAG engine.
func NewEngine(retriever *Retriever, synthesizer *Synthesizer) Engine {
	return &ragEngine{
		retriever:   retriever,
		synthesizer: synthesizer,
	}
}

func (e *ragEngine) Search(ctx context.Context, q Query) (RetrievalResult, error) {
	return e.retriever.Retrieve(ctx, q)
}

// Ask answers a question using RAG. An empty retrieval is not an error: it
// yields an answer with NoContext set and makes no generation call.
func (e *ragEngine) Ask(ctx context.Context, q Query) (Answer, error) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "RAG query started", "question_length", len(q.Text), "limit", q.Limit)

	result, err := e.retriever.Retrieve(ctx, q)
	if err != nil {
		return Answer{}, err
	}

	if len(result.Candidates) == 0 {
		logger.InfoContext(ctx, "no search results found")
		return Answer{
			Question:  q.Text,
			Text:      NoContextAnswer,
			Sources:   []Candidate{},
			NoContext: true,
		}, nil
	}

	answer, err := e.synthesizer.Answer(ctx, q.Text, result.Candidates)
	if err != nil {
		return Answer{}, err
	}

	logger.InfoContext(ctx, "RAG query completed", "sources", len(answer.Sources), "answer_length", len(answer.Text))
	return answer, nil
}
