package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_query_service.go -package=mocks regdocs-rag/internal/service QueryService

import (
	"context"
	"fmt"
	"strings"

	"regdocs-rag/internal/contextutil"
	"regdocs-rag/internal/rag"
)

// Limits for the number of chunks a request may retrieve.
const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 20
	DefaultAskLimit    = 3
	MaxAskLimit        = 10
)

// SearchRequest represents a search request in the domain layer.
type SearchRequest struct {
	Query string
	// Limit is the number of results. Zero selects DefaultSearchLimit.
	Limit int
	// Source optionally restricts results to one document (corpus-relative path).
	Source string
}

// AskRequest represents a question in the domain layer.
type AskRequest struct {
	Question string
	// Limit is the number of context chunks. Zero selects DefaultAskLimit.
	Limit  int
	Source string
}

// QueryService validates requests and runs them against the RAG engine.
type QueryService interface {
	// Search returns the chunks nearest to the query.
	Search(ctx context.Context, req SearchRequest) (rag.RetrievalResult, error)
	// Ask answers a question from retrieved chunks.
	Ask(ctx context.Context, req AskRequest) (rag.Answer, error)
}

// queryService implements QueryService.
type queryService struct {
	engine rag.Engine
}

// NewQueryService creates a new QueryService.
func NewQueryService(engine rag.Engine) QueryService {
	return &queryService{engine: engine}
}

// Search validates the request and retrieves chunks.
func (s *queryService) Search(ctx context.Context, req SearchRequest) (rag.RetrievalResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	query, limit, err := validate("query", req.Query, req.Limit, DefaultSearchLimit, MaxSearchLimit)
	if err != nil {
		logger.WarnContext(ctx, "invalid search request", "error", err)
		return rag.RetrievalResult{}, err
	}

	result, err := s.engine.Search(ctx, rag.Query{Text: query, Limit: limit, Source: req.Source})
	if err != nil {
		logger.ErrorContext(ctx, "search failed", "error", err)
		return rag.RetrievalResult{}, WrapError(err, "failed to search")
	}

	logger.InfoContext(ctx, "search request processed", "query_length", len(query), "limit", limit, "results", len(result.Candidates))
	return result, nil
}

// Ask validates the request and generates an answer.
func (s *queryService) Ask(ctx context.Context, req AskRequest) (rag.Answer, error) {
	logger := contextutil.LoggerFromContext(ctx)

	question, limit, err := validate("question", req.Question, req.Limit, DefaultAskLimit, MaxAskLimit)
	if err != nil {
		logger.WarnContext(ctx, "invalid ask request", "error", err)
		return rag.Answer{}, err
	}

	answer, err := s.engine.Ask(ctx, rag.Query{Text: question, Limit: limit, Source: req.Source})
	if err != nil {
		logger.ErrorContext(ctx, "ask failed", "error", err)
		return rag.Answer{}, WrapError(err, "failed to answer question")
	}

	logger.InfoContext(ctx, "ask request processed",
		"question_length", len(question),
		"limit", limit,
		"sources", len(answer.Sources),
		"no_context", answer.NoContext,
	)
	return answer, nil
}

// OptionalLimit resolves a limit a client may leave out. Omitted selects the
// default (zero); an explicit value below 1 is rejected.
func OptionalLimit(limit *int) (int, error) {
	if limit == nil {
		return 0, nil
	}
	if *limit < 1 {
		return 0, &ValidationError{Field: "limit", Message: "must be at least 1"}
	}
	return *limit, nil
}

// validate trims the text and resolves the limit. A zero limit takes the
// default; anything else outside [1, maxLimit] is rejected.
func validate(field, text string, limit, defaultLimit, maxLimit int) (string, int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", 0, &ValidationError{Field: field, Message: "cannot be empty"}
	}
	if limit == 0 {
		limit = defaultLimit
	}
	if limit < 1 || limit > maxLimit {
		return "", 0, &ValidationError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", maxLimit)}
	}
	return text, limit, nil
}
