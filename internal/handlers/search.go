package handlers

import (
	"net/http"

	"regdocs-rag/internal/contextutil"
	"regdocs-rag/internal/service"
)

// SearchHandler handles HTTP requests for semantic search.
type SearchHandler struct {
	queries service.QueryService
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(queries service.QueryService) *SearchHandler {
	return &SearchHandler{queries: queries}
}

// SearchRequest represents the HTTP request payload for search.
//
// swagger:model SearchRequest
type SearchRequest struct {
	Query  string `json:"query"`
	Limit  *int   `json:"limit,omitempty"`
	Source string `json:"source,omitempty"`
}

// SearchResponse is the ordered list of results, closest first.
//
// swagger:model SearchResponse
type SearchResponse []SourceResponse

// ServeHTTP handles search requests.
//
// swagger:route POST /search search
//
// # Semantic search over indexed documents
//
// Returns the chunks nearest to the query, closest first. limit defaults
// to 5 and must be between 1 and 20.
//
// responses:
//
//	'200':
//	  schema:
//	    "$ref": "#/definitions/SearchResponse"
//	'400':
//	  description: Invalid query or limit
//	'503':
//	  description: Embedding service or vector store unavailable
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	limit, err := service.OptionalLimit(req.Limit)
	if err != nil {
		writeQueryError(ctx, w, err)
		return
	}

	result, err := h.queries.Search(ctx, service.SearchRequest{
		Query:  req.Query,
		Limit:  limit,
		Source: req.Source,
	})
	if err != nil {
		writeQueryError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, SearchResponse(toSourceResponses(result.Candidates)))
}
