package handlers

import (
	"net/http"

	"regdocs-rag/internal/contextutil"
	"regdocs-rag/internal/service"
)

// AskHandler handles HTTP requests for RAG queries.
type AskHandler struct {
	queries service.QueryService
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(queries service.QueryService) *AskHandler {
	return &AskHandler{queries: queries}
}

// AskRequest represents the HTTP request payload for RAG queries.
//
// swagger:model AskRequest
type AskRequest struct {
	Question string `json:"question"`
	Limit    *int   `json:"limit,omitempty"`
	Source   string `json:"source,omitempty"`
}

// AskResponse represents the HTTP response payload for RAG queries.
//
// swagger:model AskResponse
type AskResponse struct {
	// The question as asked
	Question string `json:"question"`

	// The generated answer, citing sources as [n]
	Answer string `json:"answer"`

	// The chunks placed in the prompt, in citation order
	Sources []SourceResponse `json:"sources"`

	// NoContext is set when nothing relevant was retrieved and no
	// generation was attempted.
	NoContext bool `json:"no_context,omitempty"`
}

// ServeHTTP handles HTTP requests for RAG queries.
//
// Ask a question and get an answer grounded in the indexed regulatory
// documents. The chunks used as context are returned as sources; the
// answer cites them by their 1-based position.
//
// swagger:route POST /ask askQuestion
//
// # Ask a question using RAG
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// parameters:
//   - in: body
//     name: body
//     required: true
//     schema:
//     "$ref": "#/definitions/AskRequest"
//
// responses:
//
//	'200':
//	  description: Successful response with answer and sources
//	  schema:
//	    "$ref": "#/definitions/AskResponse"
//	'400':
//	  description: Bad request (empty question or limit outside 1..10)
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'502':
//	  description: Answer generation failed
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'503':
//	  description: Embedding service or vector store unavailable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'504':
//	  description: Answer generation timed out
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
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

	answer, err := h.queries.Ask(ctx, service.AskRequest{
		Question: req.Question,
		Limit:    limit,
		Source:   req.Source,
	})
	if err != nil {
		writeQueryError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, AskResponse{
		Question:  answer.Question,
		Answer:    answer.Text,
		Sources:   toSourceResponses(answer.Sources),
		NoContext: answer.NoContext,
	})
}
