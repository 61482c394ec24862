package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"regdocs-rag/internal/contextutil"
	"regdocs-rag/internal/rag"
	"regdocs-rag/internal/service"
)

// maxBodyBytes bounds request bodies for JSON endpoints.
const maxBodyBytes = 1 << 20

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// SourceResponse is one retrieved chunk in a search result or an answer.
//
// swagger:model SourceResponse
type SourceResponse struct {
	// Stable chunk identifier
	ChunkID string `json:"chunk_id"`
	// Chunk text
	Text string `json:"text"`
	// Document title
	Title string `json:"title"`
	// Corpus-relative path of the source document
	Source string `json:"source"`
	// Heading path of the chunk, outermost first
	SectionPath []string `json:"section_path"`
	// Cosine distance to the query, lower is closer
	Distance float32 `json:"distance"`
}

func toSourceResponses(candidates []rag.Candidate) []SourceResponse {
	out := make([]SourceResponse, len(candidates))
	for i, c := range candidates {
		path := c.SectionPath
		if path == nil {
			path = []string{}
		}
		out[i] = SourceResponse{
			ChunkID:     c.ChunkID,
			Text:        c.Text,
			Title:       c.Title,
			Source:      c.Source,
			SectionPath: path,
			Distance:    c.Distance,
		}
	}
	return out
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON writes v with the given status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}

// writeQueryError maps query errors to HTTP status codes: 400 for invalid
// input, 503 when retrieval fails, 502 when generation fails and 504 when
// generation times out.
func writeQueryError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := contextutil.LoggerFromContext(ctx)

	var (
		validationErr *service.ValidationError
		retrievalErr  *rag.RetrievalError
		generationErr *rag.GenerationError
	)
	switch {
	case errors.As(err, &validationErr):
		logger.WarnContext(ctx, "invalid request", "error", err)
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &generationErr) && generationErr.Timeout:
		logger.ErrorContext(ctx, "generation timed out", "error", err)
		writeError(w, http.StatusGatewayTimeout, "Answer generation timed out")
	case errors.As(err, &generationErr):
		logger.ErrorContext(ctx, "generation failed", "error", err)
		writeError(w, http.StatusBadGateway, "Answer generation failed")
	case errors.As(err, &retrievalErr):
		logger.ErrorContext(ctx, "retrieval failed", "stage", retrievalErr.Stage, "error", err)
		writeError(w, http.StatusServiceUnavailable, "Retrieval unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		logger.ErrorContext(ctx, "request timed out", "error", err)
		writeError(w, http.StatusGatewayTimeout, "Request timed out")
	default:
		logger.ErrorContext(ctx, "query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
