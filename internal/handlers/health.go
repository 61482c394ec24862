package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"regdocs-rag/internal/contextutil"
)

// CollectionChecker reports whether the vector collection is reachable.
// *vectorstore.Collection satisfies it.
type CollectionChecker interface {
	Name() string
	Exists(ctx context.Context) (bool, error)
	Count(ctx context.Context) (int, error)
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	collection         CollectionChecker
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(collection CollectionChecker) *HealthHandler {
	return &HealthHandler{
		collection:         collection,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy", "degraded", or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if status is degraded or unhealthy)
	Issues []string `json:"issues,omitempty"`

	// Number of indexed chunks, when the collection is reachable
	Points *int `json:"points,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// Check the health status of the system and its dependencies.
// Returns 200 OK if healthy or degraded, 503 Service Unavailable if unhealthy.
//
// swagger:route GET /health healthCheck
//
// # Health check endpoint
//
// Returns the health status of the vector store and the document collection.
// An empty collection is reported as degraded.
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: System is healthy
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
//	'503':
//	  description: System is degraded or unhealthy
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Create context with timeout for health checks
	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string

	status := "healthy"
	httpStatus := http.StatusOK
	var points *int

	if h.checkVectorStore(checkCtx, logger) {
		checks["vector_store"] = "ok"
		if n, err := h.collection.Count(checkCtx); err != nil {
			logger.WarnContext(ctx, "failed to count collection points", "error", err)
			checks["documents"] = "error"
			issues = append(issues, "collection_count_failed")
			status = "degraded"
		} else {
			points = &n
			checks["documents"] = "ok"
			if n == 0 {
				checks["documents"] = "empty"
				issues = append(issues, "collection_empty")
				status = "degraded"
			}
		}
	} else {
		checks["vector_store"] = "error"
		issues = append(issues, "vector_store_unavailable")
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Points:    points,
	}

	if len(issues) > 0 {
		response.Issues = issues
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.ErrorContext(ctx, "failed to encode health response", "error", err)
	}
}

// checkVectorStore checks if the vector store is accessible.
func (h *HealthHandler) checkVectorStore(ctx context.Context, logger *slog.Logger) bool {
	exists, err := h.collection.Exists(ctx)
	if err != nil {
		logger.WarnContext(ctx, "vector store health check failed", "error", err)
		return false
	}
	if !exists {
		logger.WarnContext(ctx, "vector store collection does not exist", "collection", h.collection.Name())
		return false
	}
	return true
}
