package handlers

import (
	"net/http"

	"regdocs-rag/internal/contextutil"
	"regdocs-rag/internal/service"
)

// StatsHandler serves index coverage statistics.
type StatsHandler struct {
	indexService service.IndexService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(indexService service.IndexService) *StatsHandler {
	return &StatsHandler{indexService: indexService}
}

// ServeHTTP handles GET /stats.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats, err := h.indexService.Stats(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to get coverage stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get coverage stats")
		return
	}
	writeJSON(ctx, w, http.StatusOK, stats)
}
