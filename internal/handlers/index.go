package handlers

import (
	"errors"
	"net/http"
	"time"

	"regdocs-rag/internal/contextutil"
	"regdocs-rag/internal/service"
)

// IndexHandler handles HTTP requests for triggering re-indexing.
type IndexHandler struct {
	indexService service.IndexService
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(indexService service.IndexService) *IndexHandler {
	return &IndexHandler{indexService: indexService}
}

// IndexResponse represents the response from the index endpoint.
type IndexResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// IndexStatusResponse describes the current or last indexing run.
type IndexStatusResponse struct {
	Running    bool               `json:"running"`
	Rebuild    bool               `json:"rebuild"`
	StartedAt  string             `json:"started_at,omitempty"`
	FinishedAt string             `json:"finished_at,omitempty"`
	Files      int                `json:"files"`
	Indexed    int                `json:"indexed"`
	Skipped    int                `json:"skipped"`
	Chunks     int                `json:"chunks"`
	Failures   []IngestionFailure `json:"failures,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// IngestionFailure is one document that could not be ingested.
type IngestionFailure struct {
	Source string `json:"source"`
	Stage  string `json:"stage"`
	Error  string `json:"error"`
}

// ServeHTTP starts an indexing run (POST) or reports its status (GET).
// POST /index ingests new and changed documents; POST /index?force=true
// drops the collection and re-ingests everything. The run continues after
// the response is written.
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	switch r.Method {
	case http.MethodGet:
		writeJSON(ctx, w, http.StatusOK, toIndexStatusResponse(h.indexService.Status()))
		return
	case http.MethodPost:
	default:
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	force := r.URL.Query().Get("force") == "true"
	if force {
		logger.InfoContext(ctx, "index rebuild triggered via API")
	} else {
		logger.InfoContext(ctx, "re-indexing triggered via API")
	}

	if err := h.indexService.Start(force); err != nil {
		if errors.Is(err, service.ErrIndexRunning) {
			writeError(w, http.StatusConflict, "Indexing already in progress")
			return
		}
		logger.ErrorContext(ctx, "failed to start indexing", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to start indexing")
		return
	}

	message := "Indexing started. Check GET /index for progress."
	if force {
		message = "Rebuild started (collection recreated, all documents re-ingested). Check GET /index for progress."
	}
	writeJSON(ctx, w, http.StatusAccepted, IndexResponse{
		Message: message,
		Status:  "accepted",
	})
}

func toIndexStatusResponse(s service.IndexStatus) IndexStatusResponse {
	resp := IndexStatusResponse{
		Running: s.Running,
		Rebuild: s.Rebuild,
	}
	if !s.StartedAt.IsZero() {
		resp.StartedAt = s.StartedAt.Format(time.RFC3339)
	}
	if !s.FinishedAt.IsZero() {
		resp.FinishedAt = s.FinishedAt.Format(time.RFC3339)
	}
	if s.Err != nil {
		resp.Error = s.Err.Error()
	}
	if s.Report != nil {
		resp.Files = s.Report.Files
		resp.Indexed = s.Report.Indexed
		resp.Skipped = s.Report.Skipped
		resp.Chunks = s.Report.Chunks
		for _, e := range s.Report.Errors {
			resp.Failures = append(resp.Failures, IngestionFailure{
				Source: e.Source,
				Stage:  e.Stage,
				Error:  e.Err.Error(),
			})
		}
	}
	return resp
}
