package handlers

import (
	"net/http"
)

// ServiceInfo describes the running service at GET /.
type ServiceInfo struct {
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	Collection string            `json:"collection"`
	Endpoints  map[string]string `json:"endpoints"`
}

// InfoHandler serves ServiceInfo.
type InfoHandler struct {
	info ServiceInfo
}

// NewInfoHandler creates a new InfoHandler.
func NewInfoHandler(version, collection string) *InfoHandler {
	return &InfoHandler{info: ServiceInfo{
		Name:       "Regulatory Documents RAG API",
		Version:    version,
		Collection: collection,
		Endpoints: map[string]string{
			"health": "GET /health",
			"search": "POST /search",
			"ask":    "POST /ask",
			"index":  "POST /index[?force=true], GET /index",
			"stats":  "GET /stats",
		},
	}}
}

func (h *InfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, h.info)
}
