package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"regdocs-rag/internal/handlers"
	"regdocs-rag/internal/service"
)

// defaultRequestTimeout bounds search and ask requests. Generation has its
// own, shorter timeout inside the engine.
const defaultRequestTimeout = 2 * time.Minute

// Deps holds dependencies for the HTTP router.
type Deps struct {
	QueryService service.QueryService
	IndexService service.IndexService
	Collection   handlers.CollectionChecker
	Version      string
	// RequestTimeout bounds query requests. Zero selects the default.
	RequestTimeout time.Duration
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	// Add chi middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)

	// Add CORS middleware
	r.Use(CORS)

	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r.Method(http.MethodGet, "/", handlers.NewInfoHandler(deps.Version, deps.Collection.Name()))
	r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(deps.Collection))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		r.Method(http.MethodPost, "/search", handlers.NewSearchHandler(deps.QueryService))
		r.Method(http.MethodPost, "/ask", handlers.NewAskHandler(deps.QueryService))
	})

	indexHandler := handlers.NewIndexHandler(deps.IndexService)
	r.Method(http.MethodPost, "/index", indexHandler)
	r.Method(http.MethodGet, "/index", indexHandler)
	r.Method(http.MethodGet, "/stats", handlers.NewStatsHandler(deps.IndexService))

	return r
}
