package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"regdocs-rag/internal/service"
)

// ErrMissingQueryService is returned when the server has nothing to query.
var ErrMissingQueryService = errors.New("query service is required")

// Server exposes search and ask as MCP tools.
type Server struct {
	queries service.QueryService
	server  *mcp.Server
}

// NewServer creates an MCP server backed by queries.
func NewServer(queries service.QueryService, version string) (*Server, error) {
	if queries == nil {
		return nil, ErrMissingQueryService
	}

	impl := &mcp.Implementation{
		Name:    "regdocs-rag",
		Version: version,
	}

	s := &Server{
		queries: queries,
		server:  mcp.NewServer(impl, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves MCP over stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
