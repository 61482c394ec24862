package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"regdocs-rag/internal/rag"
	"regdocs-rag/internal/service"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"the search query"`
	Limit  *int   `json:"limit,omitempty" jsonschema:"number of results, 1 to 20 (default 5)"`
	Source string `json:"source,omitempty" jsonschema:"restrict results to one document, by corpus-relative path"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SourceOutput `json:"results"`
	Count   int            `json:"count"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer"`
	Limit    *int   `json:"limit,omitempty" jsonschema:"number of context chunks, 1 to 10 (default 3)"`
	Source   string `json:"source,omitempty" jsonschema:"restrict context to one document, by corpus-relative path"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Question  string         `json:"question"`
	Answer    string         `json:"answer"`
	Sources   []SourceOutput `json:"sources"`
	NoContext bool           `json:"no_context,omitempty"`
}

// SourceOutput is one retrieved chunk.
type SourceOutput struct {
	Citation    int      `json:"citation"`
	Title       string   `json:"title"`
	Source      string   `json:"source"`
	SectionPath []string `json:"section_path"`
	Text        string   `json:"text"`
	Distance    float32  `json:"distance"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Semantic search over the indexed regulatory documents. Returns the closest chunks with their section path.",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed regulatory documents. The answer cites sources as [n].",
	}, s.handleAsk)
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit, err := service.OptionalLimit(input.Limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	result, err := s.queries.Search(ctx, service.SearchRequest{
		Query:  input.Query,
		Limit:  limit,
		Source: input.Source,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	sources := toSourceOutputs(result.Candidates)
	return nil, SearchOutput{Results: sources, Count: len(sources)}, nil
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	limit, err := service.OptionalLimit(input.Limit)
	if err != nil {
		return nil, AskOutput{}, err
	}

	answer, err := s.queries.Ask(ctx, service.AskRequest{
		Question: input.Question,
		Limit:    limit,
		Source:   input.Source,
	})
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		Question:  answer.Question,
		Answer:    answer.Text,
		Sources:   toSourceOutputs(answer.Sources),
		NoContext: answer.NoContext,
	}, nil
}

func toSourceOutputs(candidates []rag.Candidate) []SourceOutput {
	out := make([]SourceOutput, len(candidates))
	for i, c := range candidates {
		// Text before the first heading has no section; the schema wants an array
		path := c.SectionPath
		if path == nil {
			path = []string{}
		}
		out[i] = SourceOutput{
			Citation:    i + 1,
			Title:       c.Title,
			Source:      c.Source,
			SectionPath: path,
			Text:        c.Text,
			Distance:    c.Distance,
		}
	}
	return out
}
