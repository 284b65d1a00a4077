package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/vecstore/api/search"
	"github.com/papercomputeco/vecstore/pkg/vector"
)

var (
	queryToolName    = "query"
	queryDescription = "Find the stored vectors most similar to a query in one collection. " +
		"Pass either a raw vector or text to embed. Results are ordered by score, best first."

	listCollectionsToolName    = "list_collections"
	listCollectionsDescription = "List the vector collections with their dimension and similarity metric."
)

// QueryInput is the argument of the query tool.
type QueryInput struct {
	Collection string         `json:"collection" jsonschema:"name of the collection to search"`
	Text       string         `json:"text,omitempty" jsonschema:"query text, embedded with the configured model"`
	Vector     []float32      `json:"vector,omitempty" jsonschema:"query vector; takes precedence over text"`
	TopK       int            `json:"top_k,omitempty" jsonschema:"number of results to return (default: 10)"`
	Filter     map[string]any `json:"filter,omitempty" jsonschema:"exact-match metadata filter"`
}

// ListCollectionsInput takes no arguments.
type ListCollectionsInput struct{}

// ListCollectionsOutput is the result of the list_collections tool.
type ListCollectionsOutput struct {
	Collections []vector.Collection `json:"collections"`
	Count       int                 `json:"count"`
}

func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, *search.Output, error) {
	s.config.Logger.Debug("MCP query request",
		"collection", input.Collection,
		"top_k", input.TopK,
		"text", input.Text != "",
	)

	out, err := s.config.Searcher.Search(ctx, input.Collection, search.Input{
		Vector: input.Vector,
		Text:   input.Text,
		TopK:   input.TopK,
		Filter: input.Filter,
	})
	if err != nil {
		s.config.Logger.Warn("MCP query failed", "collection", input.Collection, "error", err)
		return nil, nil, err
	}

	return nil, out, nil
}

func (s *Server) handleListCollections(_ context.Context, _ *mcp.CallToolRequest, _ ListCollectionsInput) (*mcp.CallToolResult, *ListCollectionsOutput, error) {
	collections := s.config.Catalog.Collections()
	if collections == nil {
		collections = []vector.Collection{}
	}

	return nil, &ListCollectionsOutput{
		Collections: collections,
		Count:       len(collections),
	}, nil
}
