// Package mcp exposes vecstore queries as Model Context Protocol tools.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/vecstore/api/search"
	"github.com/papercomputeco/vecstore/pkg/utils"
	"github.com/papercomputeco/vecstore/pkg/vector"
)

// Catalog lists the registered collections.
type Catalog interface {
	Collections() []vector.Collection
}

type Config struct {
	// Searcher runs query tool calls.
	Searcher *search.Searcher

	// Catalog backs the list_collections tool.
	Catalog Catalog

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the query and list_collections tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "vecstore",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)
	s.mcpServer = mcpServer

	if !c.Noop {
		if c.Searcher == nil {
			return nil, errors.New("searcher is required")
		}
		if c.Catalog == nil {
			return nil, errors.New("collection catalog is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        queryToolName,
			Description: queryDescription,
		}, s.handleQuery)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        listCollectionsToolName,
			Description: listCollectionsDescription,
		}, s.handleListCollections)
	}

	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCPServer returns the underlying server, for in-process transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}
