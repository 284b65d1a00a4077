package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/papercomputeco/vecstore/api/mcp"
	"github.com/papercomputeco/vecstore/api/search"
	"github.com/papercomputeco/vecstore/pkg/embeddings"
	"github.com/papercomputeco/vecstore/pkg/store"
	"github.com/papercomputeco/vecstore/pkg/vector"
)

// Facade is the store surface the API serves. *store.Store implements it.
type Facade interface {
	search.Querier
	mcp.Catalog

	CreateCollection(ctx context.Context, name string, dimension uint, metric vector.Metric, description string) (*vector.Collection, error)
	Collection(name string) (*vector.Collection, error)
	DeleteCollection(ctx context.Context, name string) error
	RebuildIndex(ctx context.Context, name string) error
	CollectionStats(ctx context.Context, name string) (*store.CollectionStats, error)

	Upsert(ctx context.Context, collection string, inputs []store.UpsertInput) ([]string, error)
	Get(ctx context.Context, collection, id string) (*vector.Vector, error)
	Delete(ctx context.Context, collection string, ids []string) error

	Cluster(ctx context.Context, collection string, k int) ([]store.ClusterResult, error)
	PerformanceStats(ctx context.Context) *store.PerformanceStats
}

// Server is the API server for managing and querying vector collections.
type Server struct {
	config   Config
	store    Facade
	searcher *search.Searcher
	logger   *slog.Logger
	app      *fiber.App
}

// NewServer creates a new API server. embedder may be nil, which disables
// text queries.
func NewServer(config Config, st Facade, embedder embeddings.Embedder, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          fiberErrorHandler,
	})
	app.Use(recover.New())

	s := &Server{
		config:   config,
		store:    st,
		searcher: search.NewSearcher(st, embedder, logger),
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Get("/collections", s.handleListCollections)
	v1.Post("/collections", s.handleCreateCollection)
	v1.Get("/collections/:name", s.handleGetCollection)
	v1.Delete("/collections/:name", s.handleDeleteCollection)
	v1.Get("/collections/:name/stats", s.handleCollectionStats)
	v1.Post("/collections/:name/reindex", s.handleReindex)

	v1.Post("/collections/:name/vectors", s.handleUpsert)
	v1.Get("/collections/:name/vectors/:id", s.handleGetVector)
	v1.Post("/collections/:name/vectors/delete", s.handleDeleteVectors)

	v1.Post("/collections/:name/query", s.handleQuery)
	v1.Post("/collections/:name/clusters", s.handleClusters)
	v1.Post("/search", s.handleMultiSearch)
	v1.Get("/stats", s.handleStats)

	if !config.DisableMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Searcher: s.searcher,
			Catalog:  st,
			Logger:   logger.With("component", "mcp"),
		})
		if err != nil {
			return nil, err
		}
		mcpHandler := adaptor.HTTPHandler(mcpServer.Handler())
		app.All("/mcp", mcpHandler)
		app.All("/mcp/*", mcpHandler)
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
