package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/vecstore/pkg/vector"
)

// CreateCollectionRequest is the body of POST /v1/collections. Zero
// dimension and empty metric select the store defaults.
type CreateCollectionRequest struct {
	Name        string `json:"name"`
	Dimension   uint   `json:"dimension,omitempty"`
	Metric      string `json:"metric,omitempty"`
	Description string `json:"description,omitempty"`
}

// CollectionsResponse lists collections.
type CollectionsResponse struct {
	Collections []vector.Collection `json:"collections"`
	Count       int                 `json:"count"`
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleListCollections(c *fiber.Ctx) error {
	collections := s.store.Collections()
	if collections == nil {
		collections = []vector.Collection{}
	}
	return c.JSON(CollectionsResponse{Collections: collections, Count: len(collections)})
}

func (s *Server) handleCreateCollection(c *fiber.Ctx) error {
	var req CreateCollectionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	metric, err := vector.ParseMetric(req.Metric)
	if err != nil {
		return s.fail(c, err)
	}

	coll, err := s.store.CreateCollection(c.UserContext(), req.Name, req.Dimension, metric, req.Description)
	if err != nil {
		return s.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(coll)
}

func (s *Server) handleGetCollection(c *fiber.Ctx) error {
	coll, err := s.store.Collection(c.Params("name"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(coll)
}

func (s *Server) handleDeleteCollection(c *fiber.Ctx) error {
	if err := s.store.DeleteCollection(c.UserContext(), c.Params("name")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleCollectionStats(c *fiber.Ctx) error {
	stats, err := s.store.CollectionStats(c.UserContext(), c.Params("name"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(stats)
}

func (s *Server) handleReindex(c *fiber.Ctx) error {
	if err := s.store.RebuildIndex(c.UserContext(), c.Params("name")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.store.PerformanceStats(c.UserContext()))
}
