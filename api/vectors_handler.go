package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/vecstore/pkg/store"
)

// UpsertRequest is the body of POST /v1/collections/:name/vectors.
type UpsertRequest struct {
	Vectors []store.UpsertInput `json:"vectors"`
}

// UpsertResponse carries the stored ids in request order.
type UpsertResponse struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// DeleteVectorsRequest is the body of POST /v1/collections/:name/vectors/delete.
type DeleteVectorsRequest struct {
	IDs []string `json:"ids"`
}

// DeleteVectorsResponse echoes how many ids were requested for deletion.
type DeleteVectorsResponse struct {
	Deleted int `json:"deleted"`
}

func (s *Server) handleUpsert(c *fiber.Ctx) error {
	var req UpsertRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	if len(req.Vectors) == 0 {
		return badRequest(c, "vectors are required")
	}

	ids, err := s.store.Upsert(c.UserContext(), c.Params("name"), req.Vectors)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(UpsertResponse{IDs: ids, Count: len(ids)})
}

func (s *Server) handleGetVector(c *fiber.Ctx) error {
	v, err := s.store.Get(c.UserContext(), c.Params("name"), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	if v == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "vector not found"})
	}
	return c.JSON(v)
}

func (s *Server) handleDeleteVectors(c *fiber.Ctx) error {
	var req DeleteVectorsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	if len(req.IDs) == 0 {
		return badRequest(c, "ids are required")
	}

	if err := s.store.Delete(c.UserContext(), c.Params("name"), req.IDs); err != nil {
		return s.fail(c, err)
	}

	return c.JSON(DeleteVectorsResponse{Deleted: len(req.IDs)})
}
