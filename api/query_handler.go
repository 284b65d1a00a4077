package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/vecstore/api/search"
	"github.com/papercomputeco/vecstore/pkg/store"
)

// ClusterRequest is the body of POST /v1/collections/:name/clusters.
type ClusterRequest struct {
	K int `json:"k"`
}

// ClusterResponse lists the clusters found.
type ClusterResponse struct {
	Clusters []store.ClusterResult `json:"clusters"`
	Count    int                   `json:"count"`
}

// handleQuery handles POST /v1/collections/:name/query. The body carries
// either "vector" or "text"; text is embedded with the configured embedder.
func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req search.Input
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	if req.TopK < 0 {
		return badRequest(c, "top_k must not be negative")
	}

	out, err := s.searcher.Search(c.UserContext(), c.Params("name"), req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(out)
}

// handleMultiSearch handles POST /v1/search over several collections.
func (s *Server) handleMultiSearch(c *fiber.Ctx) error {
	var req search.MultiInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	if req.TopK < 0 {
		return badRequest(c, "top_k must not be negative")
	}

	out, err := s.searcher.SearchAll(c.UserContext(), req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(out)
}

func (s *Server) handleClusters(c *fiber.Ctx) error {
	var req ClusterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	clusters, err := s.store.Cluster(c.UserContext(), c.Params("name"), req.K)
	if err != nil {
		return s.fail(c, err)
	}
	if clusters == nil {
		clusters = []store.ClusterResult{}
	}
	return c.JSON(ClusterResponse{Clusters: clusters, Count: len(clusters)})
}
