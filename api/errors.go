package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/vecstore/api/search"
	"github.com/papercomputeco/vecstore/pkg/embeddings"
	"github.com/papercomputeco/vecstore/pkg/similarity"
	"github.com/papercomputeco/vecstore/pkg/vector"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps store and embedding errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, vector.ErrCollectionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, vector.ErrDimensionMismatch),
		errors.Is(err, vector.ErrInvalidCollection),
		errors.Is(err, vector.ErrInvalidFilter),
		errors.Is(err, similarity.ErrInvalidK),
		errors.Is(err, search.ErrEmptyQuery):
		return fiber.StatusBadRequest
	case errors.Is(err, embeddings.ErrNoEmbedder):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}

// fiberErrorHandler renders routing errors (404, 405) in the same shape.
func fiberErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}
