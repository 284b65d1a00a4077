// Package embeddings turns query text into vectors for text searches.
package embeddings

import (
	"context"
	"errors"
)

var (
	// ErrEmbedding wraps provider failures.
	ErrEmbedding = errors.New("embedding failed")

	// ErrNoEmbedder is returned when a text query arrives and no provider is
	// configured.
	ErrNoEmbedder = errors.New("no embedder configured")
)

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
