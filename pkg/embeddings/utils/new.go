// Package embeddingutils builds an embeddings.Embedder from configuration.
package embeddingutils

import (
	"fmt"

	"github.com/papercomputeco/vecstore/pkg/embeddings"
	"github.com/papercomputeco/vecstore/pkg/embeddings/ollama"
)

const (
	ProviderOllama = "ollama"
	ProviderNone   = "none"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	Dimensions   uint
}

// NewEmbedder returns nil, nil for an empty or "none" provider so text
// queries can be rejected with embeddings.ErrNoEmbedder.
func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "", ProviderNone:
		return nil, nil
	case ProviderOllama:
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: int(o.Dimensions),
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}
