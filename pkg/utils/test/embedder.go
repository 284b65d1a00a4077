// Package testutils holds fakes shared by tests across packages.
package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/papercomputeco/vecstore/pkg/embeddings"
)

// MockEmbedder returns fixed embeddings per text, or Default for unknown text.
type MockEmbedder struct {
	mu         sync.Mutex
	Embeddings map[string][]float32
	Default    []float32
	Calls      []string

	// FailOn causes Embed to return an error when the input text matches
	FailOn string
}

func NewMockEmbedder(defaultEmbedding ...float32) *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
		Default:    defaultEmbedding,
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, text)

	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("%w: mock failure for %q", embeddings.ErrEmbedding, text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}
	return m.Default, nil
}

func (m *MockEmbedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*MockEmbedder)(nil)
