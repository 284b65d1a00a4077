// Package search resolves vector or text queries and runs them against the
// store. It is shared by the REST endpoints and the MCP tools.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/vecstore/pkg/embeddings"
	"github.com/papercomputeco/vecstore/pkg/utils"
	"github.com/papercomputeco/vecstore/pkg/vector"
)

// ErrEmptyQuery is returned when a request carries neither a vector nor text.
var ErrEmptyQuery = errors.New("query requires a vector or text")

// Querier is the part of the store a Searcher needs.
type Querier interface {
	Query(ctx context.Context, collection string, query []float32, topK int, filter vector.Filter) ([]vector.SearchResult, error)
	MultiSearch(ctx context.Context, query []float32, collections []string, topK int) (map[string][]vector.SearchResult, error)
}

// Input is a query against one collection. Vector wins over Text when both
// are set.
type Input struct {
	Vector []float32     `json:"vector,omitempty"`
	Text   string        `json:"text,omitempty"`
	TopK   int           `json:"top_k,omitempty"`
	Filter vector.Filter `json:"filter,omitempty"`
}

// MultiInput is a query fanned out over several collections. No collections
// means all of them.
type MultiInput struct {
	Vector      []float32 `json:"vector,omitempty"`
	Text        string    `json:"text,omitempty"`
	TopK        int       `json:"top_k,omitempty"`
	Collections []string  `json:"collections,omitempty"`
}

// Output is the result of a single-collection query.
type Output struct {
	Collection string                `json:"collection"`
	Text       string                `json:"text,omitempty"`
	Results    []vector.SearchResult `json:"results"`
	Count      int                   `json:"count"`
}

// MultiOutput is the result of a multi-collection query.
type MultiOutput struct {
	Text    string                           `json:"text,omitempty"`
	Results map[string][]vector.SearchResult `json:"results"`
	Count   int                              `json:"count"`
}

type Searcher struct {
	querier  Querier
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// NewSearcher builds a Searcher. embedder may be nil, in which case text
// queries fail with embeddings.ErrNoEmbedder.
func NewSearcher(querier Querier, embedder embeddings.Embedder, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Searcher{
		querier:  querier,
		embedder: embedder,
		logger:   logger,
	}
}

// Resolve returns the query vector, embedding text when no vector is given.
func (s *Searcher) Resolve(ctx context.Context, vec []float32, text string) ([]float32, error) {
	switch {
	case len(vec) > 0:
		return vec, nil
	case text == "":
		return nil, ErrEmptyQuery
	case s.embedder == nil:
		return nil, embeddings.ErrNoEmbedder
	}

	s.logger.Debug("embedding query text", "text", utils.Truncate(text, 64))

	embedded, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return embedded, nil
}

// Search queries one collection.
func (s *Searcher) Search(ctx context.Context, collection string, in Input) (*Output, error) {
	q, err := s.Resolve(ctx, in.Vector, in.Text)
	if err != nil {
		return nil, err
	}

	results, err := s.querier.Query(ctx, collection, q, in.TopK, in.Filter)
	if err != nil {
		return nil, err
	}

	return &Output{
		Collection: collection,
		Text:       in.Text,
		Results:    results,
		Count:      len(results),
	}, nil
}

// SearchAll queries several collections at once.
func (s *Searcher) SearchAll(ctx context.Context, in MultiInput) (*MultiOutput, error) {
	q, err := s.Resolve(ctx, in.Vector, in.Text)
	if err != nil {
		return nil, err
	}

	results, err := s.querier.MultiSearch(ctx, q, in.Collections, in.TopK)
	if err != nil {
		return nil, err
	}

	count := 0
	for _, r := range results {
		count += len(r)
	}

	return &MultiOutput{
		Text:    in.Text,
		Results: results,
		Count:   count,
	}, nil
}
