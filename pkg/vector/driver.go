// Package vector provides the types and backend interfaces for vector
// storage and similarity search.
package vector

import (
	"context"
	"time"
)

// Metric selects how similarity between two embeddings is scored.
type Metric string

const (
	// MetricCosine scores by cosine similarity in [-1, 1].
	MetricCosine Metric = "cosine"

	// MetricEuclidean scores by 1/(1+d) where d is the L2 distance.
	MetricEuclidean Metric = "euclidean"

	// MetricDotProduct scores by the raw inner product.
	MetricDotProduct Metric = "dotproduct"
)

// Valid reports whether m is a supported metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricCosine, MetricEuclidean, MetricDotProduct:
		return true
	}
	return false
}

// ParseMetric converts a user supplied metric name. An empty string selects
// MetricCosine. "dot" and "l2" are accepted as aliases.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "", string(MetricCosine):
		return MetricCosine, nil
	case string(MetricEuclidean), "l2":
		return MetricEuclidean, nil
	case string(MetricDotProduct), "dot", "inner_product":
		return MetricDotProduct, nil
	}
	return "", &InvalidCollectionError{Reason: "unknown metric " + s}
}

// Collection is a named partition of vectors sharing a dimension and metric.
type Collection struct {
	Name        string    `json:"name"`
	Dimension   uint      `json:"dimension"`
	Metric      Metric    `json:"metric"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Vector is a stored embedding with its metadata.
type Vector struct {
	// ID is unique within its collection.
	ID string `json:"id"`

	Collection string         `json:"collection"`
	Embedding  []float32      `json:"embedding"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// SearchResult is a single ranked hit. Score is larger for more similar
// vectors regardless of metric.
type SearchResult struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Vector   []float32      `json:"vector,omitempty"`
}

// Filter is a conjunction of metadata equality predicates. A nil or empty
// filter matches every row.
type Filter map[string]any

// BackendStats summarizes one collection as seen by a backend.
type BackendStats struct {
	Count        int64
	AvgDimension float64
}

// Backend is the storage capability shared by native and fallback backends.
// Every implementation must rank identical inputs identically.
type Backend interface {
	// Name identifies the backend in logs and stats.
	Name() string

	// Store upserts vectors by ID. Last write wins.
	Store(ctx context.Context, collection string, vectors []Vector) error

	// SimilaritySearch returns at most topK results ordered by descending
	// score, restricted to rows matching filter.
	SimilaritySearch(ctx context.Context, collection string, query []float32, topK int, metric Metric, filter Filter) ([]SearchResult, error)

	// Delete removes vectors by ID. Missing IDs are ignored.
	Delete(ctx context.Context, collection string, ids []string) error

	// BatchGet returns the vectors that exist among ids.
	BatchGet(ctx context.Context, collection string, ids []string) ([]Vector, error)

	// DeleteCollection removes every vector in collection.
	DeleteCollection(ctx context.Context, collection string) error

	// Stats reports the size of collection.
	Stats(ctx context.Context, collection string) (BackendStats, error)

	// Scan returns up to limit vectors of collection, newest first.
	Scan(ctx context.Context, collection string, limit int) ([]Vector, error)

	// Close releases any resources held by the backend.
	Close() error
}

// NativeBackend is a Backend that drives an approximate nearest neighbor
// index provided by an external engine.
type NativeBackend interface {
	Backend

	// Probe checks that the engine and its vector capability are present.
	// Returns ErrBackendUnavailable when the capability is missing.
	Probe(ctx context.Context) error

	// EnsureIndex creates the collection's index if it does not exist.
	EnsureIndex(ctx context.Context, c Collection) error

	// RebuildIndex rebuilds the collection's index. Never called implicitly.
	RebuildIndex(ctx context.Context, c Collection) error
}

// IndexParams are the HNSW construction tunables passed to native backends.
type IndexParams struct {
	// M is the graph degree.
	M int

	// EfConstruction is the candidate list size during construction.
	EfConstruction int

	// EfSearch is the candidate list size during queries. Zero keeps the
	// engine default.
	EfSearch int
}

const (
	DefaultM              = 16
	DefaultEfConstruction = 64
)

// WithDefaults fills zero tunables.
func (p IndexParams) WithDefaults() IndexParams {
	if p.M <= 0 {
		p.M = DefaultM
	}
	if p.EfConstruction <= 0 {
		p.EfConstruction = DefaultEfConstruction
	}
	return p
}
