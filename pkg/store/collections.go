package store

import (
	"context"
	"fmt"

	"github.com/papercomputeco/vecstore/pkg/eventstream"
	"github.com/papercomputeco/vecstore/pkg/registry"
	"github.com/papercomputeco/vecstore/pkg/vector"
)

// CollectionStats describes one collection.
type CollectionStats struct {
	Name         string        `json:"name"`
	Dimension    uint          `json:"dimension"`
	Metric       vector.Metric `json:"metric"`
	Count        int64         `json:"count"`
	AvgDimension float64       `json:"avg_dimension"`
	CacheSize    int           `json:"cache_size"`
}

// CreateCollection registers a collection and, in native mode, ensures its
// index. A zero dimension selects DefaultDimension and an empty metric
// selects cosine. Recreating an existing collection replaces its definition;
// stored vectors of another dimension stay in place and are excluded from
// searches.
func (s *Store) CreateCollection(ctx context.Context, name string, dimension uint, metric vector.Metric, description string) (*vector.Collection, error) {
	if dimension == 0 {
		dimension = DefaultDimension
	}
	if metric == "" {
		metric = vector.MetricCosine
	}
	if err := registry.Validate(name, dimension, metric); err != nil {
		return nil, err
	}

	prev, existed := s.registry.Get(name)

	if s.native != nil {
		bctx, cancel := s.backendContext(ctx)
		err := s.native.EnsureIndex(bctx, vector.Collection{
			Name:        name,
			Dimension:   dimension,
			Metric:      metric,
			Description: description,
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("creating index for %s: %w", name, err)
		}
	}

	c, err := s.registry.Create(name, dimension, metric, description)
	if err != nil {
		return nil, err
	}

	if existed && (prev.Dimension != dimension || prev.Metric != metric) {
		s.bumpGeneration(name)
		s.discard("invalidate redefined collection", s.cache.InvalidateCollection(ctx, name))
		s.logger.Warn("collection redefined",
			"collection", name,
			"old_dimension", prev.Dimension,
			"new_dimension", dimension,
			"old_metric", prev.Metric,
			"new_metric", metric,
		)
	}

	s.logger.Debug("collection created",
		"collection", name,
		"dimension", dimension,
		"metric", metric,
	)
	return c, nil
}

// Collections lists registered collections sorted by name.
func (s *Store) Collections() []vector.Collection {
	return s.registry.List()
}

// Collection returns the named collection definition.
func (s *Store) Collection(name string) (*vector.Collection, error) {
	return s.collection(name)
}

// DeleteCollection removes every vector of the collection, drops its cache
// namespace and unregisters it.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	if _, err := s.collection(name); err != nil {
		return err
	}

	bctx, cancel := s.backendContext(ctx)
	err := s.backend.DeleteCollection(bctx, name)
	cancel()
	if err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}

	s.bumpGeneration(name)
	s.discard("invalidate collection cache", s.cache.InvalidateCollection(ctx, name))
	s.registry.Delete(name)
	s.publish(ctx, eventstream.EventTypeCollectionDeleted, name, nil)

	s.logger.Info("collection deleted", "collection", name)
	return nil
}

// RebuildIndex rebuilds the native index of a collection. It does nothing
// in fallback mode.
func (s *Store) RebuildIndex(ctx context.Context, name string) error {
	c, err := s.collection(name)
	if err != nil {
		return err
	}

	if s.native == nil {
		s.logger.Info("no native index to rebuild in fallback mode", "collection", name)
		return nil
	}

	if err := s.native.RebuildIndex(ctx, *c); err != nil {
		return fmt.Errorf("rebuilding index for %s: %w", name, err)
	}

	s.logger.Info("index rebuilt", "collection", name, "backend", s.native.Name())
	return nil
}

// CollectionStats reports stored and cached sizes of a collection.
func (s *Store) CollectionStats(ctx context.Context, name string) (*CollectionStats, error) {
	c, err := s.collection(name)
	if err != nil {
		return nil, err
	}

	bctx, cancel := s.backendContext(ctx)
	bs, err := s.backend.Stats(bctx, name)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("reading stats for %s: %w", name, err)
	}

	cached, err := s.cache.CollectionSize(ctx, name)
	s.discard("count cached entries", err)

	return &CollectionStats{
		Name:         c.Name,
		Dimension:    c.Dimension,
		Metric:       c.Metric,
		Count:        bs.Count,
		AvgDimension: bs.AvgDimension,
		CacheSize:    cached,
	}, nil
}
