package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/vecstore/pkg/cache"
	"github.com/papercomputeco/vecstore/pkg/vector"
)

// Query returns the topK most similar vectors of a collection. A topK of
// zero or less selects DefaultTopK.
//
// Only caller errors are returned: an unknown collection, a query of the
// wrong dimension or an invalid filter. Backend failures yield an empty
// result set that is not cached.
func (s *Store) Query(ctx context.Context, collection string, query []float32, topK int, filter vector.Filter) ([]vector.SearchResult, error) {
	start := time.Now()

	if topK <= 0 {
		topK = DefaultTopK
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if err := vector.CheckDimension(c, query); err != nil {
		return nil, err
	}

	s.stats.queries.Add(1)
	defer func() { s.stats.queryNanos.Add(uint64(time.Since(start))) }()

	fingerprint := cache.QueryFingerprint(collection, query, topK, filter)

	cached, ok, err := s.cache.GetQuery(ctx, collection, fingerprint)
	s.discard("read cached query", err)
	if ok {
		s.stats.cacheHits.Add(1)
		s.logger.Debug("query served from cache", "collection", collection, "results", len(cached))
		return cached, nil
	}
	s.stats.cacheMisses.Add(1)

	gen := s.generation(collection)
	bctx, cancel := s.backendContext(ctx)
	results, err := s.backend.SimilaritySearch(bctx, collection, query, topK, c.Metric, filter)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.stats.backendErrors.Add(1)
		s.logger.Warn("similarity search failed, returning no results",
			"collection", collection,
			"backend", s.backend.Name(),
			"error", err,
		)
		return []vector.SearchResult{}, nil
	}
	if results == nil {
		results = []vector.SearchResult{}
	}

	s.fillCache(ctx, "cache query", collection, gen, func(ctx context.Context) error {
		return s.cache.SetQuery(ctx, collection, fingerprint, results)
	})

	return results, nil
}

// MultiSearch runs the same query against several collections in parallel.
// An empty collections list searches every registered collection. Unknown
// collections and collections of another dimension get an empty entry.
func (s *Store) MultiSearch(ctx context.Context, query []float32, collections []string, topK int) (map[string][]vector.SearchResult, error) {
	if topK <= 0 {
		topK = DefaultMultiSearchTopK
	}
	if len(collections) == 0 {
		for _, c := range s.registry.List() {
			collections = append(collections, c.Name)
		}
	}

	var mu sync.Mutex
	out := make(map[string][]vector.SearchResult, len(collections))

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range collections {
		g.Go(func() error {
			results, err := s.Query(gctx, name, query, topK, nil)
			if errors.Is(err, vector.ErrCollectionNotFound) || errors.Is(err, vector.ErrDimensionMismatch) {
				s.logger.Debug("skipping collection in multi-search", "collection", name, "error", err)
				results, err = []vector.SearchResult{}, nil
			}
			if err != nil {
				return err
			}

			mu.Lock()
			out[name] = results
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
