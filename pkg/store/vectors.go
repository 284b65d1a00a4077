package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/papercomputeco/vecstore/pkg/eventstream"
	"github.com/papercomputeco/vecstore/pkg/vector"
)

// UpsertInput is one vector to write. An empty ID is replaced by a UUID.
type UpsertInput struct {
	ID       string         `json:"id,omitempty"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Upsert writes vectors to a collection and returns their ids in input
// order. Every vector is validated before anything is written, so a
// dimension mismatch leaves the collection untouched.
func (s *Store) Upsert(ctx context.Context, collection string, inputs []UpsertInput) ([]string, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if err := vector.CheckDimension(c, in.Values); err != nil {
			return nil, err
		}
	}
	if len(inputs) == 0 {
		return []string{}, nil
	}

	now := s.now().UTC()
	ids := make([]string, len(inputs))
	vectors := make([]vector.Vector, len(inputs))
	for i, in := range inputs {
		id := in.ID
		if id == "" {
			id = uuid.NewString()
		}
		ids[i] = id
		vectors[i] = vector.Vector{
			ID:         id,
			Collection: collection,
			Embedding:  in.Values,
			Metadata:   in.Metadata,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	bctx, cancel := s.backendContext(ctx)
	err = s.backend.Store(bctx, collection, vectors)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("storing vectors in %s: %w", collection, err)
	}
	s.stats.upserts.Add(uint64(len(vectors)))

	s.bumpGeneration(collection)
	s.discard("delete cached vectors", s.cache.DeleteVectors(ctx, collection, ids))
	s.discard("invalidate cached queries", s.cache.InvalidateQueries(ctx, collection))
	s.cacheStored(ctx, collection, ids)
	s.publish(ctx, eventstream.EventTypeVectorsUpserted, collection, ids)

	s.logger.Debug("vectors upserted", "collection", collection, "count", len(vectors))
	return ids, nil
}

// Delete removes vectors by id. Their cache entries and the collection's
// cached searches are dropped.
func (s *Store) Delete(ctx context.Context, collection string, ids []string) error {
	if _, err := s.collection(collection); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	bctx, cancel := s.backendContext(ctx)
	err := s.backend.Delete(bctx, collection, ids)
	cancel()
	if err != nil {
		return fmt.Errorf("deleting vectors from %s: %w", collection, err)
	}
	s.stats.deletes.Add(uint64(len(ids)))

	s.bumpGeneration(collection)
	s.discard("delete cached vectors", s.cache.DeleteVectors(ctx, collection, ids))
	s.discard("invalidate cached queries", s.cache.InvalidateQueries(ctx, collection))
	s.publish(ctx, eventstream.EventTypeVectorsDeleted, collection, ids)

	s.logger.Debug("vectors deleted", "collection", collection, "count", len(ids))
	return nil
}

// Get returns one vector, reading the local tier, then the distributed
// tier, then the backend. It returns nil, nil when the id is absent.
func (s *Store) Get(ctx context.Context, collection, id string) (*vector.Vector, error) {
	if _, err := s.collection(collection); err != nil {
		return nil, err
	}

	v, src, err := s.cache.GetVector(ctx, collection, id)
	s.discard("read cached vector", err)
	if v != nil {
		s.stats.cacheHits.Add(1)
		s.logger.Debug("vector served from cache", "collection", collection, "id", id, "tier", src)
		return v, nil
	}
	s.stats.cacheMisses.Add(1)

	gen := s.generation(collection)
	bctx, cancel := s.backendContext(ctx)
	found, err := s.backend.BatchGet(bctx, collection, []string{id})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("reading vector %s from %s: %w", id, collection, err)
	}
	if len(found) == 0 {
		return nil, nil
	}

	got := found[0]
	got.Collection = collection
	s.fillCache(ctx, "cache vector", collection, gen, func(ctx context.Context) error {
		return s.cache.SetVectors(ctx, []vector.Vector{got})
	})
	return &got, nil
}

// cacheStored writes freshly upserted vectors through both tiers as the
// backend stored them. Backends keep the original created_at of a
// replaced vector, so the cached copy is read back rather than built from
// the input. The old entries are already gone if the read fails.
func (s *Store) cacheStored(ctx context.Context, collection string, ids []string) {
	gen := s.generation(collection)
	bctx, cancel := s.backendContext(ctx)
	stored, err := s.backend.BatchGet(bctx, collection, ids)
	cancel()
	if err != nil {
		s.discard("read back upserted vectors", err)
		return
	}

	for i := range stored {
		stored[i].Collection = collection
	}
	s.fillCache(ctx, "cache vectors", collection, gen, func(ctx context.Context) error {
		return s.cache.SetVectors(ctx, stored)
	})
}
