// Package cache implements the two-tier vector cache: a bounded in-process
// LRU in front of an optional Redis tier.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/papercomputeco/vecstore/pkg/vector"
)

// DefaultVectorTTL is how long cached vectors live when no TTL is configured.
const DefaultVectorTTL = time.Hour

// Source reports which tier answered a lookup.
type Source string

const (
	SourceNone   Source = ""
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Config configures a Tier. Either layer may be disabled: the local tier
// with LocalEnabled, the distributed tier by leaving Redis nil.
type Config struct {
	LocalEnabled bool
	LocalSize    int

	// VectorTTL bounds cached vectors. Cached searches live a quarter of it.
	VectorTTL time.Duration

	Redis             redis.UniversalClient
	KeyPrefix         string
	CompressThreshold int

	// Clock overrides time.Now for entry expiry.
	Clock func() time.Time
}

// Stats describes the cache layers.
type Stats struct {
	LocalEnabled  bool          `json:"local_enabled"`
	RemoteEnabled bool          `json:"remote_enabled"`
	LocalEntries  int           `json:"local_entries"`
	VectorTTL     time.Duration `json:"vector_ttl"`
}

// Tier combines the local and distributed layers. Every method returns its
// errors; callers decide whether a cache failure matters.
type Tier struct {
	local     *Local
	remote    *Remote
	vectorTTL time.Duration
}

// New builds a Tier from c.
func New(c Config) (*Tier, error) {
	ttl := c.VectorTTL
	if ttl <= 0 {
		ttl = DefaultVectorTTL
	}

	t := &Tier{vectorTTL: ttl}

	if c.LocalEnabled {
		t.local = NewLocal(c.LocalSize, ttl)
		if c.Clock != nil {
			t.local.now = c.Clock
		}
	}

	if c.Redis != nil {
		remote, err := NewRemote(c.Redis, c.KeyPrefix, c.CompressThreshold)
		if err != nil {
			return nil, err
		}
		if c.Clock != nil {
			remote.now = c.Clock
		}
		t.remote = remote
	}

	return t, nil
}

// VectorTTL is the lifetime of cached vectors.
func (t *Tier) VectorTTL() time.Duration {
	return t.vectorTTL
}

// QueryTTL is the lifetime of cached searches.
func (t *Tier) QueryTTL() time.Duration {
	return t.vectorTTL / 4
}

// GetVector looks in the local tier, then the distributed one. A remote hit
// is copied into the local tier.
func (t *Tier) GetVector(ctx context.Context, collection, id string) (*vector.Vector, Source, error) {
	if t.local != nil {
		if v, ok := t.local.Get(collection, id); ok {
			return v, SourceLocal, nil
		}
	}

	if t.remote == nil {
		return nil, SourceNone, nil
	}

	v, err := t.remote.GetVector(ctx, collection, id)
	if err != nil || v == nil {
		return nil, SourceNone, err
	}

	if t.local != nil {
		t.local.Set(*v)
	}
	return v, SourceRemote, nil
}

// SetVectors writes through both tiers.
func (t *Tier) SetVectors(ctx context.Context, vectors []vector.Vector) error {
	if t.local != nil {
		for _, v := range vectors {
			t.local.Set(v)
		}
	}
	if t.remote != nil {
		return t.remote.SetVectors(ctx, vectors, t.vectorTTL)
	}
	return nil
}

// GetQuery returns cached search results from the distributed tier.
func (t *Tier) GetQuery(ctx context.Context, collection, fingerprint string) ([]vector.SearchResult, bool, error) {
	if t.remote == nil {
		return nil, false, nil
	}
	return t.remote.GetQuery(ctx, collection, fingerprint)
}

// SetQuery caches search results for QueryTTL.
func (t *Tier) SetQuery(ctx context.Context, collection, fingerprint string, results []vector.SearchResult) error {
	if t.remote == nil {
		return nil
	}
	return t.remote.SetQuery(ctx, collection, fingerprint, results, t.QueryTTL())
}

// DeleteVectors removes vector entries from both tiers. Cached searches are
// left alone.
func (t *Tier) DeleteVectors(ctx context.Context, collection string, ids []string) error {
	if t.local != nil {
		t.local.Delete(collection, ids...)
	}
	if t.remote != nil {
		return t.remote.DeleteVectors(ctx, collection, ids)
	}
	return nil
}

// InvalidateQueries drops every cached search of collection.
func (t *Tier) InvalidateQueries(ctx context.Context, collection string) error {
	if t.remote == nil {
		return nil
	}
	_, err := t.remote.InvalidateQueries(ctx, collection)
	return err
}

// InvalidateCollection drops every entry of collection from both tiers.
func (t *Tier) InvalidateCollection(ctx context.Context, collection string) error {
	t.InvalidateLocal(collection, nil)
	if t.remote == nil {
		return nil
	}
	_, err := t.remote.InvalidateCollection(ctx, collection)
	return err
}

// InvalidateLocal drops ids from the local tier only, or the whole
// collection when ids is empty. Used to apply invalidations published by
// other instances.
func (t *Tier) InvalidateLocal(collection string, ids []string) {
	if t.local == nil {
		return
	}
	if len(ids) == 0 {
		t.local.InvalidateCollection(collection)
		return
	}
	t.local.Delete(collection, ids...)
}

// CollectionSize counts the cached entries of collection across both tiers.
func (t *Tier) CollectionSize(ctx context.Context, collection string) (int, error) {
	n := 0
	if t.local != nil {
		n += t.local.CollectionLen(collection)
	}
	if t.remote != nil {
		remote, err := t.remote.CollectionLen(ctx, collection)
		if err != nil {
			return n, err
		}
		n += remote
	}
	return n, nil
}

// Ping checks the distributed tier.
func (t *Tier) Ping(ctx context.Context) error {
	if t.remote == nil {
		return nil
	}
	return t.remote.Ping(ctx)
}

// Stats reports the layer configuration and local occupancy.
func (t *Tier) Stats() Stats {
	s := Stats{
		LocalEnabled:  t.local != nil,
		RemoteEnabled: t.remote != nil,
		VectorTTL:     t.vectorTTL,
	}
	if t.local != nil {
		s.LocalEntries = t.local.Len()
	}
	return s
}

// Close releases codec resources.
func (t *Tier) Close() {
	if t.remote != nil {
		t.remote.Close()
	}
}

// IsUnavailable reports whether err came from an unreachable distributed tier.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
