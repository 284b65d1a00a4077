package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/papercomputeco/vecstore/pkg/vector"
)

// DefaultKeyPrefix namespaces every distributed cache key.
const DefaultKeyPrefix = "vecstore"

const scanBatch = 256

type expirer interface {
	Expired(now time.Time) bool
}

// Remote is the distributed tier backed by Redis.
//
// Keys are "{prefix}:{collection}:v:{id}" for vectors and
// "{prefix}:{collection}:q:{fingerprint}" for search results.
type Remote struct {
	client redis.UniversalClient
	prefix string
	codec  *codec
	now    func() time.Time
}

// NewRemote wraps a Redis client.
func NewRemote(client redis.UniversalClient, prefix string, compressThreshold int) (*Remote, error) {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	c, err := newCodec(compressThreshold)
	if err != nil {
		return nil, err
	}

	return &Remote{
		client: client,
		prefix: prefix,
		codec:  c,
		now:    time.Now,
	}, nil
}

// VectorKey returns the key of a cached vector.
func (r *Remote) VectorKey(collection, id string) string {
	return r.prefix + ":" + collection + ":v:" + id
}

// QueryKey returns the key of a cached search.
func (r *Remote) QueryKey(collection, fingerprint string) string {
	return r.prefix + ":" + collection + ":q:" + fingerprint
}

// Ping checks connectivity.
func (r *Remote) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// GetVector returns the cached vector, or nil on a miss.
func (r *Remote) GetVector(ctx context.Context, collection, id string) (*vector.Vector, error) {
	var e Entry[vector.Vector]
	ok, err := r.get(ctx, r.VectorKey(collection, id), &e)
	if err != nil || !ok {
		return nil, err
	}
	return &e.Payload, nil
}

// SetVectors writes vectors in one pipeline.
func (r *Remote) SetVectors(ctx context.Context, vectors []vector.Vector, ttl time.Duration) error {
	if len(vectors) == 0 {
		return nil
	}

	now := r.now()
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, v := range vectors {
			b, err := r.codec.encode(Entry[vector.Vector]{Payload: v, InsertedAt: now, TTL: ttl})
			if err != nil {
				return err
			}
			p.Set(ctx, r.VectorKey(v.Collection, v.ID), b, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: writing vectors: %v", ErrUnavailable, err)
	}
	return nil
}

// GetQuery returns cached search results. The boolean is false on a miss.
func (r *Remote) GetQuery(ctx context.Context, collection, fingerprint string) ([]vector.SearchResult, bool, error) {
	var e Entry[[]vector.SearchResult]
	ok, err := r.get(ctx, r.QueryKey(collection, fingerprint), &e)
	if err != nil || !ok {
		return nil, false, err
	}
	if e.Payload == nil {
		e.Payload = []vector.SearchResult{}
	}
	return e.Payload, true, nil
}

// SetQuery caches search results.
func (r *Remote) SetQuery(ctx context.Context, collection, fingerprint string, results []vector.SearchResult, ttl time.Duration) error {
	b, err := r.codec.encode(Entry[[]vector.SearchResult]{Payload: results, InsertedAt: r.now(), TTL: ttl})
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.QueryKey(collection, fingerprint), b, ttl).Err(); err != nil {
		return fmt.Errorf("%w: writing query: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteVectors removes vector keys.
func (r *Remote) DeleteVectors(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.VectorKey(collection, id)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: deleting vectors: %v", ErrUnavailable, err)
	}
	return nil
}

// InvalidateQueries removes every cached search of collection.
func (r *Remote) InvalidateQueries(ctx context.Context, collection string) (int, error) {
	return r.deleteMatching(ctx, r.prefix+":"+escapeGlob(collection)+":q:*")
}

// InvalidateCollection removes every key under the collection namespace.
func (r *Remote) InvalidateCollection(ctx context.Context, collection string) (int, error) {
	return r.deleteMatching(ctx, r.prefix+":"+escapeGlob(collection)+":*")
}

// CollectionLen counts the keys under the collection namespace.
func (r *Remote) CollectionLen(ctx context.Context, collection string) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, r.prefix+":"+escapeGlob(collection)+":*", scanBatch).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("%w: scanning keys: %v", ErrUnavailable, err)
	}
	return n, nil
}

// Close releases the codec. The Redis client is owned by the caller.
func (r *Remote) Close() {
	r.codec.close()
}

func (r *Remote) get(ctx context.Context, key string, dst expirer) (bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: reading %s: %v", ErrUnavailable, key, err)
	}

	if err := r.codec.decode(b, dst); err != nil {
		return false, err
	}

	// Redis expiry and the entry TTL normally agree; the entry check also
	// covers keys written without an expiry.
	if dst.Expired(r.now()) {
		return false, nil
	}
	return true, nil
}

func (r *Remote) deleteMatching(ctx context.Context, pattern string) (int, error) {
	removed := 0
	batch := make([]string, 0, scanBatch)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := r.client.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return removed, fmt.Errorf("%w: deleting keys: %v", ErrUnavailable, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: scanning keys: %v", ErrUnavailable, err)
	}
	if err := flush(); err != nil {
		return removed, fmt.Errorf("%w: deleting keys: %v", ErrUnavailable, err)
	}

	return removed, nil
}

// escapeGlob quotes the characters Redis MATCH treats as patterns.
func escapeGlob(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`).Replace(s)
}
