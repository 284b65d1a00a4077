package cache

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/papercomputeco/vecstore/pkg/vector"
)

// DefaultLocalSize bounds the local tier when no size is configured.
const DefaultLocalSize = 10000

// Local is the in-process tier: a bounded LRU of vectors keyed by
// (collection, id) whose entries expire after the vector TTL.
type Local struct {
	lru *expirable.LRU[string, Entry[vector.Vector]]
	ttl time.Duration
	now func() time.Time
}

// NewLocal creates a local tier holding at most size vectors.
func NewLocal(size int, ttl time.Duration) *Local {
	if size <= 0 {
		size = DefaultLocalSize
	}
	return &Local{
		lru: expirable.NewLRU[string, Entry[vector.Vector]](size, nil, ttl),
		ttl: ttl,
		now: time.Now,
	}
}

func localKey(collection, id string) string {
	return collection + "\x00" + id
}

// Get returns a copy-safe vector when a live entry exists.
func (l *Local) Get(collection, id string) (*vector.Vector, bool) {
	key := localKey(collection, id)
	e, ok := l.lru.Get(key)
	if !ok {
		return nil, false
	}
	if e.Expired(l.now()) {
		l.lru.Remove(key)
		return nil, false
	}
	v := e.Payload
	return &v, true
}

// Set stores v under its collection and id.
func (l *Local) Set(v vector.Vector) {
	l.lru.Add(localKey(v.Collection, v.ID), Entry[vector.Vector]{
		Payload:    v,
		InsertedAt: l.now(),
		TTL:        l.ttl,
	})
}

// Delete removes the given ids.
func (l *Local) Delete(collection string, ids ...string) {
	for _, id := range ids {
		l.lru.Remove(localKey(collection, id))
	}
}

// InvalidateCollection removes every entry of collection and returns how
// many were removed.
func (l *Local) InvalidateCollection(collection string) int {
	prefix := collection + "\x00"
	removed := 0
	for _, key := range l.lru.Keys() {
		if strings.HasPrefix(key, prefix) && l.lru.Remove(key) {
			removed++
		}
	}
	return removed
}

// CollectionLen counts the entries held for collection.
func (l *Local) CollectionLen(collection string) int {
	prefix := collection + "\x00"
	n := 0
	for _, key := range l.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			n++
		}
	}
	return n
}

// Len returns the number of cached vectors.
func (l *Local) Len() int {
	return l.lru.Len()
}

// Purge empties the tier.
func (l *Local) Purge() {
	l.lru.Purge()
}
