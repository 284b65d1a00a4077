package store

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/vecstore/pkg/cache"
	"github.com/papercomputeco/vecstore/pkg/worker"
)

type counters struct {
	queries       atomic.Uint64
	queryNanos    atomic.Uint64
	cacheHits     atomic.Uint64
	cacheMisses   atomic.Uint64
	backendErrors atomic.Uint64
	upserts       atomic.Uint64
	deletes       atomic.Uint64
}

// PerformanceStats is a snapshot of store activity since construction.
type PerformanceStats struct {
	Mode        Mode             `json:"mode"`
	Backend     string           `json:"backend"`
	Collections int              `json:"collections"`
	Cache       CacheStats       `json:"cache"`
	Performance PerformanceTotal `json:"performance"`
	Memory      MemoryStats      `json:"memory"`
	Worker      *worker.Stats    `json:"worker,omitempty"`
}

// CacheStats combines the tier layout with hit counters.
type CacheStats struct {
	cache.Stats
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// PerformanceTotal counts operations.
type PerformanceTotal struct {
	Queries         uint64  `json:"queries"`
	AvgQueryMillis  float64 `json:"avg_query_ms"`
	BackendErrors   uint64  `json:"backend_errors"`
	VectorsUpserted uint64  `json:"vectors_upserted"`
	VectorsDeleted  uint64  `json:"vectors_deleted"`
}

// MemoryStats is a subset of runtime.MemStats.
type MemoryStats struct {
	AllocBytes     uint64 `json:"alloc_bytes"`
	HeapInuseBytes uint64 `json:"heap_inuse_bytes"`
	SysBytes       uint64 `json:"sys_bytes"`
	NumGC          uint32 `json:"num_gc"`
	Goroutines     int    `json:"goroutines"`
}

// PerformanceStats reports counters, cache effectiveness and memory use.
func (s *Store) PerformanceStats(_ context.Context) *PerformanceStats {
	hits := s.stats.cacheHits.Load()
	misses := s.stats.cacheMisses.Load()
	queries := s.stats.queries.Load()

	out := &PerformanceStats{
		Mode:        s.mode,
		Backend:     s.backend.Name(),
		Collections: s.registry.Len(),
		Cache: CacheStats{
			Stats:  s.cache.Stats(),
			Hits:   hits,
			Misses: misses,
		},
		Performance: PerformanceTotal{
			Queries:         queries,
			BackendErrors:   s.stats.backendErrors.Load(),
			VectorsUpserted: s.stats.upserts.Load(),
			VectorsDeleted:  s.stats.deletes.Load(),
		},
	}

	if total := hits + misses; total > 0 {
		out.Cache.HitRate = float64(hits) / float64(total)
	}
	if queries > 0 {
		avg := time.Duration(s.stats.queryNanos.Load() / queries)
		out.Performance.AvgQueryMillis = float64(avg) / float64(time.Millisecond)
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	out.Memory = MemoryStats{
		AllocBytes:     m.Alloc,
		HeapInuseBytes: m.HeapInuse,
		SysBytes:       m.Sys,
		NumGC:          m.NumGC,
		Goroutines:     runtime.NumGoroutine(),
	}

	if s.worker != nil {
		ws := s.worker.Stats()
		out.Worker = &ws
	}

	return out
}
