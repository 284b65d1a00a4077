// Package store implements the vector store facade: collection management,
// cached similarity search and write-through upserts over a native or
// linear fallback backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/vecstore/pkg/cache"
	"github.com/papercomputeco/vecstore/pkg/eventstream"
	"github.com/papercomputeco/vecstore/pkg/eventstream/nop"
	"github.com/papercomputeco/vecstore/pkg/logger"
	"github.com/papercomputeco/vecstore/pkg/registry"
	"github.com/papercomputeco/vecstore/pkg/vector"
	"github.com/papercomputeco/vecstore/pkg/worker"
)

// Mode records which backend a Store selected at construction.
type Mode string

const (
	ModeNative   Mode = "native"
	ModeFallback Mode = "fallback"
)

const (
	DefaultDimension       = 1536
	DefaultTopK            = 10
	DefaultMultiSearchTopK = 5
	DefaultQueryTimeout    = 30 * time.Second

	probeTimeout = 10 * time.Second
)

// CollectionSpec declares a collection to create at startup.
type CollectionSpec struct {
	Name        string        `toml:"name"`
	Dimension   uint          `toml:"dimension"`
	Metric      vector.Metric `toml:"metric"`
	Description string        `toml:"description"`
}

// DefaultCollections are seeded when Config.Collections is nil.
var DefaultCollections = []CollectionSpec{
	{Name: "conversations", Dimension: DefaultDimension, Metric: vector.MetricCosine, Description: "Conversation turns"},
	{Name: "skills", Dimension: DefaultDimension, Metric: vector.MetricCosine, Description: "Skill definitions"},
	{Name: "insights", Dimension: DefaultDimension, Metric: vector.MetricCosine, Description: "Derived insights"},
	{Name: "documents", Dimension: DefaultDimension, Metric: vector.MetricCosine, Description: "Documents"},
}

// Config wires a Store. The Store takes ownership of every component and
// closes them in Close, or in New when it fails.
type Config struct {
	// Native is probed once in New. When it is nil or its probe fails the
	// Store runs on Fallback.
	Native vector.NativeBackend

	// Fallback is the linear scan backend. Required unless Native probes
	// successfully.
	Fallback vector.Backend

	// Cache is optional. Nil disables both cache tiers.
	Cache *cache.Tier

	// Publisher announces invalidations to other instances. Nil disables
	// publishing.
	Publisher eventstream.Publisher

	// Worker, when set, performs cache population asynchronously.
	Worker *worker.Pool

	// Collections are created at startup. Nil seeds DefaultCollections; an
	// empty non-nil slice seeds nothing.
	Collections []CollectionSpec

	// QueryTimeout bounds each backend call. Defaults to 30s.
	QueryTimeout time.Duration

	// InstanceID identifies this Store in published events. Defaults to a
	// random UUID.
	InstanceID string

	Logger *slog.Logger
}

// Store is the vector store facade. It is safe for concurrent use.
type Store struct {
	mode     Mode
	backend  vector.Backend
	native   vector.NativeBackend
	registry *registry.Registry

	cache     *cache.Tier
	publisher eventstream.Publisher
	worker    *worker.Pool

	queryTimeout time.Duration
	instanceID   string
	logger       *slog.Logger
	now          func() time.Time

	// generations counts cache invalidations per collection. A cache fill
	// read under an older generation is dropped.
	genMu       sync.RWMutex
	generations map[string]uint64

	stats counters
}

// New probes the native backend, selects the mode and seeds collections.
func New(ctx context.Context, c Config) (*Store, error) {
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}
	if c.InstanceID == "" {
		c.InstanceID = uuid.NewString()
	}
	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}
	if c.Cache == nil {
		disabled, err := cache.New(cache.Config{})
		if err != nil {
			return nil, err
		}
		c.Cache = disabled
	}
	if c.Collections == nil {
		c.Collections = DefaultCollections
	}

	s := &Store{
		registry:     registry.New(),
		cache:        c.Cache,
		publisher:    c.Publisher,
		worker:       c.Worker,
		queryTimeout: c.QueryTimeout,
		instanceID:   c.InstanceID,
		logger:       c.Logger,
		now:          time.Now,
		generations:  make(map[string]uint64),
	}

	if err := s.selectBackend(ctx, c.Native, c.Fallback); err != nil {
		s.closeAncillary()
		return nil, err
	}

	for _, spec := range c.Collections {
		if _, err := s.CreateCollection(ctx, spec.Name, spec.Dimension, spec.Metric, spec.Description); err != nil {
			s.closeAncillary()
			s.discard("close backend", s.backend.Close())
			return nil, fmt.Errorf("seeding collection %q: %w", spec.Name, err)
		}
	}

	s.logger.Info("vector store ready",
		"mode", s.mode,
		"backend", s.backend.Name(),
		"collections", s.registry.Len(),
		"instance_id", s.instanceID,
	)

	return s, nil
}

func (s *Store) selectBackend(ctx context.Context, native vector.NativeBackend, fallback vector.Backend) error {
	if native != nil {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := native.Probe(probeCtx)
		cancel()

		if err == nil {
			s.mode = ModeNative
			s.backend = native
			s.native = native
			if fallback != nil {
				s.discard("close unused fallback", fallback.Close())
			}
			return nil
		}

		s.logger.Info("native vector backend unavailable, using linear fallback",
			"backend", native.Name(),
			"error", err,
		)
		s.discard("close native backend", native.Close())
	}

	if fallback == nil {
		return errors.New("no usable vector backend: native unavailable and no fallback configured")
	}

	s.mode = ModeFallback
	s.backend = fallback
	return nil
}

// Mode reports which backend was selected at construction.
func (s *Store) Mode() Mode {
	return s.mode
}

// BackendName names the selected backend.
func (s *Store) BackendName() string {
	return s.backend.Name()
}

// InstanceID identifies this Store in published events.
func (s *Store) InstanceID() string {
	return s.instanceID
}

// Close drains pending cache writes and releases every component.
func (s *Store) Close() error {
	s.closeAncillary()
	return s.backend.Close()
}

// closeAncillary releases everything but the backend.
func (s *Store) closeAncillary() {
	if s.worker != nil {
		s.worker.Close()
	}
	s.discard("close publisher", s.publisher.Close())
	s.cache.Close()
}

// discard logs err and drops it. Used for operations whose failure must
// never reach the caller.
func (s *Store) discard(op string, err error) {
	if err == nil {
		return
	}
	s.logger.Warn("ignoring failure", "op", op, "error", err)
}

// writeCache runs a cache write on the worker pool when one is configured,
// or inline otherwise.
func (s *Store) writeCache(ctx context.Context, op string, fn func(ctx context.Context) error) {
	if s.worker != nil {
		s.worker.Enqueue(worker.Job{Name: op, Run: fn})
		return
	}
	s.discard(op, fn(context.WithoutCancel(ctx)))
}

// generation returns the collection's current invalidation generation.
// Capture it before reading from the backend and hand it to fillCache.
func (s *Store) generation(collection string) uint64 {
	s.genMu.RLock()
	defer s.genMu.RUnlock()
	return s.generations[collection]
}

// bumpGeneration must run after the backend write and before the cache
// entries are invalidated. Fills that were read earlier are then either
// skipped or already written and about to be removed.
func (s *Store) bumpGeneration(collection string) {
	s.genMu.Lock()
	s.generations[collection]++
	s.genMu.Unlock()
}

// fillCache populates the cache with data read from the backend under
// generation gen. The write is skipped when the collection was invalidated
// in the meantime, so a delayed fill cannot resurrect deleted data.
func (s *Store) fillCache(ctx context.Context, op, collection string, gen uint64, fn func(ctx context.Context) error) {
	s.writeCache(ctx, op, func(ctx context.Context) error {
		s.genMu.RLock()
		defer s.genMu.RUnlock()
		if s.generations[collection] != gen {
			s.logger.Debug("skipping stale cache fill", "op", op, "collection", collection)
			return nil
		}
		return fn(ctx)
	})
}

func (s *Store) publish(ctx context.Context, eventType, collection string, ids []string) {
	event := eventstream.NewInvalidationEvent(eventType, s.instanceID, collection, ids)
	s.discard("publish "+eventType, s.publisher.PublishInvalidation(ctx, event))
}

func (s *Store) collection(name string) (*vector.Collection, error) {
	c, ok := s.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, name)
	}
	return c, nil
}

func (s *Store) backendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}
