// Package registry holds the in-memory collection definitions of a store.
package registry

import (
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/papercomputeco/vecstore/pkg/vector"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Registry maps collection names to their definitions. It is safe for
// concurrent use.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]vector.Collection
	now         func() time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		collections: make(map[string]vector.Collection),
		now:         time.Now,
	}
}

// Validate checks a collection definition without registering it.
func Validate(name string, dimension uint, metric vector.Metric) error {
	if !namePattern.MatchString(name) {
		return &vector.InvalidCollectionError{Name: name, Reason: "name must match " + namePattern.String()}
	}
	if dimension == 0 {
		return &vector.InvalidCollectionError{Name: name, Reason: "dimension must be positive"}
	}
	if !metric.Valid() {
		return &vector.InvalidCollectionError{Name: name, Reason: "unknown metric " + string(metric)}
	}
	return nil
}

// Create registers a collection, replacing any existing definition of the
// same name. A replaced definition keeps its creation time. Stored vectors
// are not re-validated against a new dimension.
func (r *Registry) Create(name string, dimension uint, metric vector.Metric, description string) (*vector.Collection, error) {
	if err := Validate(name, dimension, metric); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := vector.Collection{
		Name:        name,
		Dimension:   dimension,
		Metric:      metric,
		Description: description,
		CreatedAt:   r.now(),
	}
	if prev, ok := r.collections[name]; ok {
		c.CreatedAt = prev.CreatedAt
	}
	r.collections[name] = c

	return &c, nil
}

// Get returns a copy of the named collection.
func (r *Registry) Get(name string) (*vector.Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.collections[name]
	if !ok {
		return nil, false
	}
	return &c, true
}

// List returns every collection sorted by name.
func (r *Registry) List() []vector.Collection {
	r.mu.RLock()
	out := make([]vector.Collection, 0, len(r.collections))
	for _, c := range r.collections {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Delete removes the named collection and reports whether it existed.
func (r *Registry) Delete(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.collections[name]; !ok {
		return false
	}
	delete(r.collections, name)
	return true
}

// Len returns the number of registered collections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.collections)
}
