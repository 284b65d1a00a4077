package store_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vecstore/pkg/eventstream"
	"github.com/papercomputeco/vecstore/pkg/vector"
	"github.com/papercomputeco/vecstore/pkg/vector/linear"
	"github.com/papercomputeco/vecstore/pkg/vector/sqlitevec"
)

// countingBackend counts searches and can be told to fail them.
type countingBackend struct {
	vector.Backend
	searches atomic.Int32
	fail     atomic.Bool
}

func (b *countingBackend) SimilaritySearch(ctx context.Context, collection string, query []float32, topK int, metric vector.Metric, filter vector.Filter) ([]vector.SearchResult, error) {
	b.searches.Add(1)
	if b.fail.Load() {
		return nil, vector.ErrBackendQueryFailed
	}
	return b.Backend.SimilaritySearch(ctx, collection, query, topK, metric, filter)
}

// missingNative is a native backend whose capability probe fails.
type missingNative struct {
	vector.NativeBackend
	closed atomic.Bool
}

func (m *missingNative) Name() string { return "missing" }

func (m *missingNative) Probe(context.Context) error {
	return vector.ErrBackendUnavailable
}

func (m *missingNative) Close() error {
	m.closed.Store(true)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.InvalidationEvent
	closed atomic.Bool
}

func (p *recordingPublisher) PublishInvalidation(_ context.Context, e *eventstream.InvalidationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.closed.Store(true)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType
	}
	return out
}

type failingPublisher struct{}

func (failingPublisher) PublishInvalidation(context.Context, *eventstream.InvalidationEvent) error {
	return errors.New("broker down")
}

func (failingPublisher) Close() error { return nil }

func newLinear() *linear.Backend {
	b, err := linear.New(context.Background(), linear.Config{DSN: ":memory:"})
	Expect(err).NotTo(HaveOccurred())
	return b
}

func newSQLiteVec() *sqlitevec.Backend {
	b, err := sqlitevec.New(sqlitevec.Config{DBPath: filepath.Join(GinkgoT().TempDir(), "vec.db")})
	Expect(err).NotTo(HaveOccurred())
	return b
}

func randomVectors(rng *rand.Rand, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()*2 - 1
		}
		out[i] = v
	}
	return out
}

func resultIDs(results []vector.SearchResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}
