package cache_test

import (
	"context"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/papercomputeco/vecstore/pkg/cache"
	"github.com/papercomputeco/vecstore/pkg/vector"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ = Describe("Tier", func() {
	var (
		ctx    context.Context
		mr     *miniredis.Miniredis
		client *redis.Client
		clock  *fakeClock
	)

	vec := func(collection, id string, e ...float32) vector.Vector {
		return vector.Vector{
			ID:         id,
			Collection: collection,
			Embedding:  e,
			Metadata:   map[string]any{"source": "test"},
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(mr.Close)

		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(client.Close)

		clock = &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	})

	newTier := func(c cache.Config) *cache.Tier {
		c.Clock = clock.Now
		t, err := cache.New(c)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(t.Close)
		return t
	}

	Describe("with both tiers", func() {
		var tier *cache.Tier

		BeforeEach(func() {
			tier = newTier(cache.Config{
				LocalEnabled: true,
				VectorTTL:    time.Hour,
				Redis:        client,
			})
		})

		It("derives the query TTL from the vector TTL", func() {
			Expect(tier.VectorTTL()).To(Equal(time.Hour))
			Expect(tier.QueryTTL()).To(Equal(15 * time.Minute))
		})

		It("serves written vectors from the local tier", func() {
			Expect(tier.SetVectors(ctx, []vector.Vector{vec("docs", "a", 1, 0)})).To(Succeed())

			v, src, err := tier.GetVector(ctx, "docs", "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(src).To(Equal(cache.SourceLocal))
			Expect(v.Embedding).To(Equal([]float32{1, 0}))
			Expect(v.Metadata).To(HaveKeyWithValue("source", "test"))
		})

		It("falls through to redis and repopulates the local tier", func() {
			Expect(tier.SetVectors(ctx, []vector.Vector{vec("docs", "a", 1, 0)})).To(Succeed())
			tier.InvalidateLocal("docs", nil)

			_, src, err := tier.GetVector(ctx, "docs", "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(src).To(Equal(cache.SourceRemote))

			_, src, err = tier.GetVector(ctx, "docs", "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(src).To(Equal(cache.SourceLocal))
		})

		It("expires vectors after the TTL", func() {
			Expect(tier.SetVectors(ctx, []vector.Vector{vec("docs", "a", 1, 0)})).To(Succeed())

			clock.Advance(time.Hour + time.Second)
			mr.FastForward(time.Hour + time.Second)

			v, src, err := tier.GetVector(ctx, "docs", "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeNil())
			Expect(src).To(Equal(cache.SourceNone))
		})

		It("stores vectors under the documented key with a TTL", func() {
			Expect(tier.SetVectors(ctx, []vector.Vector{vec("docs", "a", 1, 0)})).To(Succeed())
			Expect(mr.Exists("vecstore:docs:v:a")).To(BeTrue())
			Expect(mr.TTL("vecstore:docs:v:a")).To(Equal(time.Hour))
		})

		It("round-trips search results", func() {
			results := []vector.SearchResult{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.1}}
			Expect(tier.SetQuery(ctx, "docs", "fp", results)).To(Succeed())
			Expect(mr.TTL("vecstore:docs:q:fp")).To(Equal(15 * time.Minute))

			got, ok, err := tier.GetQuery(ctx, "docs", "fp")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(results))
		})

		It("returns an empty cached result set as a hit", func() {
			Expect(tier.SetQuery(ctx, "docs", "fp", []vector.SearchResult{})).To(Succeed())
			got, ok, err := tier.GetQuery(ctx, "docs", "fp")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(got).To(BeEmpty())
		})

		It("expires cached searches after the query TTL", func() {
			Expect(tier.SetQuery(ctx, "docs", "fp", []vector.SearchResult{{ID: "a"}})).To(Succeed())
			clock.Advance(16 * time.Minute)
			mr.FastForward(16 * time.Minute)

			_, ok, err := tier.GetQuery(ctx, "docs", "fp")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("deletes vectors without touching cached searches", func() {
			Expect(tier.SetVectors(ctx, []vector.Vector{vec("docs", "a", 1), vec("docs", "b", 2)})).To(Succeed())
			Expect(tier.SetQuery(ctx, "docs", "fp", []vector.SearchResult{{ID: "a"}})).To(Succeed())

			Expect(tier.DeleteVectors(ctx, "docs", []string{"a"})).To(Succeed())

			v, _, err := tier.GetVector(ctx, "docs", "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeNil())

			v, _, err = tier.GetVector(ctx, "docs", "b")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).NotTo(BeNil())

			_, ok, err := tier.GetQuery(ctx, "docs", "fp")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("invalidates cached searches of one collection", func() {
			Expect(tier.SetQuery(ctx, "docs", "fp1", nil)).To(Succeed())
			Expect(tier.SetQuery(ctx, "docs", "fp2", nil)).To(Succeed())
			Expect(tier.SetQuery(ctx, "other", "fp1", nil)).To(Succeed())
			Expect(tier.SetVectors(ctx, []vector.Vector{vec("docs", "a", 1)})).To(Succeed())

			Expect(tier.InvalidateQueries(ctx, "docs")).To(Succeed())

			Expect(mr.Exists("vecstore:docs:q:fp1")).To(BeFalse())
			Expect(mr.Exists("vecstore:docs:q:fp2")).To(BeFalse())
			Expect(mr.Exists("vecstore:other:q:fp1")).To(BeTrue())
			Expect(mr.Exists("vecstore:docs:v:a")).To(BeTrue())
		})

		It("invalidates a whole collection in both tiers", func() {
			Expect(tier.SetVectors(ctx, []vector.Vector{
				vec("docs", "a", 1), vec("docs", "b", 2), vec("other", "a", 3),
			})).To(Succeed())
			Expect(tier.SetQuery(ctx, "docs", "fp", nil)).To(Succeed())

			n, err := tier.CollectionSize(ctx, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(5))

			Expect(tier.InvalidateCollection(ctx, "docs")).To(Succeed())

			n, err = tier.CollectionSize(ctx, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())

			v, _, err := tier.GetVector(ctx, "other", "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).NotTo(BeNil())
		})

		It("does not treat glob characters in names as patterns", func() {
			Expect(tier.SetQuery(ctx, "do*", "fp", nil)).To(Succeed())
			Expect(tier.SetQuery(ctx, "docs", "fp", nil)).To(Succeed())

			Expect(tier.InvalidateQueries(ctx, "do*")).To(Succeed())
			Expect(mr.Exists("vecstore:docs:q:fp")).To(BeTrue())
			Expect(mr.Exists("vecstore:do*:q:fp")).To(BeFalse())
		})

		It("reports redis failures as unavailable", func() {
			mr.Close()

			_, _, err := tier.GetQuery(ctx, "docs", "fp")
			Expect(cache.IsUnavailable(err)).To(BeTrue())
			Expect(tier.Ping(ctx)).To(MatchError(cache.ErrUnavailable))
		})

		It("reports layer stats", func() {
			Expect(tier.SetVectors(ctx, []vector.Vector{vec("docs", "a", 1)})).To(Succeed())
			Expect(tier.Stats()).To(Equal(cache.Stats{
				LocalEnabled:  true,
				RemoteEnabled: true,
				LocalEntries:  1,
				VectorTTL:     time.Hour,
			}))
		})
	})

	Describe("local only", func() {
		It("caches vectors and never caches searches", func() {
			tier := newTier(cache.Config{LocalEnabled: true, LocalSize: 2})

			Expect(tier.SetVectors(ctx, []vector.Vector{vec("docs", "a", 1)})).To(Succeed())
			v, src, err := tier.GetVector(ctx, "docs", "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).NotTo(BeNil())
			Expect(src).To(Equal(cache.SourceLocal))

			Expect(tier.SetQuery(ctx, "docs", "fp", []vector.SearchResult{{ID: "a"}})).To(Succeed())
			_, ok, err := tier.GetQuery(ctx, "docs", "fp")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
			Expect(tier.Ping(ctx)).To(Succeed())
		})

		It("evicts the least recently used vector beyond its size", func() {
			tier := newTier(cache.Config{LocalEnabled: true, LocalSize: 2})
			Expect(tier.SetVectors(ctx, []vector.Vector{
				vec("docs", "a", 1), vec("docs", "b", 2), vec("docs", "c", 3),
			})).To(Succeed())

			v, _, _ := tier.GetVector(ctx, "docs", "a")
			Expect(v).To(BeNil())
			Expect(tier.Stats().LocalEntries).To(Equal(2))
		})

		It("expires entries by the injected clock", func() {
			tier := newTier(cache.Config{LocalEnabled: true, VectorTTL: time.Minute})
			Expect(tier.SetVectors(ctx, []vector.Vector{vec("docs", "a", 1)})).To(Succeed())

			clock.Advance(59 * time.Second)
			v, _, _ := tier.GetVector(ctx, "docs", "a")
			Expect(v).NotTo(BeNil())

			clock.Advance(time.Second)
			v, _, _ = tier.GetVector(ctx, "docs", "a")
			Expect(v).To(BeNil())
		})
	})

	Describe("disabled", func() {
		It("misses everything without error", func() {
			tier := newTier(cache.Config{})
			Expect(tier.VectorTTL()).To(Equal(cache.DefaultVectorTTL))
			Expect(tier.SetVectors(ctx, []vector.Vector{vec("docs", "a", 1)})).To(Succeed())

			v, src, err := tier.GetVector(ctx, "docs", "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeNil())
			Expect(src).To(Equal(cache.SourceNone))
			Expect(tier.InvalidateCollection(ctx, "docs")).To(Succeed())
		})
	})
})
