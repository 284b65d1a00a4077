package linear_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vecstore/pkg/vector"
	"github.com/papercomputeco/vecstore/pkg/vector/linear"
)

var _ = Describe("Backend", func() {
	var (
		ctx     context.Context
		backend *linear.Backend
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		backend, err = linear.New(ctx, linear.Config{DSN: ":memory:"})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(backend.Close()).To(Succeed())
	})

	It("implements vector.Backend", func() {
		var _ vector.Backend = (*linear.Backend)(nil)
		Expect(backend.Name()).To(Equal("linear"))
	})

	Describe("New", func() {
		It("requires a DSN", func() {
			_, err := linear.New(ctx, linear.Config{})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("DSN is required"))
		})

		It("rejects unknown drivers", func() {
			_, err := linear.New(ctx, linear.Config{Driver: "oracle", DSN: "x"})
			Expect(err).To(MatchError(ContainSubstring("unsupported")))
		})
	})

	Describe("SimilaritySearch", func() {
		BeforeEach(func() {
			Expect(backend.Store(ctx, "docs", []vector.Vector{
				{ID: "a", Embedding: []float32{1, 0, 0}, Metadata: map[string]any{"lang": "en"}},
				{ID: "b", Embedding: []float32{0, 1, 0}, Metadata: map[string]any{"lang": "fr"}},
				{ID: "c", Embedding: []float32{0.9, 0.1, 0}, Metadata: map[string]any{"lang": "en"}},
			})).To(Succeed())
		})

		It("ranks by cosine similarity", func() {
			results, err := backend.SimilaritySearch(ctx, "docs", []float32{1, 0, 0}, 2, vector.MetricCosine, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("a"))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 1e-6))
			Expect(results[1].ID).To(Equal("c"))
		})

		It("applies metadata filters", func() {
			results, err := backend.SimilaritySearch(ctx, "docs", []float32{0, 1, 0}, 5, vector.MetricCosine, vector.Filter{"lang": "en"})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			for _, r := range results {
				Expect(r.Metadata).To(HaveKeyWithValue("lang", "en"))
			}
		})

		It("scores euclidean as 1/(1+d)", func() {
			results, err := backend.SimilaritySearch(ctx, "docs", []float32{0, 1, 0}, 1, vector.MetricEuclidean, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("b"))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 1e-6))
		})

		It("ranks by raw dot product", func() {
			Expect(backend.Store(ctx, "dots", []vector.Vector{
				{ID: "small", Embedding: []float32{1, 0}},
				{ID: "large", Embedding: []float32{3, 0}},
			})).To(Succeed())

			results, err := backend.SimilaritySearch(ctx, "dots", []float32{1, 0}, 2, vector.MetricDotProduct, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].ID).To(Equal("large"))
			Expect(results[0].Score).To(BeNumerically("~", 3.0, 1e-6))
		})

		It("skips rows with a different dimension", func() {
			Expect(backend.Store(ctx, "docs", []vector.Vector{
				{ID: "d", Embedding: []float32{1, 0}},
			})).To(Succeed())

			results, err := backend.SimilaritySearch(ctx, "docs", []float32{1, 0, 0}, 10, vector.MetricCosine, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
		})

		It("returns nothing for topK 0", func() {
			results, err := backend.SimilaritySearch(ctx, "docs", []float32{1, 0, 0}, 0, vector.MetricCosine, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("isolates collections", func() {
			results, err := backend.SimilaritySearch(ctx, "other", []float32{1, 0, 0}, 5, vector.MetricCosine, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})
	})

	Describe("ScanLimit", func() {
		It("bounds the rows scored per query", func() {
			limited, err := linear.New(ctx, linear.Config{DSN: ":memory:", ScanLimit: 5})
			Expect(err).NotTo(HaveOccurred())
			defer limited.Close()

			vecs := make([]vector.Vector, 20)
			for i := range vecs {
				vecs[i] = vector.Vector{ID: fmt.Sprintf("v%02d", i), Embedding: []float32{1, float32(i)}}
			}
			Expect(limited.Store(ctx, "docs", vecs)).To(Succeed())

			results, err := limited.SimilaritySearch(ctx, "docs", []float32{1, 0}, 100, vector.MetricCosine, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(5))
		})
	})

	Describe("Store", func() {
		It("upserts and keeps created_at", func() {
			Expect(backend.Store(ctx, "docs", []vector.Vector{{ID: "a", Embedding: []float32{1, 0}}})).To(Succeed())
			first, err := backend.BatchGet(ctx, "docs", []string{"a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(first).To(HaveLen(1))

			Expect(backend.Store(ctx, "docs", []vector.Vector{
				{ID: "a", Embedding: []float32{0, 1}, Metadata: map[string]any{"v": 2.0}},
			})).To(Succeed())

			got, err := backend.BatchGet(ctx, "docs", []string{"a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].Embedding).To(Equal([]float32{0, 1}))
			Expect(got[0].Metadata).To(HaveKeyWithValue("v", 2.0))
			Expect(got[0].CreatedAt).To(Equal(first[0].CreatedAt))
			Expect(got[0].Collection).To(Equal("docs"))
		})

		It("accepts an empty batch", func() {
			Expect(backend.Store(ctx, "docs", nil)).To(Succeed())
		})
	})

	Describe("Delete", func() {
		BeforeEach(func() {
			Expect(backend.Store(ctx, "docs", []vector.Vector{
				{ID: "a", Embedding: []float32{1, 0}},
				{ID: "b", Embedding: []float32{0, 1}},
			})).To(Succeed())
		})

		It("removes only the given ids", func() {
			Expect(backend.Delete(ctx, "docs", []string{"a", "missing"})).To(Succeed())

			got, err := backend.BatchGet(ctx, "docs", []string{"a", "b"})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].ID).To(Equal("b"))
		})

		It("drops a whole collection", func() {
			Expect(backend.DeleteCollection(ctx, "docs")).To(Succeed())

			stats, err := backend.Stats(ctx, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Count).To(BeZero())
		})
	})

	Describe("Stats", func() {
		It("counts rows and averages dimensions", func() {
			Expect(backend.Store(ctx, "docs", []vector.Vector{
				{ID: "a", Embedding: []float32{1, 0}},
				{ID: "b", Embedding: []float32{0, 1, 0, 0}},
			})).To(Succeed())

			stats, err := backend.Stats(ctx, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Count).To(Equal(int64(2)))
			Expect(stats.AvgDimension).To(BeNumerically("~", 3.0, 1e-9))
		})
	})

	Describe("Scan", func() {
		It("returns stored vectors up to the limit", func() {
			Expect(backend.Store(ctx, "docs", []vector.Vector{
				{ID: "a", Embedding: []float32{1, 0}},
				{ID: "b", Embedding: []float32{0, 1}},
				{ID: "c", Embedding: []float32{1, 1}},
			})).To(Succeed())

			got, err := backend.Scan(ctx, "docs", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(2))
		})
	})
})
