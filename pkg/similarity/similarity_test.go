package similarity_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vecstore/pkg/similarity"
)

var _ = Describe("Similarity", func() {
	Describe("CosineSimilarity", func() {
		It("returns 1 for identical directions", func() {
			Expect(similarity.CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6})).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("returns 0 for orthogonal vectors", func() {
			Expect(similarity.CosineSimilarity([]float32{1, 0, 0, 0}, []float32{0, 1, 0, 0})).To(BeNumerically("~", 0.0, 1e-9))
		})

		It("returns -1 for opposite vectors", func() {
			Expect(similarity.CosineSimilarity([]float32{1, 1}, []float32{-1, -1})).To(BeNumerically("~", -1.0, 1e-9))
		})

		It("returns 0 when either magnitude is zero", func() {
			Expect(similarity.CosineSimilarity([]float32{0, 0}, []float32{1, 1})).To(Equal(0.0))
			Expect(similarity.CosineSimilarity([]float32{1, 1}, []float32{0, 0})).To(Equal(0.0))
		})
	})

	Describe("Dot", func() {
		It("sums component products", func() {
			Expect(similarity.Dot([]float32{1, 2, 3}, []float32{4, 5, 6})).To(BeNumerically("~", 32.0, 1e-9))
		})
	})

	Describe("Euclidean", func() {
		It("computes the straight-line distance", func() {
			Expect(similarity.EuclideanDistance([]float32{0, 0}, []float32{3, 4})).To(BeNumerically("~", 5.0, 1e-9))
		})

		It("maps zero distance to similarity 1", func() {
			Expect(similarity.EuclideanSimilarity([]float32{1, 2}, []float32{1, 2})).To(BeNumerically("~", 1.0, 1e-12))
		})

		It("gives strictly higher similarity to strictly closer points", func() {
			query := []float32{0, 0, 0}
			points := [][]float32{{0.1, 0, 0}, {0.5, 0, 0}, {1, 1, 0}, {3, 3, 3}, {10, 0, 0}}

			prev := math.Inf(1)
			prevDist := -1.0
			for _, p := range points {
				d := similarity.EuclideanDistance(query, p)
				s := similarity.EuclideanSimilarity(query, p)
				Expect(d).To(BeNumerically(">", prevDist))
				Expect(s).To(BeNumerically("<", prev))
				Expect(s).To(BeNumerically(">", 0))
				prev, prevDist = s, d
			}
		})
	})

	Describe("Score", func() {
		It("dispatches on metric", func() {
			a := []float32{1, 0}
			b := []float32{2, 0}
			Expect(similarity.Score(similarity.Cosine, a, b)).To(BeNumerically("~", 1.0, 1e-9))
			Expect(similarity.Score(similarity.DotProduct, a, b)).To(BeNumerically("~", 2.0, 1e-9))
			Expect(similarity.Score(similarity.Euclidean, a, b)).To(BeNumerically("~", 0.5, 1e-9))
		})
	})

	Describe("Normalize", func() {
		It("returns a unit vector", func() {
			n := similarity.Normalize([]float32{3, 4})
			Expect(n[0]).To(BeNumerically("~", 0.6, 1e-6))
			Expect(n[1]).To(BeNumerically("~", 0.8, 1e-6))
			Expect(similarity.Magnitude(n)).To(BeNumerically("~", 1.0, 1e-6))
		})

		It("leaves the input untouched and handles zero vectors", func() {
			in := []float32{0, 0}
			Expect(similarity.Normalize(in)).To(Equal([]float32{0, 0}))
			Expect(in).To(Equal([]float32{0, 0}))
		})
	})

	Describe("Centroid", func() {
		It("averages component-wise", func() {
			c := similarity.Centroid([][]float32{{0, 0}, {2, 4}})
			Expect(c).To(Equal([]float32{1, 2}))
		})

		It("returns nil for no vectors", func() {
			Expect(similarity.Centroid(nil)).To(BeNil())
		})
	})
})
