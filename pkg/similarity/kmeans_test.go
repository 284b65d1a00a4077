package similarity_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vecstore/pkg/similarity"
)

var _ = Describe("KMeans", func() {
	It("rejects k below one", func() {
		_, err := similarity.KMeans([][]float32{{1}}, 0, similarity.KMeansOptions{})
		Expect(err).To(MatchError(similarity.ErrInvalidK))
	})

	It("returns nothing for empty input", func() {
		clusters, err := similarity.KMeans(nil, 3, similarity.KMeansOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(clusters).To(BeEmpty())
	})

	It("separates two well-separated groups", func() {
		vectors := [][]float32{
			{0, 0}, {0.1, 0}, {0, 0.1},
			{10, 10}, {10.1, 10}, {10, 10.1},
		}

		clusters, err := similarity.KMeans(vectors, 2, similarity.KMeansOptions{
			Metric: similarity.Euclidean,
			Seed:   7,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(clusters).To(HaveLen(2))

		sizes := []int{len(clusters[0].Members), len(clusters[1].Members)}
		Expect(sizes).To(ConsistOf(3, 3))

		for _, c := range clusters {
			first := c.Members[0] < 3
			for _, m := range c.Members {
				Expect(m < 3).To(Equal(first))
			}
		}
	})

	It("caps k at the number of vectors", func() {
		clusters, err := similarity.KMeans([][]float32{{1, 0}, {0, 1}}, 5, similarity.KMeansOptions{Metric: similarity.Cosine})
		Expect(err).NotTo(HaveOccurred())
		Expect(clusters).To(HaveLen(2))
	})
})
