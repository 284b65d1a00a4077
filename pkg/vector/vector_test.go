package vector_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vecstore/pkg/vector"
)

var _ = Describe("ParseMetric", func() {
	DescribeTable("accepts known names and aliases",
		func(in string, want vector.Metric) {
			m, err := vector.ParseMetric(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(m).To(Equal(want))
			Expect(m.Valid()).To(BeTrue())
		},
		Entry("empty", "", vector.MetricCosine),
		Entry("cosine", "cosine", vector.MetricCosine),
		Entry("euclidean", "euclidean", vector.MetricEuclidean),
		Entry("l2", "l2", vector.MetricEuclidean),
		Entry("dotproduct", "dotproduct", vector.MetricDotProduct),
		Entry("dot", "dot", vector.MetricDotProduct),
	)

	It("rejects unknown metrics as invalid collections", func() {
		_, err := vector.ParseMetric("manhattan")
		Expect(errors.Is(err, vector.ErrInvalidCollection)).To(BeTrue())
	})
})

var _ = Describe("CheckDimension", func() {
	c := &vector.Collection{Name: "docs", Dimension: 3}

	It("accepts matching embeddings", func() {
		Expect(vector.CheckDimension(c, []float32{1, 2, 3})).To(Succeed())
	})

	It("returns a DimensionError matching ErrDimensionMismatch", func() {
		err := vector.CheckDimension(c, []float32{1, 2})
		Expect(errors.Is(err, vector.ErrDimensionMismatch)).To(BeTrue())

		var dimErr *vector.DimensionError
		Expect(errors.As(err, &dimErr)).To(BeTrue())
		Expect(dimErr.Expected).To(Equal(uint(3)))
		Expect(dimErr.Got).To(Equal(2))
	})
})

var _ = Describe("Codec", func() {
	It("round trips float32 slices", func() {
		in := []float32{0, -1.5, 3.25, 1e-7}
		out, err := vector.DecodeFloat32(vector.EncodeFloat32(in))
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(in))
	})

	It("rejects truncated blobs", func() {
		_, err := vector.DecodeFloat32([]byte{1, 2, 3})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("TopK", func() {
	It("sorts by score then id and truncates", func() {
		results := []vector.SearchResult{
			{ID: "c", Score: 0.5},
			{ID: "a", Score: 0.9},
			{ID: "b", Score: 0.5},
			{ID: "d", Score: 0.1},
		}

		top := vector.TopK(results, 3)
		Expect(top).To(HaveLen(3))
		Expect([]string{top[0].ID, top[1].ID, top[2].ID}).To(Equal([]string{"a", "b", "c"}))
	})
})

var _ = Describe("Filter", func() {
	It("lists keys in order", func() {
		Expect(vector.Filter{"b": 1, "a": "x"}.Keys()).To(Equal([]string{"a", "b"}))
	})

	It("accepts scalar values", func() {
		Expect(vector.Filter{"s": "x", "n": 2.5, "i": 3, "b": true}.Validate()).To(Succeed())
		Expect(vector.Filter(nil).Validate()).To(Succeed())
	})

	It("rejects nested values", func() {
		err := vector.Filter{"tags": []any{"a"}}.Validate()
		Expect(errors.Is(err, vector.ErrInvalidFilter)).To(BeTrue())
	})
})
