package pgvector

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vecstore/pkg/vector"
)

var _ = Describe("vector literals", func() {
	It("round trips through the text format", func() {
		in := []float32{1, -0.5, 0.125, 3e-5}
		lit := formatVector(in)
		Expect(lit).To(Equal("[1,-0.5,0.125,3e-05]"))

		out, err := parseVector(lit)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(in))
	})

	It("parses empty vectors", func() {
		out, err := parseVector("[]")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeEmpty())
	})
})

var _ = Describe("searchQuery", func() {
	DescribeTable("maps metrics onto pgvector operators",
		func(metric vector.Metric, score string) {
			stmt, args, err := searchQuery("docs", []float32{1, 0}, 5, metric, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(stmt).To(ContainSubstring(score))
			Expect(args).To(Equal([]any{"docs", "[1,0]", 2, 5}))
		},
		Entry("cosine", vector.MetricCosine, "1 - (embedding::vector(2) <=> $2::vector(2))"),
		Entry("euclidean", vector.MetricEuclidean, "1 / (1 + (embedding::vector(2) <-> $2::vector(2)))"),
		Entry("dot product", vector.MetricDotProduct, "-(embedding::vector(2) <#> $2::vector(2))"),
	)

	It("scores zero-vector matches as 0 under cosine", func() {
		stmt, _, err := searchQuery("docs", []float32{1, 0}, 5, vector.MetricCosine, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(stmt).To(ContainSubstring("CASE WHEN (embedding::vector(2) <=> $2::vector(2)) = 'NaN'::float8 THEN 0"))
	})

	DescribeTable("orders by the bare distance so the HNSW index drives the scan",
		func(metric vector.Metric, distance string) {
			stmt, _, err := searchQuery("docs", []float32{1, 0}, 5, metric, vector.Filter{"lang": "en"})
			Expect(err).NotTo(HaveOccurred())
			Expect(stmt).To(MatchRegexp(`ORDER BY \(embedding::vector\(2\) %s \$2::vector\(2\)\)\s+LIMIT \$5`, distance))
		},
		Entry("cosine", vector.MetricCosine, "<=>"),
		Entry("euclidean", vector.MetricEuclidean, "<->"),
		Entry("dot product", vector.MetricDotProduct, "<#>"),
	)

	It("pushes filters into a jsonb containment predicate", func() {
		stmt, args, err := searchQuery("docs", []float32{1}, 3, vector.MetricCosine, vector.Filter{"lang": "en"})
		Expect(err).NotTo(HaveOccurred())
		Expect(stmt).To(ContainSubstring("metadata @> $4::jsonb"))
		Expect(stmt).To(ContainSubstring("LIMIT $5"))
		Expect(args[3]).To(Equal(`{"lang":"en"}`))
	})
})

var _ = Describe("indexName", func() {
	It("fits within the identifier limit for long collection names", func() {
		c := vector.Collection{Name: string(make([]byte, 64)), Dimension: 1536, Metric: vector.MetricDotProduct}
		Expect(len(indexName(c))).To(BeNumerically("<=", 63))
		Expect(indexName(c)).To(HavePrefix(indexPrefix(c.Name)))
		Expect(indexName(c)).To(HaveSuffix("_1536_ip"))
	})
})
