package qdrant

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/vecstore/pkg/vector"
)

var _ = Describe("conversions", func() {
	It("derives stable point ids", func() {
		Expect(pointID("doc-1").GetUuid()).To(Equal(pointID("doc-1").GetUuid()))
		Expect(pointID("doc-1").GetUuid()).NotTo(Equal(pointID("doc-2").GetUuid()))
	})

	It("maps euclid distances to 1/(1+d)", func() {
		Expect(score(vector.MetricEuclidean, 1)).To(BeNumerically("~", 0.5, 1e-9))
		Expect(score(vector.MetricCosine, 0.25)).To(BeNumerically("~", 0.25, 1e-9))
		Expect(score(vector.MetricDotProduct, -3)).To(BeNumerically("~", -3, 1e-9))
	})

	It("maps metrics to distances", func() {
		Expect(distance(vector.MetricCosine)).To(Equal(qc.Distance_Cosine))
		Expect(distance(vector.MetricEuclidean)).To(Equal(qc.Distance_Euclid))
		Expect(distance(vector.MetricDotProduct)).To(Equal(qc.Distance_Dot))
	})

	It("builds must conditions in key order", func() {
		f := toFilter(vector.Filter{"lang": "en", "draft": false, "rank": 2})
		Expect(f.GetMust()).To(HaveLen(3))
		Expect(f.GetMust()[0].GetField().GetKey()).To(Equal("draft"))
		Expect(f.GetMust()[1].GetField().GetKey()).To(Equal("lang"))
		Expect(f.GetMust()[2].GetField().GetRange().GetGte()).To(Equal(2.0))
		Expect(f.GetMust()[2].GetField().GetRange().GetLte()).To(Equal(2.0))
	})

	It("returns no filter for an empty one", func() {
		Expect(toFilter(nil)).To(BeNil())
	})

	It("strips reserved payload keys", func() {
		id, md := splitPayload(map[string]*qc.Value{
			payloadID:        qc.NewValueString("a"),
			payloadCreatedAt: qc.NewValueInt(1),
			payloadUpdatedAt: qc.NewValueInt(2),
			"lang":           qc.NewValueString("en"),
			"rank":           qc.NewValueInt(3),
		})
		Expect(id).To(Equal("a"))
		Expect(md).To(Equal(map[string]any{"lang": "en", "rank": 3.0}))
	})
})
