package eventstream_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vecstore/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("marshals InvalidationEvent with expected top-level keys", func() {
		event := eventstream.NewInvalidationEvent(eventstream.EventTypeVectorsDeleted, "node-1", "docs", []string{"a", "b"})

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKeyWithValue("schema_version", BeNumerically("==", eventstream.SchemaVersionV1)))
		Expect(got).To(HaveKeyWithValue("event_type", "vecstore.vectors.deleted"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKeyWithValue("source", "node-1"))
		Expect(got).To(HaveKeyWithValue("collection", "docs"))
		Expect(got).To(HaveKeyWithValue("ids", ConsistOf("a", "b")))
	})

	It("stamps each event with a unique id", func() {
		a := eventstream.NewInvalidationEvent(eventstream.EventTypeVectorsUpserted, "n", "docs", nil)
		b := eventstream.NewInvalidationEvent(eventstream.EventTypeVectorsUpserted, "n", "docs", nil)
		Expect(a.EventID).NotTo(Equal(b.EventID))
		Expect(a.EmittedAt).NotTo(BeZero())
	})

	DescribeTable("WholeCollection",
		func(eventType string, ids []string, want bool) {
			e := eventstream.NewInvalidationEvent(eventType, "n", "docs", ids)
			Expect(e.WholeCollection()).To(Equal(want))
		},
		Entry("collection deleted", eventstream.EventTypeCollectionDeleted, nil, true),
		Entry("collection deleted with ids", eventstream.EventTypeCollectionDeleted, []string{"a"}, true),
		Entry("vectors deleted", eventstream.EventTypeVectorsDeleted, []string{"a"}, false),
		Entry("vectors upserted without ids", eventstream.EventTypeVectorsUpserted, nil, true),
	)

	It("provides ErrNilEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilEvent).To(MatchError("nil invalidation event"))
	})
})
