package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeVectorsUpserted is emitted after vectors are written.
	EventTypeVectorsUpserted = "vecstore.vectors.upserted"

	// EventTypeVectorsDeleted is emitted after vectors are deleted by id.
	EventTypeVectorsDeleted = "vecstore.vectors.deleted"

	// EventTypeCollectionDeleted is emitted after a whole collection is dropped.
	EventTypeCollectionDeleted = "vecstore.collection.deleted"
)

// InvalidationEvent tells other store instances which cached entries of a
// collection are stale. An empty IDs list invalidates the whole collection.
type InvalidationEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	// Source is the instance id of the publishing store, used by
	// subscribers to skip their own events.
	Source string `json:"source"`

	Collection string   `json:"collection"`
	IDs        []string `json:"ids,omitempty"`
}

// NewInvalidationEvent builds a v1 event stamped with a fresh id and time.
func NewInvalidationEvent(eventType, source, collection string, ids []string) *InvalidationEvent {
	return &InvalidationEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Collection:    collection,
		IDs:           ids,
	}
}

// WholeCollection reports whether the event invalidates every entry of the
// collection.
func (e *InvalidationEvent) WholeCollection() bool {
	return e.EventType == EventTypeCollectionDeleted || len(e.IDs) == 0
}
