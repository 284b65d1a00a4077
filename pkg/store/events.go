package store

import (
	"context"

	"github.com/papercomputeco/vecstore/pkg/eventstream"
)

// ApplyInvalidation drops local cache entries named by an event published
// by another instance. It is an eventstream.Handler. Events from this
// instance are ignored. The distributed tier is shared and was already
// invalidated by the publisher.
func (s *Store) ApplyInvalidation(_ context.Context, event *eventstream.InvalidationEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	if event.Source == s.instanceID {
		return nil
	}

	s.bumpGeneration(event.Collection)
	if event.WholeCollection() {
		s.cache.InvalidateLocal(event.Collection, nil)
	} else {
		s.cache.InvalidateLocal(event.Collection, event.IDs)
	}

	s.logger.Debug("applied invalidation event",
		"event_type", event.EventType,
		"collection", event.Collection,
		"source", event.Source,
		"ids", len(event.IDs),
	)
	return nil
}
