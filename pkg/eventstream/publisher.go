package eventstream

import "context"

// Publisher publishes invalidation events to an event stream backend.
type Publisher interface {
	PublishInvalidation(ctx context.Context, event *InvalidationEvent) error
	Close() error
}

// Handler applies a received invalidation event.
type Handler func(ctx context.Context, event *InvalidationEvent) error

// Subscriber delivers invalidation events to a Handler until its context
// is canceled.
type Subscriber interface {
	Run(ctx context.Context, handle Handler) error
	Close() error
}
