// Package nop provides eventstream implementations used when invalidation
// events are disabled.
package nop

import (
	"context"

	"github.com/papercomputeco/vecstore/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishInvalidation validates input and otherwise does nothing.
func (p *Publisher) PublishInvalidation(_ context.Context, event *eventstream.InvalidationEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}

// Subscriber never delivers events.
type Subscriber struct{}

// NewSubscriber creates a new no-op subscriber.
func NewSubscriber() *Subscriber {
	return &Subscriber{}
}

// Run blocks until ctx is done.
func (s *Subscriber) Run(ctx context.Context, _ eventstream.Handler) error {
	<-ctx.Done()
	return nil
}

// Close is a no-op.
func (s *Subscriber) Close() error {
	return nil
}
