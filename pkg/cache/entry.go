package cache

import "time"

// Entry wraps a cached payload with the time it was written and how long it
// stays valid.
type Entry[T any] struct {
	Payload    T             `json:"payload"`
	InsertedAt time.Time     `json:"inserted_at"`
	TTL        time.Duration `json:"ttl"`
}

// Expired reports whether the entry is older than its TTL at now. A zero
// TTL never expires.
func (e Entry[T]) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.InsertedAt) >= e.TTL
}
