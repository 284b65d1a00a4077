package eventstream

import "errors"

// ErrNilEvent indicates a nil invalidation event was provided to a publisher.
var ErrNilEvent = errors.New("nil invalidation event")
