package core

import (
	"context"
)

// Sink receives elements exported from a queue, typically dead letters or
// elements handed off by a worker. payload is the codec-encoded element.
type Sink interface {
	// Write delivers one element taken from queue.
	Write(ctx context.Context, queue string, payload []byte) error

	// Close flushes and releases the sink.
	Close() error
}
