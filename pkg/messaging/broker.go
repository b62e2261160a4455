package messaging

import (
	"context"
	"errors"
	"time"
)

// ErrNoMessage is returned by Dequeue when the wait timed out.
var ErrNoMessage = errors.New("no message")

// Publisher defines the interface for publishing messages
type Publisher interface {
	Publish(ctx context.Context, topic string, message interface{}) error
	Close() error
}

// Subscriber delivers every message published to channel until ctx ends,
// then closes the returned channel.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Broker is a Publisher that can also fan messages back out to subscribers.
type Broker interface {
	Publisher
	Subscriber
}

// Queue is a work list with at-least-once hand-off to a single consumer.
type Queue interface {
	Enqueue(ctx context.Context, key string, value string) error
	Dequeue(ctx context.Context, key string, wait time.Duration) (string, error)
}

// Keyed messages are partitioned by their key where the transport supports it.
type Keyed interface {
	MessageKey() string
}
