package backplane

import (
	"context"
	"time"
)

// Store is the key-value half of the backplane.
// Every key carries an optional time-to-live after which it disappears without explicit deletion.
type Store interface {
	// Get returns the value stored under key or ErrNotFound when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A zero ttl stores the key without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Replace stores value under key only when the key is live, otherwise it returns ErrNotFound.
	// A deleted key is never recreated by Replace.
	Replace(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists all live keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// PubSub is the broadcast half of the backplane.
// Delivery is at-most-once, unordered across channels and not persisted.
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe opens a message stream for the given channels.
	// The stream ends when ctx is cancelled, Close is called or connectivity is lost for good.
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
}

// Backplane combines Store and PubSub with connection lifecycle.
type Backplane interface {
	Store
	PubSub
	Ping(ctx context.Context) error
	Close() error
}

// Message is a single pub/sub delivery.
type Message struct {
	Channel string
	Payload []byte
}

// Subscription is a cancelable stream of messages.
type Subscription interface {
	// Messages returns the delivery channel. It is closed when the subscription ends.
	Messages() <-chan Message
	// Err reports why the stream ended. Nil after a regular Close or context cancellation.
	Err() error
	Close() error
}
