// Package backplane defines the shared coordination substrate used by every
// instance of a fleet: a key-value store with per-key time-to-live plus a
// publish/subscribe primitive.
//
// The Backplane interface is implemented by the Redis adapter in
// integration/database/redis and by Memory, an in-process fallback that is
// only suitable for a single instance.
//
// # Failure semantics
//
// Every operation may fail with an error wrapping ErrConnectivity. Callers must
// treat such failures as "unknown" and never as "empty": a failed Keys call does
// not mean there are no keys. Absent keys are reported with ErrNotFound.
//
// Pub/sub delivery is at-most-once. A subscriber that is not connected when a
// message is published never sees it. Keys, expiring by TTL, are the source of
// truth; messages are a low-latency hint.
//
// # Usage
//
//	bp := backplane.WithPrefix(backplane.NewMemory(), "fleet:")
//
//	_ = bp.Set(ctx, "metrics:node-1", payload, time.Minute)
//	keys, err := bp.Keys(ctx, "metrics:") // ["metrics:node-1"]
//
//	sub, err := bp.Subscribe(ctx, "session-created")
//	defer sub.Close()
//	for msg := range sub.Messages() {
//		handle(msg.Channel, msg.Payload)
//	}
//
// # Reconnection
//
// RetryDelay implements the capped backoff shared by connection owners:
// attempt n waits min(n*100ms, 3s).
package backplane
