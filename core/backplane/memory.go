package backplane

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultMemoryBuffer          = 100
	defaultMemoryCleanupInterval = time.Minute
)

// Memory is an in-process backplane.
// It is the opt-in fallback when the shared store is unreachable and is not
// correct for more than one instance: every process sees only its own keys.
// Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	items   map[string]memoryItem
	subs    map[*memorySubscription]struct{}
	closed  bool
	now     func() time.Time
	buffer  int
	cleanup time.Duration
	logger  *slog.Logger
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

// MemoryOption configures a Memory backplane.
type MemoryOption func(*Memory)

// WithClock sets the time source used for key expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// WithBufferSize sets the per-subscriber delivery buffer.
// Messages for a subscriber with a full buffer are dropped.
func WithBufferSize(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.buffer = n
		}
	}
}

// WithCleanupInterval sets how often Start sweeps expired keys.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d > 0 {
			m.cleanup = d
		}
	}
}

// WithMemoryLogger sets the logger.
func WithMemoryLogger(l *slog.Logger) MemoryOption {
	return func(m *Memory) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMemory creates an empty in-memory backplane.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		items:   make(map[string]memoryItem),
		subs:    make(map[*memorySubscription]struct{}),
		now:     time.Now,
		buffer:  defaultMemoryBuffer,
		cleanup: defaultMemoryCleanupInterval,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	item, ok := m.items[key]
	if !ok || item.expired(m.now()) {
		return nil, ErrNotFound
	}

	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

// Set implements Store.
func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = item
	return nil
}

// Replace implements Store. The presence check and the write happen under one lock.
func (m *Memory) Replace(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	now := m.now()
	if item, ok := m.items[key]; !ok || item.expired(now) {
		return ErrNotFound
	}

	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = now.Add(ttl)
	}
	m.items[key] = item
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	delete(m.items, key)
	return nil
}

// Keys implements Store. Results are sorted.
func (m *Memory) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	now := m.now()
	keys := make([]string, 0)
	for k, item := range m.items {
		if strings.HasPrefix(k, prefix) && !item.expired(now) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Publish implements PubSub. Delivery never blocks the publisher.
func (m *Memory) Publish(ctx context.Context, channel string, payload []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}

	for sub := range m.subs {
		if _, ok := sub.channels[channel]; !ok {
			continue
		}
		msg := Message{Channel: channel, Payload: append([]byte(nil), payload...)}
		select {
		case sub.ch <- msg:
		default:
			m.logger.WarnContext(ctx, "dropping message for slow subscriber",
				slog.String("channel", channel))
		}
	}
	return nil
}

// Subscribe implements PubSub.
func (m *Memory) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	if len(channels) == 0 {
		return nil, errors.New("backplane: no channels to subscribe")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	sub := &memorySubscription{
		owner:    m,
		channels: make(map[string]struct{}, len(channels)),
		ch:       make(chan Message, m.buffer),
		done:     make(chan struct{}),
	}
	for _, c := range channels {
		sub.channels[c] = struct{}{}
	}
	m.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Ping implements Backplane.
func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close drops all keys and ends every subscription.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	subs := make([]*memorySubscription, 0, len(m.subs))
	for sub := range m.subs {
		subs = append(subs, sub)
	}
	m.items = make(map[string]memoryItem)
	m.subs = make(map[*memorySubscription]struct{})
	m.mu.Unlock()

	for _, sub := range subs {
		sub.end()
	}
	return nil
}

// Len returns the number of stored keys, including expired ones not yet swept.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Sweep removes expired keys and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, item := range m.items {
		if item.expired(now) {
			delete(m.items, k)
			removed++
		}
	}
	return removed
}

// Start sweeps expired keys on the cleanup interval until ctx is cancelled.
func (m *Memory) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.DebugContext(ctx, "swept expired keys", slog.Int("count", n))
			}
		}
	}
}

// Run provides errgroup compatibility.
func (m *Memory) Run(ctx context.Context) func() error {
	return func() error {
		err := m.Start(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

type memorySubscription struct {
	owner    *Memory
	channels map[string]struct{}
	ch       chan Message
	done     chan struct{}
	once     sync.Once
}

func (s *memorySubscription) Messages() <-chan Message { return s.ch }

func (s *memorySubscription) Err() error { return nil }

// Close detaches the subscription and closes its delivery channel.
func (s *memorySubscription) Close() error {
	s.owner.mu.Lock()
	delete(s.owner.subs, s)
	s.owner.mu.Unlock()
	s.end()
	return nil
}

// end closes the delivery channel. Callers must have removed s from the owner's
// subscriber set first so no publisher can send on it.
func (s *memorySubscription) end() {
	s.once.Do(func() {
		close(s.done)
		close(s.ch)
	})
}
