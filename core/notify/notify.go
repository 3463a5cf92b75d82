package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/fleet/core/logger"
)

// Local event names.
const (
	EventRequestStart = "request:start"
	EventRequestEnd   = "request:end"
	EventScalingUp    = "scaling:up"
	EventScalingDown  = "scaling:down"
)

// RequestEnd is the payload of EventRequestEnd.
type RequestEnd struct {
	Duration time.Duration
	Status   int
}

// Handler reacts to a local event.
type Handler func(ctx context.Context, payload any) error

// Notifier is the in-process hook bus. Emit is synchronous: it returns after
// every handler registered for name has run.
type Notifier interface {
	On(name string, h Handler) (unregister func())
	Emit(ctx context.Context, name string, payload any)
}

type entry struct {
	id uint64
	h  Handler
}

// Bus is the default Notifier.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]entry
	nextID   uint64
	logger   *slog.Logger

	emitted atomic.Int64
	failed  atomic.Int64
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger for handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[string][]entry),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// On registers h for name. The returned func removes it; calling it twice is a no-op.
func (b *Bus) On(name string, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], entry{id: id, h: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.handlers[name]
			for i, e := range list {
				if e.id == id {
					b.handlers[name] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(b.handlers[name]) == 0 {
				delete(b.handlers, name)
			}
		})
	}
}

// Emit runs every handler for name in registration order.
// Handler errors and panics are logged and never reach the caller.
func (b *Bus) Emit(ctx context.Context, name string, payload any) {
	b.mu.RLock()
	list := make([]entry, len(b.handlers[name]))
	copy(list, b.handlers[name])
	b.mu.RUnlock()

	b.emitted.Add(1)
	for _, e := range list {
		if err := b.call(ctx, e.h, payload); err != nil {
			b.failed.Add(1)
			b.logger.ErrorContext(ctx, "notify handler failed",
				logger.Component("notify"),
				logger.Event(name),
				logger.Error(err))
		}
	}
}

func (b *Bus) call(ctx context.Context, h Handler, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, payload)
}

// Len returns the number of handlers registered for name.
func (b *Bus) Len(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}

// Stats reports emitted events and failed handler calls.
func (b *Bus) Stats() (emitted, failed int64) {
	return b.emitted.Load(), b.failed.Load()
}
