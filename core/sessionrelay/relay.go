package sessionrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/fleet/core/backplane"
	"github.com/dmitrymomot/fleet/core/logger"
)

// Handler processes a message relayed from another instance.
type Handler func(ctx context.Context, msg Message) error

type registration struct {
	id uint64
	h  Handler
}

// Relay subscribes to the session channels and dispatches messages from
// other instances to locally registered handlers.
type Relay struct {
	ps         backplane.PubSub
	instanceID string
	publisher  *Publisher
	logger     *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]registration
	nextID   uint64
	cancel   context.CancelFunc
	done     chan struct{}

	delivered   atomic.Int64
	droppedSelf atomic.Int64
	failed      atomic.Int64
	malformed   atomic.Int64
	lastMessage atomic.Int64
	subscribed  atomic.Bool
}

// Stats provides relay counters for observability.
// IsRunning is true while the subscription is established.
type Stats struct {
	Delivered     int64
	DroppedSelf   int64
	HandlerFailed int64
	Malformed     int64
	IsRunning     bool
	LastMessageAt time.Time
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the relay logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithPublisher sets the publisher used by Broadcast. Defaults to one built from ps and instanceID.
func WithPublisher(p *Publisher) Option {
	return func(r *Relay) {
		if p != nil {
			r.publisher = p
		}
	}
}

// New creates a relay for instanceID on ps.
func New(ps backplane.PubSub, instanceID string, opts ...Option) *Relay {
	r := &Relay{
		ps:         ps,
		instanceID: instanceID,
		handlers:   make(map[string][]registration),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.publisher == nil {
		r.publisher = NewPublisher(ps, instanceID)
	}
	return r
}

// On registers h for event and returns a function that removes it.
func (r *Relay) On(event string, h Handler) func() {
	if !IsEvent(event) {
		r.logger.Warn("handler registered for unknown session relay event",
			logger.Component("sessionrelay"),
			logger.Event(event))
	}

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.handlers[event] = append(r.handlers[event], registration{id: id, h: h})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			list := r.handlers[event]
			for i, reg := range list {
				if reg.id == id {
					r.handlers[event] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// Start subscribes once to every relayed channel and dispatches until ctx is
// cancelled, Stop is called or the subscription is lost. A lost subscription
// returns its error, which wraps backplane.ErrConnectivity.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return ErrRelayAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	defer close(done)
	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}()

	sub, err := r.ps.Subscribe(ctx, Channels()...)
	if err != nil {
		return fmt.Errorf("subscribe session channels: %w", err)
	}
	defer sub.Close()

	r.subscribed.Store(true)
	defer r.subscribed.Store(false)

	r.logger.InfoContext(ctx, "session relay started",
		logger.Component("sessionrelay"),
		logger.InstanceID(r.instanceID))

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "session relay stopping", logger.Component("sessionrelay"))
			return ctx.Err()
		case m, ok := <-sub.Messages():
			if !ok {
				if err := sub.Err(); err != nil {
					r.logger.ErrorContext(ctx, "session relay subscription lost",
						logger.Component("sessionrelay"),
						logger.Error(err))
					return err
				}
				return nil
			}
			r.dispatch(ctx, m)
		}
	}
}

// Stop cancels a running Start and waits for it to return.
func (r *Relay) Stop() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel == nil {
		return ErrRelayNotStarted
	}
	cancel()
	<-done
	return nil
}

// Run provides errgroup compatibility. Cancellation is a clean shutdown.
func (r *Relay) Run(ctx context.Context) func() error {
	return func() error {
		err := r.Start(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

// Broadcast publishes an application message to every other instance.
func (r *Relay) Broadcast(ctx context.Context, typ string, payload any) error {
	return r.publisher.Broadcast(ctx, typ, payload)
}

// Stats returns current counters.
func (r *Relay) Stats() Stats {
	var last time.Time
	if ms := r.lastMessage.Load(); ms > 0 {
		last = time.UnixMilli(ms)
	}

	return Stats{
		Delivered:     r.delivered.Load(),
		DroppedSelf:   r.droppedSelf.Load(),
		HandlerFailed: r.failed.Load(),
		Malformed:     r.malformed.Load(),
		IsRunning:     r.subscribed.Load(),
		LastMessageAt: last,
	}
}

func (r *Relay) dispatch(ctx context.Context, raw backplane.Message) {
	event, ok := EventFor(raw.Channel)
	if !ok {
		return
	}

	var msg Message
	if err := json.Unmarshal(raw.Payload, &msg); err != nil {
		r.malformed.Add(1)
		r.logger.WarnContext(ctx, "undecodable session relay message",
			logger.Component("sessionrelay"),
			logger.Channel(raw.Channel),
			logger.Error(err))
		return
	}

	if msg.InstanceID == r.instanceID {
		r.droppedSelf.Add(1)
		return
	}

	msg.Channel = raw.Channel
	msg.Event = event
	r.lastMessage.Store(time.Now().UnixMilli())

	r.mu.RLock()
	list := make([]registration, len(r.handlers[event]))
	copy(list, r.handlers[event])
	r.mu.RUnlock()

	for _, reg := range list {
		if err := r.invoke(ctx, reg.h, msg); err != nil {
			r.failed.Add(1)
			r.logger.ErrorContext(ctx, "session relay handler failed",
				logger.Component("sessionrelay"),
				logger.Event(event),
				logger.Key("origin", msg.InstanceID),
				logger.Error(err))
			continue
		}
		r.delivered.Add(1)
	}
}

func (r *Relay) invoke(ctx context.Context, h Handler, msg Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", ErrHandlerFailed, p)
		}
	}()
	if err := h(ctx, msg); err != nil {
		return errors.Join(ErrHandlerFailed, err)
	}
	return nil
}
