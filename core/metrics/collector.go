package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/fleet/core/backplane"
	"github.com/dmitrymomot/fleet/core/logger"
	"github.com/dmitrymomot/fleet/core/notify"
)

// responseTimeWeight is the weight of a new sample in the rolling average.
const responseTimeWeight = 0.1

// Collector samples local utilization on an interval, keeps a rolling window
// and publishes this node's snapshot under metrics:<nodeId>.
type Collector struct {
	store   backplane.Store
	nodeID  string
	cfg     Config
	sampler Sampler
	logger  *slog.Logger
	now     func() time.Time

	mu           sync.Mutex
	window       []Sample
	responseTime float64
	hasResponse  bool
	minuteStart  time.Time
	requests     int64
	connections  int64
	latest       Snapshot

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}

	published atomic.Int64
	failed    atomic.Int64
}

// Option configures a Collector.
type Option func(*Collector)

// WithSampler replaces the host sampler.
func WithSampler(s Sampler) Option {
	return func(c *Collector) {
		if s != nil {
			c.sampler = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCollector creates a Collector for nodeID writing to store.
func NewCollector(store backplane.Store, nodeID string, cfg Config, opts ...Option) *Collector {
	c := &Collector{
		store:   store,
		nodeID:  nodeID,
		cfg:     cfg.withDefaults(),
		sampler: HostSampler{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.minuteStart = c.now()
	return c
}

// NodeID returns the id snapshots are published under.
func (c *Collector) NodeID() string { return c.nodeID }

// TrackRequestStart records an accepted request.
func (c *Collector) TrackRequestStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollMinute(c.now())
	c.requests++
	c.connections++
}

// TrackRequestEnd records a finished request and folds its duration into the
// rolling response time.
func (c *Collector) TrackRequestEnd(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connections > 0 {
		c.connections--
	}
	if !c.hasResponse {
		c.responseTime = ms
		c.hasResponse = true
		return
	}
	c.responseTime = c.responseTime*(1-responseTimeWeight) + ms*responseTimeWeight
}

// Subscribe wires the request hooks to n. The returned function removes them.
func (c *Collector) Subscribe(n notify.Notifier) func() {
	offStart := n.On(notify.EventRequestStart, func(context.Context, any) error {
		c.TrackRequestStart()
		return nil
	})
	offEnd := n.On(notify.EventRequestEnd, func(_ context.Context, payload any) error {
		switch p := payload.(type) {
		case notify.RequestEnd:
			c.TrackRequestEnd(p.Duration)
		case time.Duration:
			c.TrackRequestEnd(p)
		default:
			c.TrackRequestEnd(0)
		}
		return nil
	})
	return func() {
		offStart()
		offEnd()
	}
}

// rollMinute resets the request counter once a full minute has elapsed. Caller holds mu.
func (c *Collector) rollMinute(now time.Time) {
	if now.Sub(c.minuteStart) >= time.Minute {
		c.requests = 0
		c.minuteStart = now
	}
}

// Collect takes one sample, appends it to the window and, when this node
// publishes, writes the snapshot with the configured TTL. A failed sample
// leaves the window untouched.
func (c *Collector) Collect(ctx context.Context) error {
	s, err := c.sampler.Sample(ctx)
	if err != nil {
		return errors.Join(ErrSampleFailed, err)
	}
	s.CPU = clamp01(s.CPU)
	s.Memory = clamp01(s.Memory)
	now := c.now()
	if s.Timestamp.IsZero() {
		s.Timestamp = now
	}

	c.mu.Lock()
	c.window = append(c.window, s)
	if over := len(c.window) - c.cfg.SampleSize; over > 0 {
		c.window = append(c.window[:0:0], c.window[over:]...)
	}
	c.rollMinute(now)
	snap := Snapshot{
		NodeID:            c.nodeID,
		CPU:               s.CPU,
		Memory:            s.Memory,
		RequestsPerMinute: c.requests,
		ResponseTime:      c.responseTime,
		Connections:       c.connections,
		Timestamp:         now.UnixMilli(),
	}
	c.latest = snap
	c.mu.Unlock()

	if !c.cfg.Publisher {
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Join(ErrPublishFailed, err)
	}
	if err := c.store.Set(ctx, Key(c.nodeID), data, c.cfg.TTL.Duration()); err != nil {
		c.failed.Add(1)
		return errors.Join(ErrPublishFailed, err)
	}
	c.published.Add(1)
	return nil
}

// Snapshot returns the most recent snapshot built by Collect.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// Window returns a copy of the rolling sample window, oldest first.
func (c *Collector) Window() []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sample, len(c.window))
	copy(out, c.window)
	return out
}

// Stats returns publish counters.
func (c *Collector) Stats() (published, failed int64) {
	return c.published.Load(), c.failed.Load()
}

// Start collects immediately and then on every interval until ctx is
// cancelled or Stop is called. Collection errors are logged and the tick skipped.
func (c *Collector) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	if c.cancel != nil {
		c.lifecycle.Unlock()
		return ErrCollectorAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.lifecycle.Unlock()

	defer close(done)
	defer func() {
		c.lifecycle.Lock()
		c.cancel = nil
		c.lifecycle.Unlock()
		cancel()
	}()

	ticker := time.NewTicker(c.cfg.Interval.Duration())
	defer ticker.Stop()

	c.logger.InfoContext(ctx, "metrics collector started",
		logger.Component("metrics"),
		logger.NodeID(c.nodeID),
		slog.Duration("interval", c.cfg.Interval.Duration()),
		slog.Bool("publisher", c.cfg.Publisher))

	c.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(context.Background(), "metrics collector stopped",
				logger.Component("metrics"))
			return ctx.Err()
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Collector) tick(ctx context.Context) {
	if err := c.Collect(ctx); err != nil && ctx.Err() == nil {
		c.logger.WarnContext(ctx, "metrics collection failed",
			logger.Component("metrics"),
			logger.NodeID(c.nodeID),
			logger.Error(err))
	}
}

// Stop cancels the loop and waits for it to exit.
func (c *Collector) Stop() error {
	c.lifecycle.Lock()
	cancel, done := c.cancel, c.done
	c.lifecycle.Unlock()

	if cancel == nil {
		return ErrCollectorNotStarted
	}
	cancel()
	<-done
	return nil
}

// Run provides errgroup compatibility. Cancellation is a clean shutdown.
func (c *Collector) Run(ctx context.Context) func() error {
	return func() error {
		err := c.Start(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}
