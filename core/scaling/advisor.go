package scaling

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
	"github.com/dmitrymomot/fleet/core/metrics"
	"github.com/dmitrymomot/fleet/core/notify"
)

// RecommendationKey holds the latest non-maintain recommendation. It has no TTL.
const RecommendationKey = "scaling:recommendation"

// Record is the persisted form of a recommendation.
type Record struct {
	Timestamp      int64          `json:"timestamp"`
	Recommendation Recommendation `json:"recommendation"`
	Metrics        Aggregate      `json:"metrics"`
	Efficiency     *Efficiency    `json:"efficiency,omitempty"`
}

// WindowSource provides the local sample window for the efficiency diagnostic.
// *metrics.Collector satisfies it.
type WindowSource interface {
	Window() []metrics.Sample
}

// Advisor periodically reads every live node snapshot and produces a scaling
// recommendation. Cooldowns are tracked from this instance's own decisions.
type Advisor struct {
	store    backplane.Store
	cfg      Config
	notifier notify.Notifier
	window   WindowSource
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	lastUp     time.Time
	lastDown   time.Time
	latest     Recommendation
	efficiency *Efficiency

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}

	checks   atomic.Int64
	failures atomic.Int64
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithNotifier sets the local bus receiving scaling:up and scaling:down.
func WithNotifier(n notify.Notifier) Option {
	return func(a *Advisor) {
		if n != nil {
			a.notifier = n
		}
	}
}

// WithWindow sets the sample window used when predictive scaling is enabled.
func WithWindow(w WindowSource) Option {
	return func(a *Advisor) {
		if w != nil {
			a.window = w
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Advisor) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Advisor) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAdvisor creates an Advisor reading snapshots from store.
func NewAdvisor(store backplane.Store, cfg Config, opts ...Option) *Advisor {
	a := &Advisor{
		store:    store,
		cfg:      cfg,
		notifier: notify.New(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.latest = Recommendation{Action: ActionMaintain, Reason: "no check yet"}
	return a
}

// Check runs one evaluation. It always returns a usable recommendation: on
// any failure the result is maintain and the error is returned alongside it.
func (a *Advisor) Check(ctx context.Context) (rec Recommendation, err error) {
	now := a.now()
	a.checks.Add(1)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrCheckFailed, r)
		}
		if err != nil {
			a.failures.Add(1)
			rec = Recommendation{
				Action:    ActionMaintain,
				Reason:    "scaling check failed",
				Timestamp: now.UnixMilli(),
				Metrics:   rec.Metrics,
			}
			rec.CurrentNodes, rec.TargetNodes = rec.Metrics.Nodes, a.cfg.Clamp(rec.Metrics.Nodes)
		}
		a.mu.Lock()
		a.latest = rec
		a.mu.Unlock()
	}()

	snaps, err := metrics.ReadSnapshots(ctx, a.store)
	if err != nil {
		return rec, errors.Join(ErrCheckFailed, err)
	}

	rec = Decide(a.cfg, Summarize(snaps))
	rec.Timestamp = now.UnixMilli()
	a.applyCooldown(&rec, now)

	var eff *Efficiency
	if a.cfg.Predictive && a.window != nil {
		e := CalculateEfficiency(a.window.Window())
		eff = &e
		a.mu.Lock()
		a.efficiency = eff
		a.mu.Unlock()
		if e.Bottleneck != "" {
			a.logger.InfoContext(ctx, "resource bottleneck trend",
				logger.Component("scaling"),
				slog.String("bottleneck", e.Bottleneck),
				slog.String("suggestion", e.Suggestion),
				logger.Ratio("cpu_trend", e.CPUTrend),
				logger.Ratio("memory_trend", e.MemoryTrend))
		}
	}

	if rec.Action == ActionMaintain {
		return rec, nil
	}

	if err := a.persist(ctx, rec, eff); err != nil {
		return rec, errors.Join(ErrCheckFailed, err)
	}

	a.mu.Lock()
	if rec.Action == ActionScaleUp {
		a.lastUp = now
	} else {
		a.lastDown = now
	}
	a.mu.Unlock()

	event := notify.EventScalingUp
	if rec.Action == ActionScaleDown {
		event = notify.EventScalingDown
	}
	a.notifier.Emit(ctx, event, rec)

	a.logger.InfoContext(ctx, "scaling recommendation",
		logger.Component("scaling"),
		logger.Action(string(rec.Action)),
		slog.Int("current_nodes", rec.CurrentNodes),
		slog.Int("target_nodes", rec.TargetNodes),
		slog.String("reason", rec.Reason))

	return rec, nil
}

func (a *Advisor) applyCooldown(rec *Recommendation, now time.Time) {
	a.mu.Lock()
	lastUp, lastDown := a.lastUp, a.lastDown
	a.mu.Unlock()

	switch rec.Action {
	case ActionScaleUp:
		if !lastUp.IsZero() && now.Sub(lastUp) < a.cfg.ScaleUpCooldown.Duration() {
			rec.Action, rec.TargetNodes = ActionMaintain, a.cfg.Clamp(rec.CurrentNodes)
			rec.Reason = "scale-up cooldown active"
		}
	case ActionScaleDown:
		if !lastDown.IsZero() && now.Sub(lastDown) < a.cfg.ScaleDownCooldown.Duration() {
			rec.Action, rec.TargetNodes = ActionMaintain, a.cfg.Clamp(rec.CurrentNodes)
			rec.Reason = "scale-down cooldown active"
		}
	}
}

func (a *Advisor) persist(ctx context.Context, rec Recommendation, eff *Efficiency) error {
	data, err := json.Marshal(Record{
		Timestamp:      rec.Timestamp,
		Recommendation: rec,
		Metrics:        rec.Metrics,
		Efficiency:     eff,
	})
	if err != nil {
		return err
	}
	if err := a.store.Set(ctx, RecommendationKey, data, 0); err != nil {
		return fmt.Errorf("persist recommendation: %w", err)
	}
	return nil
}

// Latest returns the result of the most recent Check.
func (a *Advisor) Latest() Recommendation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest
}

// LatestEfficiency returns the last diagnostic, or nil when predictive scaling is off.
func (a *Advisor) LatestEfficiency() *Efficiency {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.efficiency
}

// ReadRecommendation loads the fleet's persisted recommendation, whichever node wrote it.
func ReadRecommendation(ctx context.Context, store backplane.Store) (Record, error) {
	data, err := store.Get(ctx, RecommendationKey)
	if errors.Is(err, backplane.ErrNotFound) {
		return Record{}, ErrNoRecommendation
	}
	if err != nil {
		return Record{}, err
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode recommendation: %w", err)
	}
	return r, nil
}

// Start runs Check on every interval until ctx is cancelled or Stop is called.
func (a *Advisor) Start(ctx context.Context) error {
	a.lifecycle.Lock()
	if a.cancel != nil {
		a.lifecycle.Unlock()
		return ErrAdvisorAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	done := a.done
	a.lifecycle.Unlock()

	defer close(done)
	defer func() {
		a.lifecycle.Lock()
		a.cancel = nil
		a.lifecycle.Unlock()
		cancel()
	}()

	ticker := time.NewTicker(a.cfg.CheckInterval.Duration())
	defer ticker.Stop()

	a.logger.InfoContext(ctx, "scaling advisor started",
		logger.Component("scaling"),
		slog.Duration("interval", a.cfg.CheckInterval.Duration()),
		slog.Int("min_instances", a.cfg.MinInstances),
		slog.Int("max_instances", a.cfg.MaxInstances))

	for {
		select {
		case <-ctx.Done():
			a.logger.InfoContext(context.Background(), "scaling advisor stopped",
				logger.Component("scaling"))
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.Check(ctx); err != nil && ctx.Err() == nil {
				a.logger.ErrorContext(ctx, "scaling check failed, maintaining",
					logger.Component("scaling"),
					logger.Error(err))
			}
		}
	}
}

// Stop cancels the loop and waits for it to exit.
func (a *Advisor) Stop() error {
	a.lifecycle.Lock()
	cancel, done := a.cancel, a.done
	a.lifecycle.Unlock()

	if cancel == nil {
		return ErrAdvisorNotStarted
	}
	cancel()
	<-done
	return nil
}

// Run provides errgroup compatibility. Cancellation is a clean shutdown.
func (a *Advisor) Run(ctx context.Context) func() error {
	return func() error {
		err := a.Start(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}
