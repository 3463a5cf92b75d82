package fleet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/fleet/core/backplane"
	"github.com/dmitrymomot/fleet/core/cookie"
	"github.com/dmitrymomot/fleet/core/logger"
	"github.com/dmitrymomot/fleet/core/metrics"
	"github.com/dmitrymomot/fleet/core/notify"
	"github.com/dmitrymomot/fleet/core/scaling"
	"github.com/dmitrymomot/fleet/core/session"
	"github.com/dmitrymomot/fleet/core/sessionrelay"
	"github.com/dmitrymomot/fleet/integration/database/redis"
)

// Runtime is the one coordination object of a process. It owns the
// backplane connections and every loop that uses them.
type Runtime struct {
	cfg        Config
	instanceID string
	logger     *slog.Logger

	raw    backplane.Backplane
	bp     backplane.Backplane
	memory *backplane.Memory

	notifier  *notify.Bus
	publisher *sessionrelay.Publisher
	sessions  *session.Coordinator
	relay     *sessionrelay.Relay
	collector *metrics.Collector
	advisor   *scaling.Advisor

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Runtime.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	backplane backplane.Backplane
	sampler   metrics.Sampler
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBackplane uses b instead of connecting to Redis. The runtime takes ownership and closes it.
func WithBackplane(b backplane.Backplane) Option {
	return func(o *options) {
		if b != nil {
			o.backplane = b
		}
	}
}

// WithSampler replaces the host sampler of the metrics collector.
func WithSampler(s metrics.Sampler) Option {
	return func(o *options) {
		if s != nil {
			o.sampler = s
		}
	}
}

// New validates cfg, connects the backplane and builds every component.
// When Redis is unreachable and FALLBACK_TO_MEMORY is set, a process-local
// memory backplane is used instead; it is not shared between instances.
func New(ctx context.Context, cfg Config, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Runtime{
		cfg:        cfg,
		instanceID: cfg.InstanceID,
		logger:     o.logger,
	}
	if r.instanceID == "" {
		r.instanceID = uuid.NewString()
	}

	raw, err := r.connect(ctx, o.backplane)
	if err != nil {
		return nil, err
	}
	r.raw = raw
	r.bp = backplane.WithPrefix(raw, cfg.BackplanePrefix)

	cookies, err := cookie.NewFromConfig(cfg.Cookie)
	if err != nil {
		_ = raw.Close()
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	r.notifier = notify.New(notify.WithLogger(r.logger))
	r.publisher = sessionrelay.NewPublisher(r.bp, r.instanceID)
	r.sessions = session.New(r.bp, cookies, cfg.Session,
		session.WithPublisher(r.publisher),
		session.WithLogger(r.logger))
	r.relay = sessionrelay.New(r.bp, r.instanceID,
		sessionrelay.WithPublisher(r.publisher),
		sessionrelay.WithLogger(r.logger))

	collectorOpts := []metrics.Option{metrics.WithLogger(r.logger)}
	if o.sampler != nil {
		collectorOpts = append(collectorOpts, metrics.WithSampler(o.sampler))
	}
	r.collector = metrics.NewCollector(r.bp, r.instanceID, cfg.Metrics, collectorOpts...)
	r.collector.Subscribe(r.notifier)

	r.advisor = scaling.NewAdvisor(r.bp, cfg.Scaling,
		scaling.WithNotifier(r.notifier),
		scaling.WithWindow(r.collector),
		scaling.WithLogger(r.logger))

	r.logRemoteEvents()

	r.logger.InfoContext(ctx, "fleet runtime ready",
		logger.Component("fleet"),
		logger.InstanceID(r.instanceID),
		slog.String("app", cfg.AppName),
		slog.String("env", cfg.AppEnv),
		slog.Bool("memory_backplane", r.memory != nil))

	return r, nil
}

func (r *Runtime) connect(ctx context.Context, injected backplane.Backplane) (backplane.Backplane, error) {
	if injected != nil {
		if m, ok := injected.(*backplane.Memory); ok {
			r.memory = m
		}
		return injected, nil
	}

	rb, err := redis.Connect(ctx, r.cfg.Redis, redis.WithLogger(r.logger))
	if err == nil {
		return rb, nil
	}
	if !r.cfg.FallbackToMemory {
		return nil, err
	}

	r.logger.WarnContext(ctx, "redis unavailable, falling back to in-memory backplane; sessions and metrics are not shared across instances",
		logger.Component("fleet"),
		logger.Error(err))

	r.memory = backplane.NewMemory(
		backplane.WithCleanupInterval(r.cfg.MemoryCleanupInterval),
		backplane.WithMemoryLogger(r.logger))
	return r.memory, nil
}

// logRemoteEvents records peer session events at debug level.
func (r *Runtime) logRemoteEvents() {
	for _, ch := range sessionrelay.Channels() {
		event, _ := sessionrelay.EventFor(ch)
		r.relay.On(event, func(ctx context.Context, msg sessionrelay.Message) error {
			r.logger.DebugContext(ctx, "remote session event",
				logger.Component("fleet"),
				logger.Event(event),
				slog.String("from", msg.InstanceID),
				logger.SessionID(msg.SessionID),
				logger.UserID(msg.UserID))
			return nil
		})
	}
}

// Run returns a function for errgroup that runs the relay, the metrics
// collector, the scaling advisor and, for the memory backplane, its janitor.
// A lost relay subscription ends Run with the connectivity error.
func (r *Runtime) Run(ctx context.Context) func() error {
	return func() error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(r.relay.Run(gctx))
		g.Go(r.collector.Run(gctx))
		g.Go(r.advisor.Run(gctx))
		if r.memory != nil {
			g.Go(r.memory.Run(gctx))
		}
		return g.Wait()
	}
}

// Close stops the relay and closes the backplane, including the subscription connection.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		if err := r.relay.Stop(); err != nil && !errors.Is(err, sessionrelay.ErrRelayNotStarted) {
			r.closeErr = err
		}
		r.closeErr = errors.Join(r.closeErr, r.raw.Close())
	})
	return r.closeErr
}

// Healthcheck pings the backplane.
func (r *Runtime) Healthcheck(ctx context.Context) error {
	return r.bp.Ping(ctx)
}

// Collectors returns the prometheus collectors of the runtime.
func (r *Runtime) Collectors() []prometheus.Collector {
	return []prometheus.Collector{metrics.NewExporter(r.collector), r.advisor}
}

func (r *Runtime) Config() Config                 { return r.cfg }
func (r *Runtime) InstanceID() string             { return r.instanceID }
func (r *Runtime) Backplane() backplane.Backplane { return r.bp }
func (r *Runtime) Notifier() *notify.Bus          { return r.notifier }
func (r *Runtime) Sessions() *session.Coordinator { return r.sessions }
func (r *Runtime) Relay() *sessionrelay.Relay     { return r.relay }
func (r *Runtime) Collector() *metrics.Collector  { return r.collector }
func (r *Runtime) Advisor() *scaling.Advisor      { return r.advisor }
func (r *Runtime) UsingMemoryBackplane() bool     { return r.memory != nil }
