package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/fleet/core/backplane"
	"github.com/dmitrymomot/fleet/core/logger"
)

const subscriptionBuffer = 100

// Backplane implements backplane.Backplane on top of Redis.
// It owns two clients: cmd for request/response commands and sub dedicated to
// subscriptions, since a subscribed connection cannot issue ordinary commands.
type Backplane struct {
	cmd    *redis.Client
	sub    *redis.Client
	cfg    Config
	logger *slog.Logger
}

// Option configures a Backplane.
type Option func(*Backplane)

// WithLogger sets the logger used for reconnect and subscription diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backplane) {
		if l != nil {
			b.logger = l
		}
	}
}

// Connect parses the connection URL, builds both clients and verifies
// connectivity with bounded ping retries. Returns an error wrapping
// backplane.ErrConnectivity when Redis does not answer.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Backplane, error) {
	if cfg.ConnectionURL == "" {
		return nil, ErrEmptyConnectionURL
	}
	cfg = cfg.withDefaults()

	cmdOpts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	subOpts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	b := &Backplane{
		cmd:    redis.NewClient(cmdOpts),
		sub:    redis.NewClient(subOpts),
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := b.waitReady(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}

	return b, nil
}

func clientOptions(cfg Config) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisConnString, err)
	}
	opts.MinRetryBackoff = backplane.RetryDelay(1)
	opts.MaxRetryBackoff = backplane.RetryDelay(cfg.MaxReconnectAttempts)
	return opts, nil
}

func (b *Backplane) waitReady(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= b.cfg.RetryAttempts; attempt++ {
		lastErr = b.cmd.Ping(ctx).Err()
		if lastErr == nil {
			return nil
		}

		b.logger.WarnContext(ctx, "redis not ready",
			logger.Component("redis"),
			logger.RetryCount(attempt),
			logger.Error(lastErr))

		if attempt == b.cfg.RetryAttempts {
			break
		}
		if err := backplane.Sleep(ctx, backplane.RetryDelay(attempt)); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}
	}
	return errors.Join(backplane.ErrConnectivity, ErrRedisNotReady, lastErr)
}

// Client returns the command client.
func (b *Backplane) Client() *redis.Client { return b.cmd }

// Get implements backplane.Store.
func (b *Backplane) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := b.cmd.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, backplane.ErrNotFound
	}
	if err != nil {
		return nil, connectivity(err)
	}
	return v, nil
}

// Set implements backplane.Store.
func (b *Backplane) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := b.cmd.Set(ctx, key, value, ttl).Err(); err != nil {
		return connectivity(err)
	}
	return nil
}

// Replace implements backplane.Store with SET XX, so an absent key is never recreated.
func (b *Backplane) Replace(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	ok, err := b.cmd.SetXX(ctx, key, value, ttl).Result()
	if err != nil {
		return connectivity(err)
	}
	if !ok {
		return backplane.ErrNotFound
	}
	return nil
}

// Delete implements backplane.Store.
func (b *Backplane) Delete(ctx context.Context, key string) error {
	if err := b.cmd.Del(ctx, key).Err(); err != nil {
		return connectivity(err)
	}
	return nil
}

// Keys implements backplane.Store using SCAN so large keyspaces never block the server.
func (b *Backplane) Keys(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(prefix) + "*"
	seen := make(map[string]struct{})
	keys := make([]string, 0)

	var cursor uint64
	for {
		batch, next, err := b.cmd.Scan(ctx, cursor, match, int64(b.cfg.ScanBatchSize)).Result()
		if err != nil {
			return nil, connectivity(err)
		}
		for _, k := range batch {
			// SCAN may return a key more than once.
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// Publish implements backplane.PubSub.
func (b *Backplane) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.cmd.Publish(ctx, channel, payload).Err(); err != nil {
		return connectivity(err)
	}
	return nil
}

// Subscribe implements backplane.PubSub on the dedicated subscription client.
func (b *Backplane) Subscribe(ctx context.Context, channels ...string) (backplane.Subscription, error) {
	if len(channels) == 0 {
		return nil, errors.New("redis: no channels to subscribe")
	}

	ps := b.sub.Subscribe(ctx, channels...)
	// Wait for the subscription confirmation so failures surface here.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, connectivity(err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	s := &subscription{
		ps:          ps,
		ch:          make(chan backplane.Message, subscriptionBuffer),
		cancel:      cancel,
		maxAttempts: b.cfg.MaxReconnectAttempts,
		logger:      b.logger,
		done:        make(chan struct{}),
	}
	go s.loop(subCtx)

	return s, nil
}

// Ping implements backplane.Backplane.
func (b *Backplane) Ping(ctx context.Context) error {
	if err := b.cmd.Ping(ctx).Err(); err != nil {
		return connectivity(err)
	}
	return nil
}

// Close closes both connections.
func (b *Backplane) Close() error {
	return errors.Join(b.cmd.Close(), b.sub.Close())
}

// Healthcheck returns a function that pings Redis.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

type subscription struct {
	ps          *redis.PubSub
	ch          chan backplane.Message
	cancel      context.CancelFunc
	maxAttempts int
	logger      *slog.Logger

	mu      sync.Mutex
	err     error
	closing bool
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) Messages() <-chan backplane.Message { return s.ch }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the receive loop and releases the subscription connection.
func (s *subscription) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()

		s.cancel()
		// Closing the PubSub unblocks a pending receive.
		_ = s.ps.Close()
		<-s.done
	})
	return nil
}

func (s *subscription) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *subscription) loop(ctx context.Context) {
	defer close(s.done)
	defer close(s.ch)
	defer func() {
		if !s.isClosing() {
			_ = s.ps.Close()
		}
	}()

	attempt := 0
	for {
		msg, err := s.ps.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || s.isClosing() {
				return
			}

			attempt++
			if attempt > s.maxAttempts {
				s.mu.Lock()
				s.err = errors.Join(backplane.ErrConnectivity, ErrSubscriptionLost, err)
				s.mu.Unlock()
				s.logger.ErrorContext(ctx, "redis subscription lost",
					logger.Component("redis"),
					logger.RetryCount(attempt-1),
					logger.Error(err))
				return
			}

			s.logger.WarnContext(ctx, "redis subscription receive failed, retrying",
				logger.Component("redis"),
				logger.RetryCount(attempt),
				logger.Error(err))

			// The next ReceiveMessage call reconnects and resubscribes.
			if backplane.Sleep(ctx, backplane.RetryDelay(attempt)) != nil {
				return
			}
			continue
		}

		attempt = 0
		select {
		case s.ch <- backplane.Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
		case <-ctx.Done():
			return
		}
	}
}

func connectivity(err error) error {
	return errors.Join(backplane.ErrConnectivity, err)
}

// escapeGlob escapes Redis MATCH metacharacters so a prefix is matched literally.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
