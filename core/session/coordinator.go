package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/fleet/core/backplane"
	"github.com/dmitrymomot/fleet/core/cookie"
	"github.com/dmitrymomot/fleet/core/logger"
	"github.com/dmitrymomot/fleet/pkg/clientip"
	"github.com/dmitrymomot/fleet/pkg/fingerprint"
)

// KeyPrefix namespaces session keys in the backplane.
const KeyPrefix = "sess:"

// EventPublisher announces session lifecycle changes to other instances.
type EventPublisher interface {
	SessionCreated(ctx context.Context, sessionID, userID string) error
	SessionDestroyed(ctx context.Context, sessionID, userID string) error
	SessionInvalidated(ctx context.Context, sessionID, userID string) error
	UserSessionsInvalidated(ctx context.Context, userID, exceptSessionID string, count int) error
}

type nopPublisher struct{}

func (nopPublisher) SessionCreated(context.Context, string, string) error     { return nil }
func (nopPublisher) SessionDestroyed(context.Context, string, string) error   { return nil }
func (nopPublisher) SessionInvalidated(context.Context, string, string) error { return nil }
func (nopPublisher) UserSessionsInvalidated(context.Context, string, string, int) error {
	return nil
}

// Coordinator creates, validates and destroys sessions stored in the backplane.
// It holds no session state of its own, so any instance can serve any session.
type Coordinator struct {
	store     backplane.Store
	cookies   *cookie.Manager
	cfg       Config
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPublisher sets the cross-instance event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Coordinator.
func New(store backplane.Store, cookies *cookie.Manager, cfg Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		cookies:   cookies,
		cfg:       cfg.withDefaults(),
		publisher: nopPublisher{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Coordinator) Config() Config { return c.cfg }

// Create starts a new session for user. Any session id already bound to the
// request is deleted first so a pre-set id can never become authenticated.
func (c *Coordinator) Create(w http.ResponseWriter, r *http.Request, user User, opts CreateOptions) (*Session, error) {
	ctx := r.Context()
	if user.ID == "" {
		return nil, ErrMissingUser
	}

	if oldID, err := c.cookies.GetSigned(r, c.cfg.CookieName); err == nil && oldID != "" {
		c.discard(ctx, oldID)
	}

	id, err := generateID()
	if err != nil {
		return nil, errors.Join(ErrTokenGeneration, err)
	}

	now := c.now()
	timeout := c.cfg.effectiveTimeout(opts.RememberMe)
	s := &Session{
		ID:           id,
		UserID:       user.ID,
		Role:         user.Role,
		CreatedAt:    now,
		LastActivity: now,
		LoginTime:    now,
		MaxAge:       int(timeout / time.Second),
		RememberMe:   opts.RememberMe,
		Fingerprint:  fingerprint.FromRequest(r),
		IP:           clientip.GetIP(r),
		UserAgent:    r.UserAgent(),
		MFAVerified:  opts.MFAVerified,
		Metadata:     opts.Metadata,
	}

	if err := c.save(ctx, s, min(timeout, c.cfg.MaxAge.Duration())); err != nil {
		return nil, err
	}
	if err := c.cookies.SetSigned(w, c.cfg.CookieName, id, cookie.WithMaxAge(s.MaxAge)); err != nil {
		return nil, fmt.Errorf("set session cookie: %w", err)
	}

	if err := c.publisher.SessionCreated(ctx, s.ID, s.UserID); err != nil {
		c.logger.WarnContext(ctx, "failed to publish session created",
			logger.Component("session"),
			logger.SessionID(s.ID),
			logger.Error(err))
	}

	c.logger.InfoContext(ctx, "session created",
		logger.Component("session"),
		logger.SessionID(s.ID),
		logger.UserID(s.UserID))

	return s, nil
}

// Validate loads the session bound to the request, runs the security and
// expiry checks and refreshes LastActivity. Sessions failing a check are
// destroyed before the error is returned.
func (c *Coordinator) Validate(w http.ResponseWriter, r *http.Request) (*Session, error) {
	ctx := r.Context()

	id, err := c.cookies.GetSigned(r, c.cfg.CookieName)
	if err != nil {
		return nil, errors.Join(ErrNoSession, err)
	}

	s, err := c.load(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		c.cookies.Delete(w, c.cfg.CookieName)
		return nil, ErrSessionExpired
	}
	if errors.Is(err, errUndecodable) {
		c.logger.WarnContext(ctx, "undecodable session, destroying it",
			logger.Component("session"),
			logger.SessionID(id),
			logger.Error(err))
		c.destroy(ctx, w, &Session{ID: id})
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, err
	}

	if fp := fingerprint.FromRequest(r); fp != s.Fingerprint {
		if c.cfg.Strict {
			c.logger.WarnContext(ctx, "session fingerprint mismatch, destroying session",
				logger.Component("session"),
				logger.SessionID(s.ID),
				logger.UserID(s.UserID),
				logger.ClientIP(clientip.GetIP(r)),
				logger.UserAgent(r.UserAgent()))
			c.destroy(ctx, w, s)
			return nil, ErrSessionInvalid
		}
		c.logger.WarnContext(ctx, "session fingerprint mismatch",
			logger.Component("session"),
			logger.SessionID(s.ID),
			logger.UserID(s.UserID),
			logger.ClientIP(clientip.GetIP(r)),
			logger.UserAgent(r.UserAgent()))
	}

	now := c.now()
	if s.Age(now) > c.cfg.MaxAge.Duration() || s.Idle(now) > c.cfg.IdleTimeout.Duration() {
		c.logger.InfoContext(ctx, "session expired",
			logger.Component("session"),
			logger.SessionID(s.ID),
			logger.Duration(s.Age(now)))
		c.destroy(ctx, w, s)
		return nil, ErrSessionExpired
	}

	s.LastActivity = now
	if err := c.touch(ctx, w, s, c.remainingTTL(s.Timeout(), s, now)); err != nil {
		return nil, err
	}

	return s, nil
}

// Destroy ends the session bound to the request. The cookie is cleared even
// when the backplane cannot be reached.
func (c *Coordinator) Destroy(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	defer c.cookies.Delete(w, c.cfg.CookieName)

	id, err := c.cookies.GetSigned(r, c.cfg.CookieName)
	if err != nil {
		return nil
	}

	var userID string
	if s, err := c.load(ctx, id); err == nil {
		userID = s.UserID
	}

	if err := c.publisher.SessionDestroyed(ctx, id, userID); err != nil {
		c.logger.WarnContext(ctx, "failed to publish session destroyed",
			logger.Component("session"),
			logger.SessionID(id),
			logger.Error(err))
	}
	if err := c.store.Delete(ctx, key(id)); err != nil {
		return errors.Join(ErrDeleteSession, err)
	}
	return nil
}

// Invalidate deletes a session by id. It returns false without error when the
// session does not exist, so repeated calls are safe.
func (c *Coordinator) Invalidate(ctx context.Context, id string) (bool, error) {
	s, err := c.load(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := c.store.Delete(ctx, key(id)); err != nil {
		return false, errors.Join(ErrDeleteSession, err)
	}
	if err := c.publisher.SessionInvalidated(ctx, id, s.UserID); err != nil {
		c.logger.WarnContext(ctx, "failed to publish session invalidated",
			logger.Component("session"),
			logger.SessionID(id),
			logger.Error(err))
	}
	return true, nil
}

// InvalidateUser deletes every session of userID except exceptID and
// publishes one summary event. Returns the number of sessions deleted.
func (c *Coordinator) InvalidateUser(ctx context.Context, userID, exceptID string) (int, error) {
	keys, err := c.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return 0, err
	}

	count := 0
	var errs []error
	for _, k := range keys {
		id := strings.TrimPrefix(k, KeyPrefix)
		if id == exceptID {
			continue
		}
		s, err := c.load(ctx, id)
		if err != nil {
			// Expired between SCAN and GET, or undecodable.
			if !errors.Is(err, ErrSessionNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		if s.UserID != userID {
			continue
		}
		if err := c.store.Delete(ctx, k); err != nil {
			errs = append(errs, errors.Join(ErrDeleteSession, err))
			continue
		}
		count++
	}

	if err := c.publisher.UserSessionsInvalidated(ctx, userID, exceptID, count); err != nil {
		c.logger.WarnContext(ctx, "failed to publish user sessions invalidated",
			logger.Component("session"),
			logger.UserID(userID),
			logger.Error(err))
	}

	c.logger.InfoContext(ctx, "user sessions invalidated",
		logger.Component("session"),
		logger.UserID(userID),
		logger.Count("count", count),
		logger.Errors(errs...))

	return count, errors.Join(errs...)
}

// Extend validates the request session and sets its effective timeout to
// seconds, rewriting both the backplane TTL and the cookie max-age.
func (c *Coordinator) Extend(w http.ResponseWriter, r *http.Request, seconds int) (*Session, error) {
	if seconds <= 0 {
		return nil, fmt.Errorf("extend session: non-positive duration %d", seconds)
	}

	s, err := c.Validate(w, r)
	if err != nil {
		return nil, err
	}

	s.MaxAge = seconds
	ttl := c.remainingTTL(s.Timeout(), s, c.now())
	if err := c.touch(r.Context(), w, s, ttl); err != nil {
		return nil, err
	}
	if err := c.cookies.SetSigned(w, c.cfg.CookieName, s.ID, cookie.WithMaxAge(seconds)); err != nil {
		return nil, fmt.Errorf("set session cookie: %w", err)
	}
	return s, nil
}

// Get reads a session by id without validating it.
func (c *Coordinator) Get(ctx context.Context, id string) (*Session, error) {
	return c.load(ctx, id)
}

func (c *Coordinator) destroy(ctx context.Context, w http.ResponseWriter, s *Session) {
	c.cookies.Delete(w, c.cfg.CookieName)

	if err := c.publisher.SessionDestroyed(ctx, s.ID, s.UserID); err != nil {
		c.logger.WarnContext(ctx, "failed to publish session destroyed",
			logger.Component("session"),
			logger.SessionID(s.ID),
			logger.Error(err))
	}
	if err := c.store.Delete(ctx, key(s.ID)); err != nil {
		c.logger.ErrorContext(ctx, "failed to delete session",
			logger.Component("session"),
			logger.SessionID(s.ID),
			logger.Error(err))
	}
}

// remainingTTL caps ttl so the key never outlives the max session age.
func (c *Coordinator) remainingTTL(ttl time.Duration, s *Session, now time.Time) time.Duration {
	ttl = min(ttl, c.cfg.MaxAge.Duration()-s.Age(now))
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

// discard deletes a session that is being replaced by a new login.
func (c *Coordinator) discard(ctx context.Context, id string) {
	var userID string
	if old, err := c.load(ctx, id); err == nil {
		userID = old.UserID
	}

	if err := c.store.Delete(ctx, key(id)); err != nil {
		c.logger.WarnContext(ctx, "failed to delete previous session",
			logger.Component("session"),
			logger.SessionID(id),
			logger.Error(err))
		return
	}
	if err := c.publisher.SessionDestroyed(ctx, id, userID); err != nil {
		c.logger.WarnContext(ctx, "failed to publish session destroyed",
			logger.Component("session"),
			logger.SessionID(id),
			logger.Error(err))
	}
}

func (c *Coordinator) load(ctx context.Context, id string) (*Session, error) {
	data, err := c.store.Get(ctx, key(id))
	if errors.Is(err, backplane.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Join(errUndecodable, err)
	}
	return &s, nil
}

func (c *Coordinator) save(ctx context.Context, s *Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Join(ErrSaveSession, err)
	}
	if err := c.store.Set(ctx, key(s.ID), data, ttl); err != nil {
		return errors.Join(ErrSaveSession, err)
	}
	return nil
}

// touch rewrites an existing session. A session deleted by another instance
// since it was loaded stays deleted and the request gets ErrSessionExpired.
func (c *Coordinator) touch(ctx context.Context, w http.ResponseWriter, s *Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Join(ErrSaveSession, err)
	}
	err = c.store.Replace(ctx, key(s.ID), data, ttl)
	if errors.Is(err, backplane.ErrNotFound) {
		c.cookies.Delete(w, c.cfg.CookieName)
		return ErrSessionExpired
	}
	if err != nil {
		return errors.Join(ErrSaveSession, err)
	}
	return nil
}

func key(id string) string { return KeyPrefix + id }
