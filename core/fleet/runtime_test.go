package fleet_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fleet/core/backplane"
	"github.com/dmitrymomot/fleet/core/config"
	"github.com/dmitrymomot/fleet/core/fleet"
	"github.com/dmitrymomot/fleet/core/metrics"
	"github.com/dmitrymomot/fleet/core/session"
	"github.com/dmitrymomot/fleet/core/sessionrelay"
)

const secret = "fleet-runtime-test-secret-0123456789"

func testConfig() fleet.Config {
	cfg := fleet.DefaultConfig()
	cfg.Cookie.Secrets = secret
	cfg.Metrics.Interval = config.Seconds(20 * time.Millisecond)
	cfg.Scaling.CheckInterval = config.Seconds(20 * time.Millisecond)
	cfg.Redis.RetryAttempts = 1
	cfg.Redis.ConnectTimeout = time.Second
	return cfg
}

var steady = metrics.SamplerFunc(func(context.Context) (metrics.Sample, error) {
	return metrics.Sample{CPU: 0.5, Memory: 0.5}, nil
})

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, testConfig().Validate())

	cfg := testConfig()
	cfg.Cookie.Secrets = ""
	assert.ErrorIs(t, cfg.Validate(), fleet.ErrInvalidConfig)

	cfg = testConfig()
	cfg.Cookie.Secrets = "short"
	err := cfg.Validate()
	assert.ErrorIs(t, err, fleet.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "at least 32")

	cfg = testConfig()
	cfg.Scaling.MaxInstances = 0
	assert.ErrorIs(t, cfg.Validate(), fleet.ErrInvalidConfig)

	cfg = testConfig()
	cfg.Metrics.TTL = cfg.Metrics.Interval
	assert.ErrorIs(t, cfg.Validate(), fleet.ErrInvalidConfig)
}

func TestConfig_FromEnvironment(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	t.Setenv("SESSION_SECRET", secret)
	t.Setenv("INSTANCE_ID", "node-env")
	t.Setenv("SESSION_TIMEOUT", "120")
	t.Setenv("MAX_INSTANCES", "4")
	t.Setenv("FALLBACK_TO_MEMORY", "true")

	var cfg fleet.Config
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "node-env", cfg.InstanceID)
	assert.Equal(t, 2*time.Minute, cfg.Session.Timeout.Duration())
	assert.Equal(t, 4, cfg.Scaling.MaxInstances)
	assert.True(t, cfg.FallbackToMemory)
	assert.Equal(t, "fleet:", cfg.BackplanePrefix)
	assert.Equal(t, "sid", cfg.Session.CookieName)
	assert.Equal(t, 10, cfg.Metrics.SampleSize)
	assert.NoError(t, cfg.Validate())
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Cookie.Secrets = ""
	_, err := fleet.New(context.Background(), cfg, fleet.WithBackplane(backplane.NewMemory()))
	assert.ErrorIs(t, err, fleet.ErrInvalidConfig)
}

func TestNew_RedisUnreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.Redis.ConnectionURL = "redis://" + addr

	_, err := fleet.New(context.Background(), cfg)
	assert.ErrorIs(t, err, backplane.ErrConnectivity)

	cfg.FallbackToMemory = true
	rt, err := fleet.New(context.Background(), cfg, fleet.WithSampler(steady))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	assert.True(t, rt.UsingMemoryBackplane())
	assert.NoError(t, rt.Healthcheck(context.Background()))
}

func TestRuntime_GeneratesInstanceID(t *testing.T) {
	t.Parallel()

	rt, err := fleet.New(context.Background(), testConfig(), fleet.WithBackplane(backplane.NewMemory()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	assert.Len(t, rt.InstanceID(), 36)
	assert.Len(t, rt.Collectors(), 2)
}

func TestRuntime_RunPublishesPrefixedMetrics(t *testing.T) {
	t.Parallel()

	mem := backplane.NewMemory()
	cfg := testConfig()
	cfg.InstanceID = "node-a"

	rt, err := fleet.New(context.Background(), cfg, fleet.WithBackplane(mem), fleet.WithSampler(steady))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx)() }()

	require.Eventually(t, func() bool {
		_, err := mem.Get(context.Background(), "fleet:metrics:node-a")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return rt.Advisor().Latest().CurrentNodes == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runtime did not stop")
	}
	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())
}

func TestRuntime_SharedSessionsOverRedis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	start := func(id string) *fleet.Runtime {
		cfg := testConfig()
		cfg.Redis.ConnectionURL = "redis://" + mr.Addr()
		cfg.InstanceID = id

		rt, err := fleet.New(context.Background(), cfg, fleet.WithSampler(steady))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		go func() { _ = rt.Run(ctx)() }()
		t.Cleanup(func() {
			cancel()
			_ = rt.Close()
		})

		require.Eventually(t, func() bool { return rt.Relay().Stats().IsRunning }, 2*time.Second, 10*time.Millisecond)
		return rt
	}

	a := start("node-a")
	b := start("node-b")

	var seenByA, seenByB atomic.Int64
	a.Relay().On(sessionrelay.EventSessionInvalidated, func(context.Context, sessionrelay.Message) error {
		seenByA.Add(1)
		return nil
	})
	b.Relay().On(sessionrelay.EventSessionInvalidated, func(_ context.Context, msg sessionrelay.Message) error {
		if msg.InstanceID == "node-a" {
			seenByB.Add(1)
		}
		return nil
	})

	// Log in through A.
	login := httptest.NewRecorder()
	s, err := a.Sessions().Create(login, httptest.NewRequest(http.MethodPost, "/login", nil),
		session.User{ID: "user-1"}, session.CreateOptions{})
	require.NoError(t, err)
	assert.True(t, mr.Exists("fleet:sess:"+s.ID))

	// The same cookie validates on B.
	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range login.Result().Cookies() {
		r.AddCookie(c)
	}
	got, err := b.Sessions().Validate(httptest.NewRecorder(), r)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	// Invalidation on A reaches B but not A itself.
	ok, err := a.Sessions().Invalidate(context.Background(), s.ID)
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool { return seenByB.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, seenByA.Load())

	_, err = b.Sessions().Validate(httptest.NewRecorder(), r)
	assert.ErrorIs(t, err, session.ErrSessionExpired)
}
