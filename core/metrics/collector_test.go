package metrics_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fleet/core/backplane"
	"github.com/dmitrymomot/fleet/core/config"
	"github.com/dmitrymomot/fleet/core/metrics"
	"github.com/dmitrymomot/fleet/core/notify"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scripted returns the queued samples in order, then keeps repeating the last one.
type scripted struct {
	mu      sync.Mutex
	samples []metrics.Sample
	err     error
}

func (s *scripted) Sample(context.Context) (metrics.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return metrics.Sample{}, s.err
	}
	out := s.samples[0]
	if len(s.samples) > 1 {
		s.samples = s.samples[1:]
	}
	return out, nil
}

func newCollector(t *testing.T, cfg metrics.Config, sampler metrics.Sampler) (*metrics.Collector, *backplane.Memory, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	bp := backplane.NewMemory(backplane.WithClock(clock.Now))
	t.Cleanup(func() { _ = bp.Close() })

	c := metrics.NewCollector(bp, "node-1", cfg,
		metrics.WithSampler(sampler),
		metrics.WithClock(clock.Now))
	return c, bp, clock
}

func TestCollector_WindowEviction(t *testing.T) {
	t.Parallel()

	cfg := metrics.DefaultConfig()
	cfg.SampleSize = 3
	s := &scripted{samples: []metrics.Sample{{CPU: 0.1}, {CPU: 0.2}, {CPU: 0.3}, {CPU: 0.4}, {CPU: 0.5}}}
	c, _, _ := newCollector(t, cfg, s)

	for range 5 {
		require.NoError(t, c.Collect(context.Background()))
	}

	w := c.Window()
	require.Len(t, w, 3)
	assert.InDelta(t, 0.3, w[0].CPU, 1e-9)
	assert.InDelta(t, 0.5, w[2].CPU, 1e-9)
}

func TestCollector_ClampsSamples(t *testing.T) {
	t.Parallel()

	c, _, _ := newCollector(t, metrics.DefaultConfig(), &scripted{samples: []metrics.Sample{{CPU: 2.5, Memory: -1}}})
	require.NoError(t, c.Collect(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, 1.0, snap.CPU)
	assert.Equal(t, 0.0, snap.Memory)
}

func TestCollector_RollingResponseTime(t *testing.T) {
	t.Parallel()

	c, _, _ := newCollector(t, metrics.DefaultConfig(), &scripted{samples: []metrics.Sample{{}}})

	c.TrackRequestStart()
	c.TrackRequestEnd(100 * time.Millisecond)
	c.TrackRequestStart()
	c.TrackRequestEnd(200 * time.Millisecond)

	require.NoError(t, c.Collect(context.Background()))
	assert.InDelta(t, 110.0, c.Snapshot().ResponseTime, 1e-9)
}

func TestCollector_RequestCounters(t *testing.T) {
	t.Parallel()

	c, _, clock := newCollector(t, metrics.DefaultConfig(), &scripted{samples: []metrics.Sample{{}}})
	ctx := context.Background()

	c.TrackRequestStart()
	c.TrackRequestStart()
	c.TrackRequestStart()
	c.TrackRequestEnd(time.Millisecond)

	require.NoError(t, c.Collect(ctx))
	snap := c.Snapshot()
	assert.EqualValues(t, 3, snap.RequestsPerMinute)
	assert.EqualValues(t, 2, snap.Connections)

	// a new minute window starts from zero
	clock.Advance(61 * time.Second)
	require.NoError(t, c.Collect(ctx))
	assert.EqualValues(t, 0, c.Snapshot().RequestsPerMinute)
	assert.EqualValues(t, 2, c.Snapshot().Connections)

	// connections never go negative
	for range 5 {
		c.TrackRequestEnd(time.Millisecond)
	}
	require.NoError(t, c.Collect(ctx))
	assert.EqualValues(t, 0, c.Snapshot().Connections)
}

func TestCollector_PublishesWithTTL(t *testing.T) {
	t.Parallel()

	cfg := metrics.DefaultConfig()
	cfg.TTL = config.Seconds(60 * time.Second)
	c, bp, clock := newCollector(t, cfg, &scripted{samples: []metrics.Sample{{CPU: 0.42, Memory: 0.5}}})
	ctx := context.Background()

	require.NoError(t, c.Collect(ctx))

	data, err := bp.Get(ctx, "metrics:node-1")
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, field := range []string{"nodeId", "cpu", "memory", "requestsPerMinute", "responseTime", "connections", "timestamp"} {
		assert.Contains(t, raw, field)
	}
	assert.Equal(t, "node-1", raw["nodeId"])
	assert.EqualValues(t, clock.Now().UnixMilli(), raw["timestamp"])

	published, failed := c.Stats()
	assert.EqualValues(t, 1, published)
	assert.EqualValues(t, 0, failed)

	clock.Advance(61 * time.Second)
	_, err = bp.Get(ctx, "metrics:node-1")
	assert.ErrorIs(t, err, backplane.ErrNotFound, "a silent node disappears")
}

func TestCollector_NonPublisher(t *testing.T) {
	t.Parallel()

	cfg := metrics.DefaultConfig()
	cfg.Publisher = false
	c, bp, _ := newCollector(t, cfg, &scripted{samples: []metrics.Sample{{CPU: 0.3}}})

	require.NoError(t, c.Collect(context.Background()))
	assert.Len(t, c.Window(), 1)
	assert.Equal(t, 0, bp.Len())
}

func TestCollector_SampleError(t *testing.T) {
	t.Parallel()

	c, bp, _ := newCollector(t, metrics.DefaultConfig(), &scripted{err: errors.New("procfs unavailable")})

	err := c.Collect(context.Background())
	assert.ErrorIs(t, err, metrics.ErrSampleFailed)
	assert.Empty(t, c.Window())
	assert.Equal(t, 0, bp.Len())
}

func TestCollector_PublishError(t *testing.T) {
	t.Parallel()

	c, bp, _ := newCollector(t, metrics.DefaultConfig(), &scripted{samples: []metrics.Sample{{}}})
	require.NoError(t, bp.Close())

	err := c.Collect(context.Background())
	assert.ErrorIs(t, err, metrics.ErrPublishFailed)
	_, failed := c.Stats()
	assert.EqualValues(t, 1, failed)
}

func TestCollector_SubscribeToNotifier(t *testing.T) {
	t.Parallel()

	c, _, _ := newCollector(t, metrics.DefaultConfig(), &scripted{samples: []metrics.Sample{{}}})
	bus := notify.New()
	off := c.Subscribe(bus)

	ctx := context.Background()
	bus.Emit(ctx, notify.EventRequestStart, nil)
	bus.Emit(ctx, notify.EventRequestEnd, notify.RequestEnd{Duration: 40 * time.Millisecond, Status: 200})
	require.NoError(t, c.Collect(ctx))

	snap := c.Snapshot()
	assert.EqualValues(t, 1, snap.RequestsPerMinute)
	assert.InDelta(t, 40.0, snap.ResponseTime, 1e-9)

	off()
	assert.Equal(t, 0, bus.Len(notify.EventRequestStart))
	assert.Equal(t, 0, bus.Len(notify.EventRequestEnd))
}

func TestCollector_Lifecycle(t *testing.T) {
	t.Parallel()

	bp := backplane.NewMemory()
	t.Cleanup(func() { _ = bp.Close() })

	cfg := metrics.DefaultConfig()
	cfg.Interval = config.Seconds(10 * time.Millisecond)
	c := metrics.NewCollector(bp, "node-live", cfg,
		metrics.WithSampler(metrics.SamplerFunc(func(context.Context) (metrics.Sample, error) {
			return metrics.Sample{CPU: 0.5, Memory: 0.5}, nil
		})))

	assert.ErrorIs(t, c.Stop(), metrics.ErrCollectorNotStarted)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx)() }()

	require.Eventually(t, func() bool {
		published, _ := c.Stats()
		return published >= 3
	}, 2*time.Second, 5*time.Millisecond)

	_, err := bp.Get(context.Background(), metrics.Key("node-live"))
	require.NoError(t, err)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not stop")
	}
}

func TestReadSnapshots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bp := backplane.NewMemory()
	t.Cleanup(func() { _ = bp.Close() })

	good, _ := json.Marshal(metrics.Snapshot{NodeID: "a", CPU: 0.5})
	legacy, _ := json.Marshal(map[string]any{"cpu": 0.7})
	require.NoError(t, bp.Set(ctx, "metrics:a", good, time.Minute))
	require.NoError(t, bp.Set(ctx, "metrics:b", legacy, time.Minute))
	require.NoError(t, bp.Set(ctx, "metrics:broken", []byte("{"), time.Minute))
	require.NoError(t, bp.Set(ctx, "sess:x", []byte("{}"), time.Minute))

	snaps, err := metrics.ReadSnapshots(ctx, bp)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "a", snaps[0].NodeID)
	assert.Equal(t, "b", snaps[1].NodeID, "node id falls back to the key")
	assert.InDelta(t, 0.7, snaps[1].CPU, 1e-9)
}

func TestExporter(t *testing.T) {
	t.Parallel()

	c, _, _ := newCollector(t, metrics.DefaultConfig(), &scripted{samples: []metrics.Sample{{CPU: 0.25, Memory: 0.5}}})
	require.NoError(t, c.Collect(context.Background()))

	e := metrics.NewExporter(c)
	assert.Equal(t, 7, testutil.CollectAndCount(e))
	assert.Equal(t, 1, testutil.CollectAndCount(e, "fleet_node_cpu_ratio"))
}

func TestNormalizeLoad(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.5, metrics.NormalizeLoad(2, 4), 1e-9)
	assert.Equal(t, 1.0, metrics.NormalizeLoad(12, 4))
	assert.Equal(t, 1.0, metrics.NormalizeLoad(3, 0))
	assert.Equal(t, 0.0, metrics.NormalizeLoad(-1, 4))
}
