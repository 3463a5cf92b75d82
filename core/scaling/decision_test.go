package scaling_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fleet/core/metrics"
	"github.com/dmitrymomot/fleet/core/scaling"
)

func nodes(n int, cpu, mem float64) []metrics.Snapshot {
	out := make([]metrics.Snapshot, n)
	for i := range out {
		out[i] = metrics.Snapshot{CPU: cpu, Memory: mem, RequestsPerMinute: 10, ResponseTime: 20, Connections: 2}
	}
	return out
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	agg := scaling.Summarize([]metrics.Snapshot{
		{CPU: 0.2, Memory: 0.4, RequestsPerMinute: 100, ResponseTime: 10, Connections: 3},
		{CPU: 0.6, Memory: 0.8, RequestsPerMinute: 50, ResponseTime: 30, Connections: 1},
	})

	assert.Equal(t, 2, agg.Nodes)
	assert.InDelta(t, 0.4, agg.CPU, 1e-9)
	assert.InDelta(t, 0.6, agg.Memory, 1e-9)
	assert.EqualValues(t, 150, agg.RequestsPerMinute)
	assert.InDelta(t, 20.0, agg.ResponseTime, 1e-9)
	assert.EqualValues(t, 4, agg.Connections)

	assert.Equal(t, scaling.Aggregate{}, scaling.Summarize(nil))
}

func TestDecide_ThreeHotNodes(t *testing.T) {
	t.Parallel()

	cfg := scaling.DefaultConfig()
	cfg.CPUHigh = 0.7
	cfg.MaxInstances = 10

	rec := scaling.Decide(cfg, scaling.Summarize(nodes(3, 0.85, 0.5)))
	assert.Equal(t, scaling.ActionScaleUp, rec.Action)
	assert.Equal(t, 4, rec.TargetNodes)
	assert.Equal(t, 3, rec.CurrentNodes)
	assert.InDelta(t, 0.85, rec.Metrics.CPU, 1e-9)
	assert.Contains(t, rec.Reason, "cpu")
}

func TestDecide_Rules(t *testing.T) {
	t.Parallel()

	cfg := scaling.DefaultConfig() // cpu 0.3-0.7, memory 0.3-0.8, 1..10 instances

	tests := []struct {
		name   string
		n      int
		cpu    float64
		mem    float64
		action scaling.Action
		target int
	}{
		{"no nodes", 0, 0, 0, scaling.ActionMaintain, 1},
		{"within thresholds", 4, 0.5, 0.5, scaling.ActionMaintain, 4},
		{"memory high", 4, 0.5, 0.9, scaling.ActionScaleUp, 5},
		{"cpu high wins over memory low", 4, 0.9, 0.1, scaling.ActionScaleUp, 6},
		{"never more than doubles", 2, 1.0, 0.5, scaling.ActionScaleUp, 3},
		{"doubling cap", 1, 1.0, 0.5, scaling.ActionScaleUp, 2},
		{"capped at max", 9, 1.0, 0.5, scaling.ActionScaleUp, 10},
		{"at max maintains", 10, 1.0, 0.5, scaling.ActionMaintain, 10},
		{"cpu low", 8, 0.15, 0.5, scaling.ActionScaleDown, 4},
		{"never more than halves", 8, 0.01, 0.5, scaling.ActionScaleDown, 4},
		{"memory low", 6, 0.5, 0.1, scaling.ActionScaleDown, 3},
		{"at min maintains", 1, 0.01, 0.01, scaling.ActionMaintain, 1},
		{"above max within thresholds", 14, 0.5, 0.5, scaling.ActionMaintain, 10},
		{"above max scales down to max", 30, 0.1, 0.5, scaling.ActionScaleDown, 10},
		{"above max stays bounded when hot", 12, 0.9, 0.5, scaling.ActionMaintain, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := scaling.Decide(cfg, scaling.Summarize(nodes(tt.n, tt.cpu, tt.mem)))
			assert.Equal(t, tt.action, rec.Action, rec.Reason)
			assert.Equal(t, tt.target, rec.TargetNodes)
			assert.NotEmpty(t, rec.Reason)
		})
	}
}

func TestDecide_NoLiveNodesReason(t *testing.T) {
	t.Parallel()
	rec := scaling.Decide(scaling.DefaultConfig(), scaling.Aggregate{})
	assert.Equal(t, "no live nodes", rec.Reason)
	assert.Equal(t, 1, rec.TargetNodes, "target stays within min instances")
	assert.Zero(t, rec.CurrentNodes)
}

func TestDecide_OutOfBoundsReasons(t *testing.T) {
	t.Parallel()

	cfg := scaling.DefaultConfig()

	rec := scaling.Decide(cfg, scaling.Summarize(nodes(14, 0.5, 0.5)))
	assert.Contains(t, rec.Reason, "above max instances")

	rec = scaling.Decide(cfg, scaling.Summarize(nodes(30, 0.1, 0.5)))
	assert.Contains(t, rec.Reason, "capped at max instances")

	cfg.MinInstances = 3
	rec = scaling.Decide(cfg, scaling.Summarize(nodes(2, 0.5, 0.5)))
	assert.Equal(t, scaling.ActionMaintain, rec.Action)
	assert.Equal(t, 3, rec.TargetNodes)
	assert.Contains(t, rec.Reason, "below min instances")
}

func TestDecide_BoundsProperty(t *testing.T) {
	t.Parallel()

	for _, bounds := range [][2]int{{1, 10}, {2, 5}, {3, 20}, {1, 1}} {
		cfg := scaling.DefaultConfig()
		cfg.MinInstances, cfg.MaxInstances = bounds[0], bounds[1]

		for n := 0; n <= 3*cfg.MaxInstances+5; n++ {
			for cpu := 0.0; cpu <= 1.0; cpu += 0.05 {
				rec := scaling.Decide(cfg, scaling.Summarize(nodes(n, cpu, 0.5)))

				require.GreaterOrEqual(t, rec.TargetNodes, cfg.MinInstances, "n=%d cpu=%.2f", n, cpu)
				require.LessOrEqual(t, rec.TargetNodes, cfg.MaxInstances, "n=%d cpu=%.2f", n, cpu)
				require.Equal(t, n, rec.CurrentNodes)

				switch rec.Action {
				case scaling.ActionScaleUp:
					require.Greater(t, cpu, cfg.CPUHigh)
					require.GreaterOrEqual(t, rec.TargetNodes, n+1)
					require.LessOrEqual(t, rec.TargetNodes, min(cfg.MaxInstances, 2*n))
				case scaling.ActionScaleDown:
					require.Greater(t, n, cfg.MinInstances)
					require.Less(t, rec.TargetNodes, n)
					if n <= cfg.MaxInstances {
						require.GreaterOrEqual(t, rec.TargetNodes, int(math.Ceil(float64(n)/2)))
					}
				case scaling.ActionMaintain:
					require.Equal(t, min(max(n, cfg.MinInstances), cfg.MaxInstances), rec.TargetNodes)
				}
			}
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, scaling.DefaultConfig().Validate())

	cfg := scaling.DefaultConfig()
	cfg.MinInstances = 5
	cfg.MaxInstances = 2
	cfg.CPULow = 0.9
	err := cfg.Validate()
	require.ErrorIs(t, err, scaling.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "MAX_INSTANCES")
	assert.Contains(t, err.Error(), "CPU_LOW_THRESHOLD")

	cfg = scaling.DefaultConfig()
	cfg.MemoryHigh = 1.5
	assert.ErrorIs(t, cfg.Validate(), scaling.ErrInvalidConfig)
}
