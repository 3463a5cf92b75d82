package scaling_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/fleet/core/metrics"
	"github.com/dmitrymomot/fleet/core/scaling"
)

func series(cpu, mem []float64) []metrics.Sample {
	out := make([]metrics.Sample, len(cpu))
	for i := range cpu {
		out[i] = metrics.Sample{CPU: cpu[i], Memory: mem[i]}
	}
	return out
}

func TestCalculateEfficiency(t *testing.T) {
	t.Parallel()

	t.Run("rising cpu", func(t *testing.T) {
		t.Parallel()
		e := scaling.CalculateEfficiency(series(
			[]float64{0.2, 0.25, 0.3, 0.35, 0.4},
			[]float64{0.5, 0.5, 0.5, 0.5, 0.5},
		))
		assert.InDelta(t, 0.05, e.CPUTrend, 1e-9)
		assert.InDelta(t, 0.0, e.MemoryTrend, 1e-9)
		assert.Equal(t, "cpu", e.Bottleneck)
		assert.Contains(t, e.Suggestion, "compute-optimized")
		assert.Equal(t, 5, e.Samples)
	})

	t.Run("rising memory", func(t *testing.T) {
		t.Parallel()
		e := scaling.CalculateEfficiency(series(
			[]float64{0.4, 0.4, 0.4, 0.4},
			[]float64{0.3, 0.4, 0.5, 0.6},
		))
		assert.Equal(t, "memory", e.Bottleneck)
		assert.Contains(t, e.Suggestion, "memory-optimized")
	})

	t.Run("flat", func(t *testing.T) {
		t.Parallel()
		e := scaling.CalculateEfficiency(series(
			[]float64{0.5, 0.505, 0.5, 0.505},
			[]float64{0.5, 0.5, 0.5, 0.5},
		))
		assert.Empty(t, e.Bottleneck)
		assert.Empty(t, e.Suggestion)
	})

	t.Run("too few samples", func(t *testing.T) {
		t.Parallel()
		e := scaling.CalculateEfficiency(series([]float64{0.9}, []float64{0.9}))
		assert.Zero(t, e.CPUTrend)
		assert.Empty(t, e.Bottleneck)

		assert.Empty(t, scaling.CalculateEfficiency(nil).Bottleneck)
	})
}
