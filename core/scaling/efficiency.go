package scaling

import "github.com/dmitrymomot/fleet/core/metrics"

// bottleneckSlope is the per-sample growth above which a metric is flagged.
const bottleneckSlope = 0.01

// Efficiency is an advisory trend diagnostic over the local sample window.
// It never changes a scaling decision.
type Efficiency struct {
	CPUTrend    float64 `json:"cpuTrend"`
	MemoryTrend float64 `json:"memoryTrend"`
	Bottleneck  string  `json:"bottleneck,omitempty"`
	Suggestion  string  `json:"suggestion,omitempty"`
	Samples     int     `json:"samples"`
}

// CalculateEfficiency fits a least-squares line to CPU and memory against the
// sample index and flags the steeper one when it rises faster than bottleneckSlope.
func CalculateEfficiency(window []metrics.Sample) Efficiency {
	cpu := make([]float64, len(window))
	mem := make([]float64, len(window))
	for i, s := range window {
		cpu[i] = s.CPU
		mem[i] = s.Memory
	}

	e := Efficiency{
		CPUTrend:    slope(cpu),
		MemoryTrend: slope(mem),
		Samples:     len(window),
	}

	switch {
	case e.CPUTrend > bottleneckSlope && e.CPUTrend >= e.MemoryTrend:
		e.Bottleneck = "cpu"
		e.Suggestion = "cpu usage is trending up; consider compute-optimized instances"
	case e.MemoryTrend > bottleneckSlope:
		e.Bottleneck = "memory"
		e.Suggestion = "memory usage is trending up; consider memory-optimized instances"
	}
	return e
}

// slope is the OLS slope of ys against 0..n-1. Fewer than two points have no trend.
func slope(ys []float64) float64 {
	n := float64(len(ys))
	if len(ys) < 2 {
		return 0
	}
	var sx, sy, sxy, sxx float64
	for i, y := range ys {
		x := float64(i)
		sx += x
		sy += y
		sxy += x * y
		sxx += x * x
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}
