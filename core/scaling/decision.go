package scaling

import (
	"fmt"
	"math"

	"github.com/dmitrymomot/fleet/core/metrics"
)

// Action is the advisor's verdict.
type Action string

const (
	ActionScaleUp   Action = "scale_up"
	ActionScaleDown Action = "scale_down"
	ActionMaintain  Action = "maintain"
)

// Aggregate is the fleet-wide view computed from live node snapshots.
type Aggregate struct {
	CPU               float64 `json:"cpu"`
	Memory            float64 `json:"memory"`
	RequestsPerMinute int64   `json:"requestsPerMinute"`
	ResponseTime      float64 `json:"responseTime"`
	Connections       int64   `json:"connections"`
	Nodes             int     `json:"nodes"`
}

// Recommendation is one scaling decision.
type Recommendation struct {
	Action       Action    `json:"action"`
	TargetNodes  int       `json:"targetNodes"`
	CurrentNodes int       `json:"currentNodes"`
	Reason       string    `json:"reason"`
	Timestamp    int64     `json:"timestamp"`
	Metrics      Aggregate `json:"metrics"`
}

// Summarize averages CPU, memory and response time and sums request rate and
// connections over snaps.
func Summarize(snaps []metrics.Snapshot) Aggregate {
	agg := Aggregate{Nodes: len(snaps)}
	if len(snaps) == 0 {
		return agg
	}
	for _, s := range snaps {
		agg.CPU += s.CPU
		agg.Memory += s.Memory
		agg.ResponseTime += s.ResponseTime
		agg.RequestsPerMinute += s.RequestsPerMinute
		agg.Connections += s.Connections
	}
	n := float64(len(snaps))
	agg.CPU /= n
	agg.Memory /= n
	agg.ResponseTime /= n
	return agg
}

// Decide applies the threshold rules in fixed priority: CPU high, memory high,
// CPU low, memory low, otherwise maintain. The first matching rule decides,
// even when bounds turn it into maintain. Every target lies in
// [MinInstances, MaxInstances]. Cooldowns are not considered here.
func Decide(cfg Config, agg Aggregate) Recommendation {
	n := agg.Nodes
	rec := Recommendation{
		Action:       ActionMaintain,
		TargetNodes:  n,
		CurrentNodes: n,
		Metrics:      agg,
	}

	switch {
	case n == 0:
		rec.Reason = "no live nodes"
	case agg.CPU > cfg.CPUHigh:
		scaleUp(&rec, cfg, "cpu", agg.CPU, cfg.CPUHigh)
	case agg.Memory > cfg.MemoryHigh:
		scaleUp(&rec, cfg, "memory", agg.Memory, cfg.MemoryHigh)
	case agg.CPU < cfg.CPULow && n > cfg.MinInstances:
		scaleDown(&rec, cfg, "cpu", agg.CPU, cfg.CPULow)
	case agg.Memory < cfg.MemoryLow && n > cfg.MinInstances:
		scaleDown(&rec, cfg, "memory", agg.Memory, cfg.MemoryLow)
	default:
		rec.Reason = "utilization within thresholds"
	}

	if rec.Action == ActionMaintain {
		rec.TargetNodes = cfg.Clamp(n)
		switch {
		case n > 0 && n < cfg.MinInstances:
			rec.Reason += fmt.Sprintf("; fleet of %d below min instances (%d)", n, cfg.MinInstances)
		case n > cfg.MaxInstances:
			rec.Reason += fmt.Sprintf("; fleet of %d above max instances (%d)", n, cfg.MaxInstances)
		}
	}
	return rec
}

func scaleUp(rec *Recommendation, cfg Config, metric string, value, threshold float64) {
	n := rec.CurrentNodes
	target := int(math.Ceil(float64(n) * value / threshold))
	target = max(target, n+1)
	target = min(target, cfg.MaxInstances, 2*n)

	if target <= n {
		rec.Reason = fmt.Sprintf("%s %.2f above %.2f but already at max instances (%d)", metric, value, threshold, cfg.MaxInstances)
		return
	}
	rec.Action = ActionScaleUp
	rec.TargetNodes = target
	rec.Reason = fmt.Sprintf("%s %.2f above threshold %.2f", metric, value, threshold)
}

func scaleDown(rec *Recommendation, cfg Config, metric string, value, threshold float64) {
	n := rec.CurrentNodes
	target := int(math.Floor(float64(n) * value / threshold))
	target = max(target, cfg.MinInstances, int(math.Ceil(float64(n)*0.5)))

	if target >= n {
		rec.Reason = fmt.Sprintf("%s %.2f below %.2f but no smaller fleet is allowed", metric, value, threshold)
		return
	}
	rec.Action = ActionScaleDown
	rec.Reason = fmt.Sprintf("%s %.2f below threshold %.2f", metric, value, threshold)
	if target > cfg.MaxInstances {
		target = cfg.MaxInstances
		rec.Reason += fmt.Sprintf("; capped at max instances (%d) below the halving limit", cfg.MaxInstances)
	}
	rec.TargetNodes = target
}
