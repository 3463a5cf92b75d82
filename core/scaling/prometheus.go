package scaling

import "github.com/prometheus/client_golang/prometheus"

var (
	targetNodesDesc = prometheus.NewDesc("fleet_scaling_target_nodes",
		"Target node count of the latest recommendation.", nil, nil)
	liveNodesDesc = prometheus.NewDesc("fleet_scaling_live_nodes",
		"Nodes with a live snapshot at the latest check.", nil, nil)
	actionDesc = prometheus.NewDesc("fleet_scaling_action",
		"Latest action: 1 scale up, -1 scale down, 0 maintain.", nil, nil)
	checksDesc = prometheus.NewDesc("fleet_scaling_checks_total",
		"Scaling checks run on this node.", nil, nil)
	failuresDesc = prometheus.NewDesc("fleet_scaling_check_failures_total",
		"Scaling checks that failed and fell back to maintain.", nil, nil)
)

// Describe implements prometheus.Collector.
func (a *Advisor) Describe(ch chan<- *prometheus.Desc) {
	ch <- targetNodesDesc
	ch <- liveNodesDesc
	ch <- actionDesc
	ch <- checksDesc
	ch <- failuresDesc
}

// Collect implements prometheus.Collector.
func (a *Advisor) Collect(ch chan<- prometheus.Metric) {
	rec := a.Latest()

	ch <- prometheus.MustNewConstMetric(targetNodesDesc, prometheus.GaugeValue, float64(rec.TargetNodes))
	ch <- prometheus.MustNewConstMetric(liveNodesDesc, prometheus.GaugeValue, float64(rec.CurrentNodes))
	ch <- prometheus.MustNewConstMetric(actionDesc, prometheus.GaugeValue, actionCode(rec.Action))
	ch <- prometheus.MustNewConstMetric(checksDesc, prometheus.CounterValue, float64(a.checks.Load()))
	ch <- prometheus.MustNewConstMetric(failuresDesc, prometheus.CounterValue, float64(a.failures.Load()))
}

func actionCode(a Action) float64 {
	switch a {
	case ActionScaleUp:
		return 1
	case ActionScaleDown:
		return -1
	default:
		return 0
	}
}
