package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	cpuDesc = prometheus.NewDesc("fleet_node_cpu_ratio",
		"Normalized CPU load of this node.", []string{"node_id"}, nil)
	memoryDesc = prometheus.NewDesc("fleet_node_memory_ratio",
		"Used memory ratio of this node.", []string{"node_id"}, nil)
	rpmDesc = prometheus.NewDesc("fleet_node_requests_per_minute",
		"Requests accepted in the current minute window.", []string{"node_id"}, nil)
	responseTimeDesc = prometheus.NewDesc("fleet_node_response_time_ms",
		"Rolling average response time in milliseconds.", []string{"node_id"}, nil)
	connectionsDesc = prometheus.NewDesc("fleet_node_connections",
		"Requests currently in flight.", []string{"node_id"}, nil)
	publishedDesc = prometheus.NewDesc("fleet_metrics_published_total",
		"Snapshots written to the backplane.", []string{"node_id"}, nil)
	publishFailedDesc = prometheus.NewDesc("fleet_metrics_publish_failures_total",
		"Snapshot writes that failed.", []string{"node_id"}, nil)
)

// Exporter exposes a Collector's latest snapshot as prometheus metrics.
type Exporter struct {
	c *Collector
}

// NewExporter returns a prometheus.Collector reading from c.
func NewExporter(c *Collector) *Exporter { return &Exporter{c: c} }

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- cpuDesc
	ch <- memoryDesc
	ch <- rpmDesc
	ch <- responseTimeDesc
	ch <- connectionsDesc
	ch <- publishedDesc
	ch <- publishFailedDesc
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	s := e.c.Snapshot()
	published, failed := e.c.Stats()
	node := e.c.NodeID()

	ch <- prometheus.MustNewConstMetric(cpuDesc, prometheus.GaugeValue, s.CPU, node)
	ch <- prometheus.MustNewConstMetric(memoryDesc, prometheus.GaugeValue, s.Memory, node)
	ch <- prometheus.MustNewConstMetric(rpmDesc, prometheus.GaugeValue, float64(s.RequestsPerMinute), node)
	ch <- prometheus.MustNewConstMetric(responseTimeDesc, prometheus.GaugeValue, s.ResponseTime, node)
	ch <- prometheus.MustNewConstMetric(connectionsDesc, prometheus.GaugeValue, float64(s.Connections), node)
	ch <- prometheus.MustNewConstMetric(publishedDesc, prometheus.CounterValue, float64(published), node)
	ch <- prometheus.MustNewConstMetric(publishFailedDesc, prometheus.CounterValue, float64(failed), node)
}
