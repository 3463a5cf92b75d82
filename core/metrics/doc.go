// Package metrics samples local utilization and publishes per-node snapshots
// to the backplane for the scaling advisor.
//
// A Collector samples host CPU (one minute load average over logical cores)
// and memory on METRICS_INTERVAL, keeps the last METRICS_SAMPLE_SIZE samples
// and writes a Snapshot under metrics:<nodeId> with METRICS_TTL. A crashed
// node's snapshot expires on its own; absence is the failure signal.
//
// Request counters are fed through two local hooks:
//
//	c := metrics.NewCollector(bp, nodeID, cfg, metrics.WithLogger(log))
//	off := c.Subscribe(bus) // request:start / request:end from middleware.Track
//	defer off()
//
//	g.Go(c.Run(ctx))
//	prometheus.MustRegister(metrics.NewExporter(c))
//
// Response time is a weighted rolling average (avg*0.9 + sample*0.1) seeded by
// the first request. Requests per minute counts requests accepted since the
// current minute window began.
//
// Nodes with METRICS_PUBLISHER=false still sample locally and keep their
// request counters, but never write a snapshot.
package metrics
