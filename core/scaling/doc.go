// Package scaling turns the fleet's published snapshots into an advisory
// scale-up, scale-down or maintain recommendation.
//
// Every SCALING_CHECK_INTERVAL the Advisor lists metrics:* keys, averages CPU,
// memory and response time, sums request rate and connections, and applies the
// rules in fixed priority:
//
//  1. CPU above CPU_HIGH_THRESHOLD: scale up
//  2. memory above MEMORY_HIGH_THRESHOLD: scale up
//  3. CPU below CPU_LOW_THRESHOLD: scale down
//  4. memory below MEMORY_LOW_THRESHOLD: scale down
//  5. otherwise maintain
//
// Scale up targets ceil(n*metric/threshold), at least n+1 and at most
// min(MAX_INSTANCES, 2n). Scale down requires n > MIN_INSTANCES and targets
// floor(n*metric/threshold), at least max(MIN_INSTANCES, ceil(n/2)).
//
// A scale up within SCALE_UP_COOLDOWN of this node's previous scale up, or a
// scale down within SCALE_DOWN_COOLDOWN of its previous scale down, becomes
// maintain. Non-maintain results are written to scaling:recommendation and
// announced locally as scaling:up or scaling:down.
//
// A failed check never stops the loop; it yields maintain and logs the error.
//
//	adv := scaling.NewAdvisor(bp, cfg,
//		scaling.WithNotifier(bus),
//		scaling.WithWindow(collector),
//		scaling.WithLogger(log),
//	)
//	g.Go(adv.Run(ctx))
//	prometheus.MustRegister(adv)
//
// With PREDICTIVE_SCALING enabled each check also fits a trend line over the
// local sample window (CalculateEfficiency) and logs a bottleneck warning. The
// diagnostic is stored with the recommendation but never changes it.
package scaling
