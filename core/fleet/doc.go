// Package fleet wires the coordination layer into one explicitly constructed
// Runtime per process.
//
//	var cfg fleet.Config
//	config.MustLoad(&cfg)
//
//	rt, err := fleet.New(ctx, cfg, fleet.WithLogger(log))
//	if err != nil {
//		return err // fleet.ErrInvalidConfig or backplane.ErrConnectivity
//	}
//	defer rt.Close()
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(rt.Run(ctx))
//
// New connects Redis (REDIS_URL), namespaces every key under BACKPLANE_PREFIX
// and builds the session coordinator, the session event relay, the metrics
// collector and the scaling advisor on top of it. The collector is subscribed
// to the runtime's notifier, so middleware.Track(rt.Notifier()) is all an HTTP
// server needs for request accounting.
//
// With FALLBACK_TO_MEMORY=true an unreachable Redis degrades to a process-local
// backplane. That keeps a single instance working but shares nothing.
//
// INSTANCE_ID identifies this process on the relay and names its metrics
// snapshot; a random UUID is used when unset.
package fleet
