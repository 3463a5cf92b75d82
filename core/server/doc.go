// Package server wraps http.Server with graceful shutdown and errgroup-friendly
// lifecycle management.
//
//	srv, err := server.NewFromConfig(cfg, server.WithLogger(log))
//	if err != nil {
//		return err
//	}
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(srv.Run(ctx, handler))
//	return g.Wait()
//
// Run starts listening, and when ctx is cancelled it shuts the server down
// within SERVER_SHUTDOWN_TIMEOUT, letting in-flight requests finish. Start and
// Stop are available for manual control. Addr reports the bound address, which
// is useful with ":0".
//
// TLS is expected to terminate at the load balancer in front of the fleet.
package server
