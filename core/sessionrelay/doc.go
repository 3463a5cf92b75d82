// Package sessionrelay propagates session lifecycle events between fleet instances.
//
// The session coordinator publishes through a Publisher whenever it creates,
// destroys or invalidates sessions. Every instance runs a Relay that
// subscribes once to the five channels and calls the handlers registered for
// the matching event:
//
//	channel                     event
//	session-created             sessionCreated
//	session-destroyed           sessionDestroyed
//	session-invalidated         sessionInvalidated
//	user-sessions-invalidated   userSessionsInvalidated
//	broadcast-message           broadcastMessage
//
// Messages published by the relay's own instance are dropped. Handler errors
// and panics are logged per handler and never stop delivery to the others.
//
//	relay := sessionrelay.New(bp, instanceID, sessionrelay.WithLogger(log))
//	off := relay.On(sessionrelay.EventSessionInvalidated, func(ctx context.Context, m sessionrelay.Message) error {
//		cache.Evict(m.SessionID)
//		return nil
//	})
//	defer off()
//
//	g.Go(relay.Run(ctx))
//
// Delivery is at-most-once and unordered. The backplane stays the source of
// truth for sessions; relayed events only shorten propagation delay.
package sessionrelay
