// Package notify is the local, in-process hook bus of a fleet instance.
//
// Request middleware emits EventRequestStart and EventRequestEnd, and the
// metrics collector listens to them. The scaling advisor emits
// EventScalingUp and EventScalingDown. Nothing here crosses the process
// boundary; cross-instance events go through the session relay instead.
//
//	bus := notify.New(notify.WithLogger(log))
//	off := bus.On(notify.EventRequestEnd, func(ctx context.Context, p any) error {
//		end := p.(notify.RequestEnd)
//		return nil
//	})
//	defer off()
//
//	bus.Emit(ctx, notify.EventRequestEnd, notify.RequestEnd{Duration: d})
package notify
