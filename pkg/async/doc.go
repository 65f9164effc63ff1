// Package async provides fire-and-forget execution of functions with
// future-based completion tracking.
//
// It is used to dispatch work that must not block the caller, such as
// broadcasting a persisted message to websocket subscribers after the publish
// response has already been written:
//
//	// Detach from the request context so fan-out survives request teardown.
//	async.Exec(context.WithoutCancel(r.Context()), msg, pub.Publish)
//
// The returned future can be awaited when completion matters:
//
//	f := async.Exec(ctx, payload, process)
//	if err := f.AwaitWithTimeout(5 * time.Second); err != nil {
//		log.Error("processing did not finish", logger.Error(err))
//	}
package async
