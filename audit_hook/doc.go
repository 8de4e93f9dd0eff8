// Package audithook is a Worlds extension that bridges lifecycle events
// to an immutable audit trail backend such as Chronicle.
//
// Every run, step, and hook lifecycle event emits a structured audit event
// through the [Recorder] interface. The extension assigns appropriate
// severity levels (info for normal transitions, warning for token conflicts,
// critical for terminal failures) and rich metadata (workflow name, run
// status, errors).
//
// # Usage with Chronicle
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return chronicle.Info(ctx, evt.Action, evt.Resource, evt.ResourceID).
//	        Category(evt.Category).
//	        Outcome(evt.Outcome).
//	        Record()
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionRunFailed,
//	        audithook.ActionRunCancelled,
//	        audithook.ActionHookConflict,
//	    ),
//	)
package audithook
