// Package engine implements the event application gateway for Worlds.
//
// The engine is the single mutation path over runs, steps, hooks, and
// events: callers never write entities directly, they submit events through
// [Engine.CreateEvent]. The engine loads current state under the backend's
// per-run lock, validates the event against lifecycle invariants, computes
// the entity transition, and persists entity plus event as one atomic
// change set. Read paths (gets and cursor-paginated lists) live here too.
//
// # Building an Engine
//
//	eng, err := engine.New(memory.New(),
//	    engine.WithLogger(logger),
//	    engine.WithExtension(metricsExt),
//	)
//
//	res, err := eng.CreateEvent(ctx, id.Nil, workflow.EventRequest{
//	    Type: workflow.EventRunCreated,
//	    Data: json.RawMessage(`{"workflow_name":"order-flow"}`),
//	}, workflow.GetOpts{})
//
// # Options
//
//   - [WithLogger] — set the structured logger
//   - [WithClock] — override the time source (tests)
//   - [WithExtension] — register a lifecycle extension
//   - [WithTracerProvider] — set the OpenTelemetry tracer provider
package engine
