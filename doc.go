// Package worlds provides interchangeable storage backends ("Worlds") for a
// durable workflow execution engine, together with the event-sourced mutation
// gateway that keeps them behaviorally identical.
//
// Workflow state is never mutated directly. The runtime submits events
// (run_started, step_completed, hook_created, ...) to engine.Engine, which
// validates them against current state, applies the entity transition, and
// appends the event to an immutable log. Replaying the log in ascending event
// order reproduces the run.
//
// # Quick Start
//
//	st := memory.New()
//	eng := engine.New(st)
//
//	res, err := eng.CreateEvent(ctx, id.Nil, workflow.EventRequest{
//	    Type:        workflow.EventRunCreated,
//	    SpecVersion: workflow.SpecVersionCurrent,
//	    Data:        json.RawMessage(`{"workflow_name":"sync-invoices"}`),
//	}, workflow.GetOpts{})
//
// # Architecture
//
// Worlds follows a composable store pattern: the workflow package defines the
// entity model and the Store contract, and each backend under store/
// (memory, mongo, redis, bun, postgres) implements it. The engine package is
// backend-agnostic; every invariant it enforces holds identically on every
// backend, which the store/storetest contract suite verifies.
//
// Run, hook, and event IDs use TypeID — type-prefixed, K-sortable,
// UUIDv7-based identifiers. Step IDs are caller-supplied sortable strings.
package worlds
