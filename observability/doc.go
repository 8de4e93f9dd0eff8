// Package observability provides an OpenTelemetry-based metrics extension
// for Worlds. The MetricsExtension implements engine lifecycle hooks to
// record system-wide counters for run, step, and hook events.
//
// Per-event tracing is built into the engine itself; see engine.WithTracerProvider.
package observability
