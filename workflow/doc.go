// Package workflow defines the durable entity model for workflow runs —
// Run, Step, Hook, and Event — and the Store contract every backend
// implements.
//
// Entities are mutated exclusively through the engine package, which applies
// incoming events under the backend's per-run serialization primitive and
// persists each entity change together with its event as one atomic
// ChangeSet. Read paths are cursor-paginated and support payload redaction
// via ResolveData.
package workflow
