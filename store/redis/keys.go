package redis

// Redis key naming conventions for Worlds data.
// All keys are prefixed with "worlds:" to avoid collisions.
//
// Entities are stored as Hashes. Ordered listings use Sorted Sets with a
// zero score: because run, hook, and event IDs are lexicographically
// sortable, ZRANGEBYLEX gives range scans in creation order and the cursor
// is just an exclusive lex bound.

const keyPrefix = "worlds:"

// ── Run keys ──

// runKey returns the key for a run entity: worlds:run:{id}
func runKey(id string) string { return keyPrefix + "run:" + id }

// runIDsKey is the lex-ordered Sorted Set of all run IDs.
const runIDsKey = keyPrefix + "run_ids"

// ── Step keys ──

// stepKey returns the key for a step entity: worlds:step:{runID}:{stepID}
func stepKey(runID, stepID string) string {
	return keyPrefix + "step:" + runID + ":" + stepID
}

// stepIDsKey returns the Sorted Set of a run's step IDs.
func stepIDsKey(runID string) string { return keyPrefix + "step_ids:" + runID }

// ── Hook keys ──

// hookKey returns the key for a hook entity: worlds:hook:{id}
func hookKey(id string) string { return keyPrefix + "hook:" + id }

// hookIDsKey is the lex-ordered Sorted Set of all hook IDs.
const hookIDsKey = keyPrefix + "hook_ids"

// runHooksKey returns the Set of hook IDs owned by a run, used to release
// them all when the run terminates.
func runHooksKey(runID string) string { return keyPrefix + "run_hooks:" + runID }

// tokenKey returns the token claim key: worlds:token:{token} -> hook ID.
// SET NX on it is the atomic cross-run claim.
func tokenKey(token string) string { return keyPrefix + "token:" + token }

// ── Event keys ──

// eventKey returns the key for an event entity: worlds:event:{id}
func eventKey(id string) string { return keyPrefix + "event:" + id }

// runEventsKey returns the Sorted Set of a run's event IDs.
func runEventsKey(runID string) string { return keyPrefix + "run_events:" + runID }

// corrEventsKey returns the Sorted Set of event IDs sharing a correlation ID.
func corrEventsKey(correlationID string) string {
	return keyPrefix + "corr_events:" + correlationID
}

// ── Lock keys ──

// runLockKey returns the per-run lease lock key: worlds:run_lock:{id}
func runLockKey(runID string) string { return keyPrefix + "run_lock:" + runID }
