package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionRunCreated    = "run.created"
	ActionRunStarted    = "run.started"
	ActionRunCompleted  = "run.completed"
	ActionRunFailed     = "run.failed"
	ActionRunCancelled  = "run.cancelled"
	ActionStepCompleted = "step.completed"
	ActionStepFailed    = "step.failed"
	ActionHookConflict  = "hook.conflict"
)

// Audit event categories group related actions.
const (
	CategoryRun  = "worlds.run"
	CategoryStep = "worlds.step"
	CategoryHook = "worlds.hook"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceRun  = "workflow_run"
	ResourceStep = "run_step"
	ResourceHook = "hook"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionRunCreated,
		ActionRunStarted,
		ActionRunCompleted,
		ActionRunFailed,
		ActionRunCancelled,
		ActionStepCompleted,
		ActionStepFailed,
		ActionHookConflict,
	}
}
