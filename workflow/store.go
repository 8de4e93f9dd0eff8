package workflow

import (
	"context"

	"github.com/mizzle-dev/worlds/id"
)

// SortOrder controls the direction of a list scan.
type SortOrder string

const (
	// SortAsc returns oldest entities first. Event replay requires it.
	SortAsc SortOrder = "asc"
	// SortDesc returns newest entities first, the default for human-facing
	// listings.
	SortDesc SortOrder = "desc"
)

// ListOpts controls pagination for list queries.
//
// Cursor is the sort key of the last entity from the previous page
// (exclusive); empty means start from the beginning of the scan. Stores
// return at most Limit entities strictly past the cursor in Order direction.
type ListOpts struct {
	Limit  int
	Cursor string
	Order  SortOrder

	// Resolve controls payload redaction on engine read paths.
	// Stores ignore it; redaction happens above the adapter.
	Resolve ResolveData
}

// GetOpts controls single-entity read paths.
type GetOpts struct {
	// Resolve controls payload redaction. Zero value means ResolveAll.
	Resolve ResolveData
}

// RunFilter narrows a run listing. Zero fields match everything.
type RunFilter struct {
	WorkflowName string
	DeploymentID string
	Status       RunStatus
}

// Page is one cursor-paginated result page. Cursor is the sort key of the
// last item, to be passed as ListOpts.Cursor for the next page; it is empty
// when the page is empty.
type Page[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

// ChangeSet is one atomic mutation: at most one entity change plus the event
// that caused it. Stores persist all of it or none of it, so a reader can
// never observe the event without the entity update or vice versa.
//
// Create* and Update* are mutually exclusive per entity kind. The engine
// builds ChangeSets; stores only execute them.
type ChangeSet struct {
	// Event is always present and appended to the run's log.
	Event *Event

	CreateRun *Run
	UpdateRun *Run

	CreateStep *Step
	UpdateStep *Step

	CreateHook *Hook

	// DeleteHook removes one hook (hook_disposed).
	DeleteHook id.HookID

	// ReleaseRunHooks removes every hook owned by the run, freeing their
	// tokens. Set when the run reaches a terminal status.
	ReleaseRunHooks id.RunID
}

// Store is the persistence contract a backend ("World") must satisfy.
//
// Reads return deep copies; mutating a returned entity never alters stored
// state. List scans are keyed and ordered by the entity's natural sort key:
// run ID, step ID, hook ID, event ID.
//
// ApplyChange enforces the two durable uniqueness invariants and reports
// them as sentinels: worlds.ErrRunExists / worlds.ErrStepExists for duplicate
// IDs, and worlds.ErrHookTokenTaken for a hook token already claimed by a
// live hook. The token check is atomic with the claim.
type Store interface {
	// GetRun retrieves a run by ID, or worlds.ErrRunNotFound.
	GetRun(ctx context.Context, runID id.RunID) (*Run, error)

	// ListRuns returns up to opts.Limit runs matching filter, ordered by ID.
	ListRuns(ctx context.Context, filter RunFilter, opts ListOpts) ([]*Run, error)

	// GetStep retrieves a step by run and step ID, or worlds.ErrStepNotFound.
	GetStep(ctx context.Context, runID id.RunID, stepID string) (*Step, error)

	// ListSteps returns the run's steps ordered by step ID.
	ListSteps(ctx context.Context, runID id.RunID, opts ListOpts) ([]*Step, error)

	// GetHook retrieves a hook by ID, or worlds.ErrHookNotFound.
	GetHook(ctx context.Context, hookID id.HookID) (*Hook, error)

	// GetHookByToken retrieves the live hook holding token, or
	// worlds.ErrHookNotFound.
	GetHookByToken(ctx context.Context, token string) (*Hook, error)

	// ListHooks returns hooks ordered by hook ID. A Nil runID lists all runs'
	// hooks.
	ListHooks(ctx context.Context, runID id.RunID, opts ListOpts) ([]*Hook, error)

	// ListEvents returns the run's events ordered by event ID.
	ListEvents(ctx context.Context, runID id.RunID, opts ListOpts) ([]*Event, error)

	// ListEventsByCorrelationID returns events across runs whose correlation
	// ID matches, ordered by event ID.
	ListEventsByCorrelationID(ctx context.Context, correlationID string, opts ListOpts) ([]*Event, error)

	// ApplyChange atomically persists the change set using the backend's
	// strongest primitive. A failed uniqueness check leaves zero side
	// effects.
	ApplyChange(ctx context.Context, change *ChangeSet) error

	// WithRunLock runs fn while holding the backend's per-run serialization
	// primitive for runID, so the engine's load-validate-mutate-append
	// sequence behaves as if serialized per run. Locks for different runs
	// are independent.
	WithRunLock(ctx context.Context, runID id.RunID, fn func(ctx context.Context) error) error
}
