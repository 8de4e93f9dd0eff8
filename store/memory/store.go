// Package memory implements store.Store entirely in process memory.
// Safe for concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/keylock"
	"github.com/mizzle-dev/worlds/workflow"
)

// Ensure Store implements the contract at compile time.
var _ workflow.Store = (*Store)(nil)

// Store is a fully in-memory World. All reads hand out deep clones, so
// callers can never mutate stored state through a returned pointer.
type Store struct {
	mu sync.RWMutex

	runs   map[string]*workflow.Run
	steps  map[string]map[string]*workflow.Step // runID -> stepID -> step
	hooks  map[string]*workflow.Hook
	tokens map[string]string // token -> hook ID, the live-token index
	events map[string]*workflow.Event

	// runLocks is the per-run serialization primitive: ApplyChange callers
	// for the same run serialize, different runs proceed in parallel.
	runLocks keylock.KeyedMutex
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		runs:   make(map[string]*workflow.Run),
		steps:  make(map[string]map[string]*workflow.Step),
		hooks:  make(map[string]*workflow.Hook),
		tokens: make(map[string]string),
		events: make(map[string]*workflow.Event),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Per-run lock
// ──────────────────────────────────────────────────

// WithRunLock runs fn while holding the in-process lock for runID.
func (m *Store) WithRunLock(ctx context.Context, runID id.RunID, fn func(ctx context.Context) error) error {
	return m.runLocks.WithLock(runID.String(), func() error {
		return fn(ctx)
	})
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// GetRun retrieves a run by ID.
func (m *Store) GetRun(_ context.Context, runID id.RunID) (*workflow.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.runs[runID.String()]
	if !ok {
		return nil, worlds.ErrRunNotFound
	}
	return r.Clone(), nil
}

// ListRuns returns runs matching the filter, ordered by ID.
func (m *Store) ListRuns(_ context.Context, filter workflow.RunFilter, opts workflow.ListOpts) ([]*workflow.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*workflow.Run, 0, len(m.runs))
	for _, r := range m.runs {
		if filter.WorkflowName != "" && r.WorkflowName != filter.WorkflowName {
			continue
		}
		if filter.DeploymentID != "" && r.DeploymentID != filter.DeploymentID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		result = append(result, r.Clone())
	}
	return paginate(result, opts, func(r *workflow.Run) string { return r.ID.String() }), nil
}

// GetStep retrieves a step by run and step ID.
func (m *Store) GetStep(_ context.Context, runID id.RunID, stepID string) (*workflow.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.steps[runID.String()][stepID]
	if !ok {
		return nil, worlds.ErrStepNotFound
	}
	return s.Clone(), nil
}

// ListSteps returns the run's steps ordered by step ID.
func (m *Store) ListSteps(_ context.Context, runID id.RunID, opts workflow.ListOpts) ([]*workflow.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID := m.steps[runID.String()]
	result := make([]*workflow.Step, 0, len(byID))
	for _, s := range byID {
		result = append(result, s.Clone())
	}
	return paginate(result, opts, func(s *workflow.Step) string { return s.ID }), nil
}

// GetHook retrieves a hook by ID.
func (m *Store) GetHook(_ context.Context, hookID id.HookID) (*workflow.Hook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hooks[hookID.String()]
	if !ok {
		return nil, worlds.ErrHookNotFound
	}
	return h.Clone(), nil
}

// GetHookByToken retrieves the live hook holding the token.
func (m *Store) GetHookByToken(_ context.Context, token string) (*workflow.Hook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hookID, ok := m.tokens[token]
	if !ok {
		return nil, worlds.ErrHookNotFound
	}
	h, ok := m.hooks[hookID]
	if !ok {
		return nil, worlds.ErrHookNotFound
	}
	return h.Clone(), nil
}

// ListHooks returns hooks ordered by hook ID. A Nil runID lists all hooks.
func (m *Store) ListHooks(_ context.Context, runID id.RunID, opts workflow.ListOpts) ([]*workflow.Hook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*workflow.Hook, 0, len(m.hooks))
	for _, h := range m.hooks {
		if !runID.IsNil() && h.RunID != runID {
			continue
		}
		result = append(result, h.Clone())
	}
	return paginate(result, opts, func(h *workflow.Hook) string { return h.ID.String() }), nil
}

// ListEvents returns the run's events ordered by event ID.
func (m *Store) ListEvents(_ context.Context, runID id.RunID, opts workflow.ListOpts) ([]*workflow.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*workflow.Event
	for _, e := range m.events {
		if e.RunID != runID {
			continue
		}
		result = append(result, e.Clone())
	}
	return paginate(result, opts, func(e *workflow.Event) string { return e.ID.String() }), nil
}

// ListEventsByCorrelationID returns events across runs whose correlation ID
// matches, ordered by event ID.
func (m *Store) ListEventsByCorrelationID(_ context.Context, correlationID string, opts workflow.ListOpts) ([]*workflow.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*workflow.Event
	for _, e := range m.events {
		if e.CorrelationID != correlationID {
			continue
		}
		result = append(result, e.Clone())
	}
	return paginate(result, opts, func(e *workflow.Event) string { return e.ID.String() }), nil
}

// ──────────────────────────────────────────────────
// ApplyChange
// ──────────────────────────────────────────────────

// ApplyChange atomically persists the change set. The single store mutex is
// the atomicity primitive: uniqueness checks and the writes they guard
// happen under one critical section, and a failed check writes nothing.
func (m *Store) ApplyChange(_ context.Context, change *workflow.ChangeSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate uniqueness invariants before touching anything.
	if r := change.CreateRun; r != nil {
		if _, exists := m.runs[r.ID.String()]; exists {
			return worlds.ErrRunExists
		}
	}
	if s := change.CreateStep; s != nil {
		if _, exists := m.steps[s.RunID.String()][s.ID]; exists {
			return worlds.ErrStepExists
		}
	}
	if h := change.CreateHook; h != nil {
		if _, taken := m.tokens[h.Token]; taken {
			return worlds.ErrHookTokenTaken
		}
	}

	if r := change.CreateRun; r != nil {
		m.runs[r.ID.String()] = r.Clone()
	}
	if r := change.UpdateRun; r != nil {
		m.runs[r.ID.String()] = r.Clone()
	}
	if s := change.CreateStep; s != nil {
		key := s.RunID.String()
		if m.steps[key] == nil {
			m.steps[key] = make(map[string]*workflow.Step)
		}
		m.steps[key][s.ID] = s.Clone()
	}
	if s := change.UpdateStep; s != nil {
		key := s.RunID.String()
		if m.steps[key] == nil {
			m.steps[key] = make(map[string]*workflow.Step)
		}
		m.steps[key][s.ID] = s.Clone()
	}
	if h := change.CreateHook; h != nil {
		m.hooks[h.ID.String()] = h.Clone()
		m.tokens[h.Token] = h.ID.String()
	}
	if !change.DeleteHook.IsNil() {
		m.deleteHookLocked(change.DeleteHook.String())
	}
	if !change.ReleaseRunHooks.IsNil() {
		for key, h := range m.hooks {
			if h.RunID == change.ReleaseRunHooks {
				m.deleteHookLocked(key)
			}
		}
	}

	if e := change.Event; e != nil {
		m.events[e.ID.String()] = e.Clone()
	}
	return nil
}

// deleteHookLocked removes a hook and releases its token. Caller holds mu.
func (m *Store) deleteHookLocked(key string) {
	h, ok := m.hooks[key]
	if !ok {
		return
	}
	delete(m.hooks, key)
	if m.tokens[h.Token] == key {
		delete(m.tokens, h.Token)
	}
}

// paginate sorts by key in opts.Order direction, skips past the cursor, and
// truncates to the limit.
func paginate[T any](items []T, opts workflow.ListOpts, key func(T) string) []T {
	desc := opts.Order == workflow.SortDesc
	sort.Slice(items, func(i, k int) bool {
		if desc {
			return key(items[i]) > key(items[k])
		}
		return key(items[i]) < key(items[k])
	})

	if opts.Cursor != "" {
		idx := 0
		for idx < len(items) {
			k := key(items[idx])
			if (desc && k < opts.Cursor) || (!desc && k > opts.Cursor) {
				break
			}
			idx++
		}
		items = items[idx:]
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items
}
