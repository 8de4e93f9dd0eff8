package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/ext"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// DefaultListLimit is the page size used when a list request does not set one.
const DefaultListLimit = 50

// Engine is the event application gateway. It exclusively owns writes to
// runs, steps, hooks, and events; callers mutate state only by submitting
// events through CreateEvent. An Engine is safe for concurrent use.
type Engine struct {
	store      workflow.Store
	logger     *slog.Logger
	clock      func() time.Time
	tracer     trace.Tracer
	extensions *ext.Registry

	// set by options, consumed in New
	tracerProvider trace.TracerProvider
	pendingExts    []ext.Extension
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the engine's time source. All timestamps stamped
// during one event application come from a single clock read.
// Defaults to time.Now().UTC.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithExtension registers a lifecycle extension. Extensions observe
// committed state after a successful apply; their errors are logged,
// never returned to the caller.
func WithExtension(x ext.Extension) Option {
	return func(e *Engine) {
		e.pendingExts = append(e.pendingExts, x)
	}
}

// WithTracerProvider sets a custom OTel TracerProvider. If not set, the
// global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracerProvider = tp
	}
}

// New creates an Engine over the given store.
func New(store workflow.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, worlds.ErrNoStore
	}

	e := &Engine{
		store:  store,
		logger: slog.Default(),
		clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}

	tp := e.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	e.tracer = tp.Tracer("github.com/mizzle-dev/worlds/engine")

	e.extensions = ext.NewRegistry(e.logger)
	for _, x := range e.pendingExts {
		e.extensions.Register(x)
	}
	e.pendingExts = nil

	return e, nil
}

// Result is the bundle returned by CreateEvent. Event is always set; Run,
// Step, and Hook are populated only when the event touched them.
type Result struct {
	Event *workflow.Event `json:"event"`
	Run   *workflow.Run   `json:"run,omitempty"`
	Step  *workflow.Step  `json:"step,omitempty"`
	Hook  *workflow.Hook  `json:"hook,omitempty"`

	// reCancel marks an idempotent run_cancelled on an already-cancelled
	// run. The cancel extension hook is not re-fired for it.
	reCancel bool
}

// resolve applies payload redaction to the result entities.
func (r *Result) resolve(mode workflow.ResolveData) *Result {
	if !mode.None() {
		return r
	}
	cp := &Result{Event: r.Event.Redacted(), reCancel: r.reCancel}
	if r.Run != nil {
		cp.Run = r.Run.Redacted()
	}
	if r.Step != nil {
		cp.Step = r.Step.Redacted()
	}
	if r.Hook != nil {
		cp.Hook = r.Hook.Redacted()
	}
	return cp
}

// CreateEvent applies one event to the current state of a run.
//
// runID is id.Nil only for run_created, where the new run's ID is minted
// (or taken from req.RunID when set). For every other event type runID must
// reference an existing run.
//
// The load-validate-mutate-append sequence runs under the store's per-run
// lock, so concurrent calls for the same run serialize; calls for different
// runs proceed in parallel. A failed validation leaves zero persisted side
// effects.
func (e *Engine) CreateEvent(ctx context.Context, runID id.RunID, req workflow.EventRequest, opts workflow.GetOpts) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "worlds.events.create", trace.WithAttributes(
		attribute.String("event.type", string(req.Type)),
	))
	defer span.End()

	res, err := e.createEvent(ctx, runID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("run.id", res.Event.RunID.String()),
		attribute.String("event.id", res.Event.ID.String()),
	)
	e.emit(ctx, res)

	return res.resolve(opts.Resolve), nil
}

func (e *Engine) createEvent(ctx context.Context, runID id.RunID, req workflow.EventRequest) (*Result, error) {
	if !req.Type.Valid() {
		return nil, worlds.Errorf(worlds.CodeBadRequest, "unknown event type %q", req.Type)
	}
	if req.Type == workflow.EventHookConflict {
		return nil, worlds.NewError(worlds.CodeBadRequest, "hook_conflict is emitted by the engine, not accepted")
	}

	if req.Type == workflow.EventRunCreated {
		return e.createRun(ctx, runID, req)
	}

	if runID.IsNil() {
		return nil, worlds.Errorf(worlds.CodeBadRequest, "run id required for %s", req.Type)
	}

	var res *Result
	err := e.store.WithRunLock(ctx, runID, func(ctx context.Context) error {
		var err error
		res, err = e.applyLocked(ctx, runID, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// emit notifies extensions after a successful apply.
func (e *Engine) emit(ctx context.Context, res *Result) {
	switch res.Event.Type {
	case workflow.EventRunCreated:
		e.extensions.EmitRunCreated(ctx, res.Run)
	case workflow.EventRunStarted:
		e.extensions.EmitRunStarted(ctx, res.Run)
	case workflow.EventRunCompleted:
		e.extensions.EmitRunCompleted(ctx, res.Run)
	case workflow.EventRunFailed:
		e.extensions.EmitRunFailed(ctx, res.Run)
	case workflow.EventRunCancelled:
		if !res.reCancel {
			e.extensions.EmitRunCancelled(ctx, res.Run)
		}
	case workflow.EventStepCompleted:
		e.extensions.EmitStepCompleted(ctx, res.Step)
	case workflow.EventStepFailed:
		e.extensions.EmitStepFailed(ctx, res.Step)
	case workflow.EventHookConflict:
		var data workflow.HookConflictData
		if err := unmarshalData(res.Event.Data, &data); err == nil {
			e.extensions.EmitHookConflict(ctx, res.Event.RunID, data.Token)
		}
	}
}
