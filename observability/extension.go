package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mizzle-dev/worlds/ext"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*MetricsExtension)(nil)
	_ ext.RunCreated    = (*MetricsExtension)(nil)
	_ ext.RunStarted    = (*MetricsExtension)(nil)
	_ ext.RunCompleted  = (*MetricsExtension)(nil)
	_ ext.RunFailed     = (*MetricsExtension)(nil)
	_ ext.RunCancelled  = (*MetricsExtension)(nil)
	_ ext.StepCompleted = (*MetricsExtension)(nil)
	_ ext.StepFailed    = (*MetricsExtension)(nil)
	_ ext.HookConflict  = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle metrics via OpenTelemetry
// counters. Register it as an engine extension to automatically track run
// creations, completions, failures, cancellations, step outcomes, and hook
// token conflicts.
type MetricsExtension struct {
	runsCreated    metric.Int64Counter
	runsStarted    metric.Int64Counter
	runsCompleted  metric.Int64Counter
	runsFailed     metric.Int64Counter
	runsCancelled  metric.Int64Counter
	stepsCompleted metric.Int64Counter
	stepsFailed    metric.Int64Counter
	hookConflicts  metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global
// MeterProvider.
func NewMetricsExtension() (*MetricsExtension, error) {
	return NewMetricsExtensionWithProvider(otel.GetMeterProvider())
}

// NewMetricsExtensionWithProvider creates a MetricsExtension with the
// provided MeterProvider. Pass a sdk/metric provider with a manual reader
// for testing.
func NewMetricsExtensionWithProvider(provider metric.MeterProvider) (*MetricsExtension, error) {
	meter := provider.Meter("github.com/mizzle-dev/worlds/observability")

	m := &MetricsExtension{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.runsCreated, "worlds.run.created", "Runs created"},
		{&m.runsStarted, "worlds.run.started", "Runs started"},
		{&m.runsCompleted, "worlds.run.completed", "Runs completed"},
		{&m.runsFailed, "worlds.run.failed", "Runs failed"},
		{&m.runsCancelled, "worlds.run.cancelled", "Runs cancelled"},
		{&m.stepsCompleted, "worlds.step.completed", "Steps completed"},
		{&m.stepsFailed, "worlds.step.failed", "Steps failed"},
		{&m.hookConflicts, "worlds.hook.conflict", "Hook token conflicts"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("worlds/observability: create counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Run lifecycle hooks ─────────────────────────────

// OnRunCreated implements ext.RunCreated.
func (m *MetricsExtension) OnRunCreated(ctx context.Context, run *workflow.Run) error {
	m.runsCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow", run.WorkflowName),
	))
	return nil
}

// OnRunStarted implements ext.RunStarted.
func (m *MetricsExtension) OnRunStarted(ctx context.Context, run *workflow.Run) error {
	m.runsStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow", run.WorkflowName),
	))
	return nil
}

// OnRunCompleted implements ext.RunCompleted.
func (m *MetricsExtension) OnRunCompleted(ctx context.Context, run *workflow.Run) error {
	m.runsCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow", run.WorkflowName),
	))
	return nil
}

// OnRunFailed implements ext.RunFailed.
func (m *MetricsExtension) OnRunFailed(ctx context.Context, run *workflow.Run) error {
	m.runsFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow", run.WorkflowName),
	))
	return nil
}

// OnRunCancelled implements ext.RunCancelled.
func (m *MetricsExtension) OnRunCancelled(ctx context.Context, run *workflow.Run) error {
	m.runsCancelled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow", run.WorkflowName),
	))
	return nil
}

// ── Step and hook lifecycle hooks ───────────────────

// OnStepCompleted implements ext.StepCompleted.
func (m *MetricsExtension) OnStepCompleted(ctx context.Context, step *workflow.Step) error {
	m.stepsCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step", step.Name),
	))
	return nil
}

// OnStepFailed implements ext.StepFailed.
func (m *MetricsExtension) OnStepFailed(ctx context.Context, step *workflow.Step) error {
	m.stepsFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step", step.Name),
	))
	return nil
}

// OnHookConflict implements ext.HookConflict.
func (m *MetricsExtension) OnHookConflict(ctx context.Context, runID id.RunID, _ string) error {
	m.hookConflicts.Add(ctx, 1)
	return nil
}
