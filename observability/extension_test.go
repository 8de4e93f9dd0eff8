package observability_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/mizzle-dev/worlds/ext"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/observability"
	"github.com/mizzle-dev/worlds/workflow"
)

func newTestExtension(t *testing.T) (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	e, err := observability.NewMetricsExtensionWithProvider(provider)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return e, reader
}

func newTestRun() *workflow.Run {
	return &workflow.Run{
		ID:           id.NewRunID(),
		WorkflowName: "order-flow",
	}
}

// counterValue sums all data points for the named counter, or 0 when the
// counter never recorded.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: unexpected data type %T", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestMetricsExtension_Name(t *testing.T) {
	e, _ := newTestExtension(t)
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_RunLifecycle(t *testing.T) {
	e, reader := newTestExtension(t)
	ctx := context.Background()
	run := newTestRun()

	if err := e.OnRunCreated(ctx, run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.OnRunStarted(ctx, run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.OnRunCompleted(ctx, run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.OnRunFailed(ctx, run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.OnRunCancelled(ctx, run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, name := range []string{
		"worlds.run.created",
		"worlds.run.started",
		"worlds.run.completed",
		"worlds.run.failed",
		"worlds.run.cancelled",
	} {
		if got := counterValue(t, reader, name); got != 1 {
			t.Errorf("%s: want 1, got %d", name, got)
		}
	}
}

func TestMetricsExtension_StepOutcomes(t *testing.T) {
	e, reader := newTestExtension(t)
	ctx := context.Background()
	step := &workflow.Step{ID: "charge", RunID: id.NewRunID(), Name: "charge-card"}

	if err := e.OnStepCompleted(ctx, step); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.OnStepFailed(ctx, step); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := counterValue(t, reader, "worlds.step.completed"); got != 1 {
		t.Errorf("worlds.step.completed: want 1, got %d", got)
	}
	if got := counterValue(t, reader, "worlds.step.failed"); got != 1 {
		t.Errorf("worlds.step.failed: want 1, got %d", got)
	}
}

func TestMetricsExtension_HookConflict(t *testing.T) {
	e, reader := newTestExtension(t)

	if err := e.OnHookConflict(context.Background(), id.NewRunID(), "tok-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := counterValue(t, reader, "worlds.hook.conflict"); got != 1 {
		t.Errorf("worlds.hook.conflict: want 1, got %d", got)
	}
}

func TestMetricsExtension_ViaRegistry(t *testing.T) {
	e, reader := newTestExtension(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := ext.NewRegistry(logger)
	reg.Register(e)

	ctx := context.Background()
	run := newTestRun()
	step := &workflow.Step{ID: "s1", RunID: run.ID, Name: "reserve"}

	reg.EmitRunCreated(ctx, run)
	reg.EmitRunStarted(ctx, run)
	reg.EmitRunCompleted(ctx, run)
	reg.EmitRunFailed(ctx, run)
	reg.EmitRunCancelled(ctx, run)
	reg.EmitStepCompleted(ctx, step)
	reg.EmitStepFailed(ctx, step)
	reg.EmitHookConflict(ctx, run.ID, "tok-9")

	for _, name := range []string{
		"worlds.run.created",
		"worlds.run.started",
		"worlds.run.completed",
		"worlds.run.failed",
		"worlds.run.cancelled",
		"worlds.step.completed",
		"worlds.step.failed",
		"worlds.hook.conflict",
	} {
		if got := counterValue(t, reader, name); got != 1 {
			t.Errorf("%s: want 1, got %d", name, got)
		}
	}
}
