package engine_test

import (
	"context"
	"testing"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

func TestListRunsPagination(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		run := createRun(t, e, "paged")
		ids = append(ids, run.ID.String())
	}
	createRun(t, e, "unrelated")

	filter := workflow.RunFilter{WorkflowName: "paged"}

	// Default order is newest first.
	page1, err := e.ListRuns(ctx, filter, workflow.ListOpts{Limit: 2})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1.Items) != 2 || !page1.HasMore {
		t.Fatalf("page 1 = %d items, hasMore=%v", len(page1.Items), page1.HasMore)
	}
	if page1.Items[0].ID.String() != ids[4] || page1.Items[1].ID.String() != ids[3] {
		t.Fatalf("page 1 order: %s, %s", page1.Items[0].ID, page1.Items[1].ID)
	}
	if page1.Cursor != ids[3] {
		t.Fatalf("cursor = %s, want %s", page1.Cursor, ids[3])
	}

	page2, err := e.ListRuns(ctx, filter, workflow.ListOpts{Limit: 2, Cursor: page1.Cursor})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2.Items) != 2 || !page2.HasMore || page2.Items[0].ID.String() != ids[2] {
		t.Fatalf("page 2 wrong: %+v", page2)
	}

	page3, err := e.ListRuns(ctx, filter, workflow.ListOpts{Limit: 2, Cursor: page2.Cursor})
	if err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if len(page3.Items) != 1 || page3.HasMore {
		t.Fatalf("page 3 = %d items, hasMore=%v", len(page3.Items), page3.HasMore)
	}
}

func TestListEventsAscendingByDefault(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	ctx := context.Background()
	run := createRun(t, e, "replay")
	createStep(t, e, run.ID, "s1")
	createHook(t, e, run.ID, "tok")

	page, err := e.ListEvents(ctx, run.ID, workflow.ListOpts{})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(page.Items) != 3 {
		t.Fatalf("events = %d, want 3", len(page.Items))
	}
	if page.Items[0].Type != workflow.EventRunCreated {
		t.Fatalf("replay must start at run_created, got %s", page.Items[0].Type)
	}
	for i := 1; i < len(page.Items); i++ {
		if page.Items[i-1].ID.String() >= page.Items[i].ID.String() {
			t.Fatalf("events out of order at %d", i)
		}
	}
}

func TestListEventsByCorrelationID(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	ctx := context.Background()
	run := createRun(t, e, "corr")
	createStep(t, e, run.ID, "shared")

	page, err := e.ListEventsByCorrelationID(ctx, "shared", workflow.ListOpts{})
	if err != nil {
		t.Fatalf("list by correlation: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].CorrelationID != "shared" {
		t.Fatalf("got %+v", page.Items)
	}

	_, err = e.ListEventsByCorrelationID(ctx, "", workflow.ListOpts{})
	wantCode(t, err, worlds.CodeBadRequest)
}

func TestResolveDataRedaction(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	ctx := context.Background()
	run := createRun(t, e, "redacted")

	// Full payloads by default.
	full, err := e.GetRun(ctx, run.ID, workflow.GetOpts{})
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if len(full.Input) == 0 {
		t.Fatal("default read stripped input")
	}

	// ResolveNone strips payloads but keeps structure.
	bare, err := e.GetRun(ctx, run.ID, workflow.GetOpts{Resolve: workflow.ResolveNone})
	if err != nil {
		t.Fatalf("get run redacted: %v", err)
	}
	if bare.Input != nil {
		t.Fatalf("redacted run still carries input: %s", bare.Input)
	}
	if bare.ID != run.ID || bare.WorkflowName != "redacted" {
		t.Fatalf("redaction stripped structural fields: %+v", bare)
	}

	// List paths honor it too.
	page, err := e.ListEvents(ctx, run.ID, workflow.ListOpts{Resolve: workflow.ResolveNone})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	for _, evt := range page.Items {
		if evt.Data != nil {
			t.Fatalf("redacted event still carries data: %s", evt.Data)
		}
	}

	// CreateEvent results are redacted on request as well.
	res, err := e.CreateEvent(ctx, run.ID, workflow.EventRequest{
		Type: workflow.EventRunStarted,
	}, workflow.GetOpts{Resolve: workflow.ResolveNone})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.Run.Input != nil {
		t.Fatal("redacted result still carries input")
	}
}

func TestGetHookByTokenValidation(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	ctx := context.Background()

	_, err := e.GetHookByToken(ctx, "", workflow.GetOpts{})
	wantCode(t, err, worlds.CodeBadRequest)

	_, err = e.GetHookByToken(ctx, "nobody", workflow.GetOpts{})
	wantCode(t, err, worlds.CodeNotFound)
}

func TestListHooksAcrossRuns(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	ctx := context.Background()

	runA := createRun(t, e, "a")
	runB := createRun(t, e, "b")
	createHook(t, e, runA.ID, "tok-a")
	createHook(t, e, runB.ID, "tok-b")

	all, err := e.ListHooks(ctx, id.Nil, workflow.ListOpts{})
	if err != nil {
		t.Fatalf("list all hooks: %v", err)
	}
	if len(all.Items) != 2 {
		t.Fatalf("all hooks = %d, want 2", len(all.Items))
	}

	onlyA, err := e.ListHooks(ctx, runA.ID, workflow.ListOpts{})
	if err != nil {
		t.Fatalf("list run A hooks: %v", err)
	}
	if len(onlyA.Items) != 1 || onlyA.Items[0].RunID != runA.ID {
		t.Fatalf("run A hooks = %+v", onlyA.Items)
	}
}
