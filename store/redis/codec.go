package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// Hash field codecs. Times travel as RFC3339Nano strings; optional times
// are simply absent from the hash.

func runToMap(r *workflow.Run) map[string]any {
	m := map[string]any{
		"id":            r.ID.String(),
		"workflow_name": r.WorkflowName,
		"deployment_id": r.DeploymentID,
		"status":        string(r.Status),
		"spec_version":  strconv.Itoa(r.SpecVersion),
		"input":         string(r.Input),
		"output":        string(r.Output),
		"error":         r.Error,
		"exec_context":  string(r.ExecutionContext),
		"created_at":    r.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":    r.UpdatedAt.Format(time.RFC3339Nano),
	}
	if r.StartedAt != nil {
		m["started_at"] = r.StartedAt.Format(time.RFC3339Nano)
	}
	if r.CompletedAt != nil {
		m["completed_at"] = r.CompletedAt.Format(time.RFC3339Nano)
	}
	return m
}

func mapToRun(m map[string]string) (*workflow.Run, error) {
	rID, err := id.ParseRunID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("worlds/redis: parse run id: %w", err)
	}
	specVersion, _ := strconv.Atoi(m["spec_version"])

	r := &workflow.Run{
		Entity:           entityFromMap(m),
		ID:               rID,
		WorkflowName:     m["workflow_name"],
		DeploymentID:     m["deployment_id"],
		Status:           workflow.RunStatus(m["status"]),
		SpecVersion:      specVersion,
		Input:            rawField(m, "input"),
		Output:           rawField(m, "output"),
		Error:            m["error"],
		ExecutionContext: rawField(m, "exec_context"),
		StartedAt:        timeField(m, "started_at"),
		CompletedAt:      timeField(m, "completed_at"),
	}
	return r, nil
}

func stepToMap(st *workflow.Step) map[string]any {
	m := map[string]any{
		"run_id":     st.RunID.String(),
		"id":         st.ID,
		"name":       st.Name,
		"status":     string(st.Status),
		"input":      string(st.Input),
		"output":     string(st.Output),
		"error":      st.Error,
		"attempt":    strconv.Itoa(st.Attempt),
		"created_at": st.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": st.UpdatedAt.Format(time.RFC3339Nano),
	}
	if st.RetryAfter != nil {
		m["retry_after"] = st.RetryAfter.Format(time.RFC3339Nano)
	}
	if st.StartedAt != nil {
		m["started_at"] = st.StartedAt.Format(time.RFC3339Nano)
	}
	if st.CompletedAt != nil {
		m["completed_at"] = st.CompletedAt.Format(time.RFC3339Nano)
	}
	return m
}

func mapToStep(m map[string]string) (*workflow.Step, error) {
	rID, err := id.ParseRunID(m["run_id"])
	if err != nil {
		return nil, fmt.Errorf("worlds/redis: parse step run id: %w", err)
	}
	attempt, _ := strconv.Atoi(m["attempt"])

	return &workflow.Step{
		Entity:      entityFromMap(m),
		RunID:       rID,
		ID:          m["id"],
		Name:        m["name"],
		Status:      workflow.StepStatus(m["status"]),
		Input:       rawField(m, "input"),
		Output:      rawField(m, "output"),
		Error:       m["error"],
		Attempt:     attempt,
		RetryAfter:  timeField(m, "retry_after"),
		StartedAt:   timeField(m, "started_at"),
		CompletedAt: timeField(m, "completed_at"),
	}, nil
}

func hookToMap(h *workflow.Hook) map[string]any {
	return map[string]any{
		"run_id":      h.RunID.String(),
		"id":          h.ID.String(),
		"token":       h.Token,
		"metadata":    string(h.Metadata),
		"owner_id":    h.OwnerID,
		"project_id":  h.ProjectID,
		"environment": h.Environment,
		"created_at":  h.CreatedAt.Format(time.RFC3339Nano),
	}
}

func mapToHook(m map[string]string) (*workflow.Hook, error) {
	rID, err := id.ParseRunID(m["run_id"])
	if err != nil {
		return nil, fmt.Errorf("worlds/redis: parse hook run id: %w", err)
	}
	hID, err := id.ParseHookID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("worlds/redis: parse hook id: %w", err)
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])

	return &workflow.Hook{
		RunID:       rID,
		ID:          hID,
		Token:       m["token"],
		Metadata:    rawField(m, "metadata"),
		OwnerID:     m["owner_id"],
		ProjectID:   m["project_id"],
		Environment: m["environment"],
		CreatedAt:   createdAt,
	}, nil
}

func eventToMap(e *workflow.Event) map[string]any {
	return map[string]any{
		"id":             e.ID.String(),
		"run_id":         e.RunID.String(),
		"type":           string(e.Type),
		"correlation_id": e.CorrelationID,
		"data":           string(e.Data),
		"spec_version":   strconv.Itoa(e.SpecVersion),
		"created_at":     e.CreatedAt.Format(time.RFC3339Nano),
	}
}

func mapToEvent(m map[string]string) (*workflow.Event, error) {
	eID, err := id.ParseEventID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("worlds/redis: parse event id: %w", err)
	}
	rID, err := id.ParseRunID(m["run_id"])
	if err != nil {
		return nil, fmt.Errorf("worlds/redis: parse event run id: %w", err)
	}
	specVersion, _ := strconv.Atoi(m["spec_version"])
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])

	return &workflow.Event{
		ID:            eID,
		RunID:         rID,
		Type:          workflow.EventType(m["type"]),
		CorrelationID: m["correlation_id"],
		Data:          rawField(m, "data"),
		SpecVersion:   specVersion,
		CreatedAt:     createdAt,
	}, nil
}

func entityFromMap(m map[string]string) worlds.Entity {
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])
	return worlds.Entity{CreatedAt: createdAt, UpdatedAt: updatedAt}
}

func rawField(m map[string]string, field string) []byte {
	if v := m[field]; v != "" {
		return []byte(v)
	}
	return nil
}

func timeField(m map[string]string, field string) *time.Time {
	v := m[field]
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil
	}
	return &t
}
