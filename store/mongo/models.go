package mongo

import (
	"fmt"
	"time"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// ── Run model ─────────────────────────────────────────────────────

type runModel struct {
	ID               string     `bson:"_id"`
	WorkflowName     string     `bson:"workflow_name"`
	DeploymentID     string     `bson:"deployment_id,omitempty"`
	Status           string     `bson:"status"`
	SpecVersion      int        `bson:"spec_version"`
	Input            []byte     `bson:"input,omitempty"`
	Output           []byte     `bson:"output,omitempty"`
	Error            string     `bson:"error,omitempty"`
	ExecutionContext []byte     `bson:"execution_context,omitempty"`
	StartedAt        *time.Time `bson:"started_at,omitempty"`
	CompletedAt      *time.Time `bson:"completed_at,omitempty"`
	CreatedAt        time.Time  `bson:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at"`
}

func toRunModel(r *workflow.Run) *runModel {
	return &runModel{
		ID:               r.ID.String(),
		WorkflowName:     r.WorkflowName,
		DeploymentID:     r.DeploymentID,
		Status:           string(r.Status),
		SpecVersion:      r.SpecVersion,
		Input:            r.Input,
		Output:           r.Output,
		Error:            r.Error,
		ExecutionContext: r.ExecutionContext,
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func fromRunModel(m *runModel) (*workflow.Run, error) {
	rID, err := id.ParseRunID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("worlds/mongo: parse run id %q: %w", m.ID, err)
	}
	return &workflow.Run{
		Entity: worlds.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:               rID,
		WorkflowName:     m.WorkflowName,
		DeploymentID:     m.DeploymentID,
		Status:           workflow.RunStatus(m.Status),
		SpecVersion:      m.SpecVersion,
		Input:            m.Input,
		Output:           m.Output,
		Error:            m.Error,
		ExecutionContext: m.ExecutionContext,
		StartedAt:        m.StartedAt,
		CompletedAt:      m.CompletedAt,
	}, nil
}

// ── Step model ────────────────────────────────────────────────────

// The document ID is "runID:stepID": step IDs are only unique per run, and
// the composite key makes the duplicate-step insert fail atomically.
type stepModel struct {
	ID          string     `bson:"_id"`
	RunID       string     `bson:"run_id"`
	StepID      string     `bson:"step_id"`
	Name        string     `bson:"name"`
	Status      string     `bson:"status"`
	Input       []byte     `bson:"input,omitempty"`
	Output      []byte     `bson:"output,omitempty"`
	Error       string     `bson:"error,omitempty"`
	Attempt     int        `bson:"attempt"`
	RetryAfter  *time.Time `bson:"retry_after,omitempty"`
	StartedAt   *time.Time `bson:"started_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func stepDocID(runID, stepID string) string {
	return runID + ":" + stepID
}

func toStepModel(st *workflow.Step) *stepModel {
	return &stepModel{
		ID:          stepDocID(st.RunID.String(), st.ID),
		RunID:       st.RunID.String(),
		StepID:      st.ID,
		Name:        st.Name,
		Status:      string(st.Status),
		Input:       st.Input,
		Output:      st.Output,
		Error:       st.Error,
		Attempt:     st.Attempt,
		RetryAfter:  st.RetryAfter,
		StartedAt:   st.StartedAt,
		CompletedAt: st.CompletedAt,
		CreatedAt:   st.CreatedAt,
		UpdatedAt:   st.UpdatedAt,
	}
}

func fromStepModel(m *stepModel) (*workflow.Step, error) {
	rID, err := id.ParseRunID(m.RunID)
	if err != nil {
		return nil, fmt.Errorf("worlds/mongo: parse step run id %q: %w", m.RunID, err)
	}
	return &workflow.Step{
		Entity: worlds.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		RunID:       rID,
		ID:          m.StepID,
		Name:        m.Name,
		Status:      workflow.StepStatus(m.Status),
		Input:       m.Input,
		Output:      m.Output,
		Error:       m.Error,
		Attempt:     m.Attempt,
		RetryAfter:  m.RetryAfter,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}, nil
}

// ── Hook model ────────────────────────────────────────────────────

type hookModel struct {
	ID          string    `bson:"_id"`
	RunID       string    `bson:"run_id"`
	Token       string    `bson:"token"`
	Metadata    []byte    `bson:"metadata,omitempty"`
	OwnerID     string    `bson:"owner_id,omitempty"`
	ProjectID   string    `bson:"project_id,omitempty"`
	Environment string    `bson:"environment,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}

func toHookModel(h *workflow.Hook) *hookModel {
	return &hookModel{
		ID:          h.ID.String(),
		RunID:       h.RunID.String(),
		Token:       h.Token,
		Metadata:    h.Metadata,
		OwnerID:     h.OwnerID,
		ProjectID:   h.ProjectID,
		Environment: h.Environment,
		CreatedAt:   h.CreatedAt,
	}
}

func fromHookModel(m *hookModel) (*workflow.Hook, error) {
	hID, err := id.ParseHookID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("worlds/mongo: parse hook id %q: %w", m.ID, err)
	}
	rID, err := id.ParseRunID(m.RunID)
	if err != nil {
		return nil, fmt.Errorf("worlds/mongo: parse hook run id %q: %w", m.RunID, err)
	}
	return &workflow.Hook{
		RunID:       rID,
		ID:          hID,
		Token:       m.Token,
		Metadata:    m.Metadata,
		OwnerID:     m.OwnerID,
		ProjectID:   m.ProjectID,
		Environment: m.Environment,
		CreatedAt:   m.CreatedAt,
	}, nil
}

// ── Event model ───────────────────────────────────────────────────

type eventModel struct {
	ID            string    `bson:"_id"`
	RunID         string    `bson:"run_id"`
	Type          string    `bson:"type"`
	CorrelationID string    `bson:"correlation_id,omitempty"`
	Data          []byte    `bson:"data,omitempty"`
	SpecVersion   int       `bson:"spec_version"`
	CreatedAt     time.Time `bson:"created_at"`
}

func toEventModel(e *workflow.Event) *eventModel {
	return &eventModel{
		ID:            e.ID.String(),
		RunID:         e.RunID.String(),
		Type:          string(e.Type),
		CorrelationID: e.CorrelationID,
		Data:          e.Data,
		SpecVersion:   e.SpecVersion,
		CreatedAt:     e.CreatedAt,
	}
}

func fromEventModel(m *eventModel) (*workflow.Event, error) {
	eID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("worlds/mongo: parse event id %q: %w", m.ID, err)
	}
	rID, err := id.ParseRunID(m.RunID)
	if err != nil {
		return nil, fmt.Errorf("worlds/mongo: parse event run id %q: %w", m.RunID, err)
	}
	return &workflow.Event{
		ID:            eID,
		RunID:         rID,
		Type:          workflow.EventType(m.Type),
		CorrelationID: m.CorrelationID,
		Data:          m.Data,
		SpecVersion:   m.SpecVersion,
		CreatedAt:     m.CreatedAt,
	}, nil
}
