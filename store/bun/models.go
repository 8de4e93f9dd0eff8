package bunstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// ── Run model ─────────────────────────────────────────────────────

type runModel struct {
	bun.BaseModel `bun:"table:worlds_runs"`

	ID               string     `bun:"id,pk"`
	WorkflowName     string     `bun:"workflow_name,notnull"`
	DeploymentID     string     `bun:"deployment_id"`
	Status           string     `bun:"status,notnull,default:'pending'"`
	SpecVersion      int        `bun:"spec_version,notnull"`
	Input            []byte     `bun:"input,type:blob"`
	Output           []byte     `bun:"output,type:blob"`
	Error            string     `bun:"error"`
	ExecutionContext []byte     `bun:"execution_context,type:blob"`
	StartedAt        *time.Time `bun:"started_at"`
	CompletedAt      *time.Time `bun:"completed_at"`
	CreatedAt        time.Time  `bun:"created_at,notnull"`
	UpdatedAt        time.Time  `bun:"updated_at,notnull"`
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
		return nil, fmt.Errorf("worlds/bun: parse run id %q: %w", m.ID, err)
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

type stepModel struct {
	bun.BaseModel `bun:"table:worlds_steps"`

	RunID       string     `bun:"run_id,pk"`
	ID          string     `bun:"id,pk"`
	Name        string     `bun:"name,notnull"`
	Status      string     `bun:"status,notnull,default:'pending'"`
	Input       []byte     `bun:"input,type:blob"`
	Output      []byte     `bun:"output,type:blob"`
	Error       string     `bun:"error"`
	Attempt     int        `bun:"attempt,notnull,default:0"`
	RetryAfter  *time.Time `bun:"retry_after"`
	StartedAt   *time.Time `bun:"started_at"`
	CompletedAt *time.Time `bun:"completed_at"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull"`
}

func toStepModel(st *workflow.Step) *stepModel {
	return &stepModel{
		RunID:       st.RunID.String(),
		ID:          st.ID,
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
		return nil, fmt.Errorf("worlds/bun: parse step run id %q: %w", m.RunID, err)
	}
	return &workflow.Step{
		Entity: worlds.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		RunID:       rID,
		ID:          m.ID,
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
	bun.BaseModel `bun:"table:worlds_hooks"`

	ID          string    `bun:"id,pk"`
	RunID       string    `bun:"run_id,notnull"`
	Token       string    `bun:"token,notnull,unique"`
	Metadata    []byte    `bun:"metadata,type:blob"`
	OwnerID     string    `bun:"owner_id"`
	ProjectID   string    `bun:"project_id"`
	Environment string    `bun:"environment"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
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
		return nil, fmt.Errorf("worlds/bun: parse hook id %q: %w", m.ID, err)
	}
	rID, err := id.ParseRunID(m.RunID)
	if err != nil {
		return nil, fmt.Errorf("worlds/bun: parse hook run id %q: %w", m.RunID, err)
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
	bun.BaseModel `bun:"table:worlds_events"`

	ID            string    `bun:"id,pk"`
	RunID         string    `bun:"run_id,notnull"`
	Type          string    `bun:"type,notnull"`
	CorrelationID string    `bun:"correlation_id"`
	Data          []byte    `bun:"data,type:blob"`
	SpecVersion   int       `bun:"spec_version,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
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
		return nil, fmt.Errorf("worlds/bun: parse event id %q: %w", m.ID, err)
	}
	rID, err := id.ParseRunID(m.RunID)
	if err != nil {
		return nil, fmt.Errorf("worlds/bun: parse event run id %q: %w", m.RunID, err)
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
