package workflow

import (
	"encoding/json"
	"time"

	"github.com/mizzle-dev/worlds/id"
)

// Hook is a durable wait-point addressable by an externally supplied
// security token. The token is globally unique while its owning run is
// non-terminal; hooks are deleted — and their tokens released — the moment
// the run terminates, so later runs can reuse them.
type Hook struct {
	RunID       id.RunID        `json:"run_id"`
	ID          id.HookID       `json:"id"`
	Token       string          `json:"token"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	OwnerID     string          `json:"owner_id,omitempty"`
	ProjectID   string          `json:"project_id,omitempty"`
	Environment string          `json:"environment,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Clone returns a deep copy.
func (h *Hook) Clone() *Hook {
	cp := *h
	cp.Metadata = cloneRaw(h.Metadata)
	return &cp
}
