package session_models

import (
	"errors"
	"time"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrAlreadyProcessing = errors.New("a pipeline is already running for this session")
)

// FailedStageOutput is stored for stages a failed run never finished, so the
// outputs map always accounts for every stage of the run.
const FailedStageOutput = "Error occurred during processing"

// Record is the per-user session state surfaced by the status endpoint.
// Stores hand out copies; mutating a Record never touches stored state.
type Record struct {
	UserID       string            `json:"user_id"`
	IsProcessing bool              `json:"is_processing"`
	CurrentStep  int               `json:"current_step"`
	Topic        string            `json:"topic,omitempty"`
	AgentOutputs map[string]string `json:"agent_outputs"`
	CurrentStage string            `json:"current_stage,omitempty"`
	Note         string            `json:"note,omitempty"`
	Error        string            `json:"error,omitempty"`
	FinalResult  string            `json:"final_result,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActivity time.Time         `json:"last_activity_at"`
}

// Clone returns a deep copy safe to hand to callers.
func (r Record) Clone() Record {
	out := r
	if r.AgentOutputs != nil {
		out.AgentOutputs = make(map[string]string, len(r.AgentOutputs))
		for k, v := range r.AgentOutputs {
			out.AgentOutputs[k] = v
		}
	}
	return out
}
