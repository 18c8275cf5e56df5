package models

import "time"

// RunState is the execution state machine:
// pending → running → {waiting_delay → running}* → completed | failed | cancelled.
type RunState string

const (
	RunStatePending      RunState = "pending"
	RunStateRunning      RunState = "running"
	RunStateWaitingDelay RunState = "waiting_delay"
	RunStateCompleted    RunState = "completed"
	RunStateFailed       RunState = "failed"
	RunStateCancelled    RunState = "cancelled"
)

// IsTerminal reports whether no further steps may be processed.
func (s RunState) IsTerminal() bool {
	return s == RunStateCompleted || s == RunStateFailed || s == RunStateCancelled
}

// StepResult is the outcome recorded for a single visited node.
type StepResult string

const (
	StepSuccess StepResult = "success"
	StepFailure StepResult = "failure"
	StepSkipped StepResult = "skipped"
)

// RunStep is one entry of a run's history.
type RunStep struct {
	NodeID    string     `json:"node_id"`
	EnteredAt time.Time  `json:"entered_at"`
	Result    StepResult `json:"result"`
	Detail    string     `json:"detail,omitempty"`
}

// Run is one execution of a workflow version for one entity. Owned
// exclusively by the execution engine; workflow edits never touch it.
type Run struct {
	ID              string    `json:"id"`
	WorkflowID      string    `json:"workflow_id"`
	WorkflowVersion int       `json:"workflow_version"`
	EntityID        string    `json:"entity_id"`
	State           RunState  `json:"state"`
	Cursor          string    `json:"cursor"` // Node the engine is positioned at
	ResumeAt        *time.Time `json:"resume_at,omitempty"` // Set while waiting_delay
	History         []RunStep `json:"history"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// AppendStep records a visited node. Callers must not append to a terminal
// run; the engine guards every transition through this invariant.
func (r *Run) AppendStep(nodeID string, result StepResult, detail string) {
	r.History = append(r.History, RunStep{
		NodeID:    nodeID,
		EnteredAt: time.Now().UTC(),
		Result:    result,
		Detail:    detail,
	})
}
