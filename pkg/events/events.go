// Package events defines the messages exchanged between the trigger
// evaluator and the execution engine over the event bus.
package events

import (
	"time"

	"github.com/fideliza/fideliza/pkg/models"
)

type EventType string

const Topic = "fideliza.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	TriggerFiredEvent EventType = "trigger.fired"

	RunStartedEvent   EventType = "run.started"
	RunDelayedEvent   EventType = "run.delayed"
	RunResumedEvent   EventType = "run.resumed"
	RunCompletedEvent EventType = "run.completed"
	RunFailedEvent    EventType = "run.failed"
	RunCancelledEvent EventType = "run.cancelled"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
}

// TriggerFired carries one deduplicated trigger match from the evaluator to
// the engine.
type TriggerFired struct {
	BaseEvent

	Trigger models.TriggerEvent `json:"trigger"`
}

func (e TriggerFired) GetType() EventType {
	return TriggerFiredEvent
}

type RunStarted struct {
	BaseEvent

	RunID           string `json:"run_id"`
	WorkflowVersion int    `json:"workflow_version"`
	EntityID        string `json:"entity_id"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunDelayed struct {
	BaseEvent

	RunID    string    `json:"run_id"`
	ResumeAt time.Time `json:"resume_at"`
}

func (e RunDelayed) GetType() EventType {
	return RunDelayedEvent
}

type RunResumed struct {
	BaseEvent

	RunID string `json:"run_id"`
}

func (e RunResumed) GetType() EventType {
	return RunResumedEvent
}

type RunCompleted struct {
	BaseEvent

	RunID      string        `json:"run_id"`
	EntityID   string        `json:"entity_id"`
	Duration   time.Duration `json:"duration"`
	StepsTaken int           `json:"steps_taken"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunFailed struct {
	BaseEvent

	RunID    string `json:"run_id"`
	EntityID string `json:"entity_id"`
	Error    string `json:"error"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type RunCancelled struct {
	BaseEvent

	RunID  string `json:"run_id"`
	Reason string `json:"reason,omitempty"`
}

func (e RunCancelled) GetType() EventType {
	return RunCancelledEvent
}
