package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// TriggerEvent is emitted by the evaluator when an entity matches a trigger
// node. DedupeKey guarantees at-most-one event per entity per trigger
// condition per evaluation window.
type TriggerEvent struct {
	WorkflowID string    `json:"workflow_id"`
	NodeID     string    `json:"node_id"`
	EntityID   string    `json:"entity_id"`
	FiredAt    time.Time `json:"fired_at"`
	DedupeKey  string    `json:"dedupe_key"`
}

// DedupeKey builds the collision-resistant key for one trigger episode.
// windowStart anchors the episode (for an inactivity trigger, the day the
// entity crossed the threshold) so re-evaluating within the same window is
// a no-op while a new episode fires again.
func DedupeKey(workflowID, nodeID, entityID string, windowStart time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf(
		"%s|%s|%s|%d",
		workflowID, nodeID, entityID, windowStart.UTC().Unix(),
	)))

	return hex.EncodeToString(sum[:])
}
