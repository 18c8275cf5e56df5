// Package entities exposes the read-only client state the evaluator scans
// and condition nodes inspect. The CRM owning this data is an external
// collaborator; only the snapshot contract lives here.
package entities

import (
	"context"
	"errors"
	"slices"
	"time"
)

// ErrEntityNotFound indicates no snapshot exists for the identifier.
var ErrEntityNotFound = errors.New("entity not found")

// Snapshot is a point-in-time view of one client. Trigger evaluation and
// condition checks read it; nothing in this repo writes it.
type Snapshot struct {
	EntityID           string    `json:"entity_id"`
	LastActivityAt     time.Time `json:"last_activity_at"`
	SubscriptionActive bool      `json:"subscription_active"`
	Tags               []string  `json:"tags,omitempty"`
	Unsubscribed       bool      `json:"unsubscribed"`
}

// HasTag reports whether the client carries the tag.
func (s *Snapshot) HasTag(tag string) bool {
	return slices.Contains(s.Tags, tag)
}

// Source serves entity snapshots.
type Source interface {
	All(ctx context.Context) ([]*Snapshot, error)
	GetByID(ctx context.Context, entityID string) (*Snapshot, error)
}

// MemorySource is the fixed snapshot set used by tests and dev runs.
type MemorySource struct {
	snapshots map[string]*Snapshot
}

func NewMemorySource(snapshots ...*Snapshot) *MemorySource {
	byID := make(map[string]*Snapshot, len(snapshots))
	for _, s := range snapshots {
		byID[s.EntityID] = s
	}

	return &MemorySource{snapshots: byID}
}

func (m *MemorySource) All(_ context.Context) ([]*Snapshot, error) {
	out := make([]*Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s)
	}

	return out, nil
}

func (m *MemorySource) GetByID(_ context.Context, entityID string) (*Snapshot, error) {
	s, ok := m.snapshots[entityID]
	if !ok {
		return nil, ErrEntityNotFound
	}

	return s, nil
}
