package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncEventKind classifies divergence between local and remote state.
type SyncEventKind string

const (
	EventRemoteReadFailed       SyncEventKind = "remote_read_failed"
	EventRemoteWriteFailed      SyncEventKind = "remote_write_failed"
	EventReconciliationConflict SyncEventKind = "reconciliation_conflict"
	EventOutboxDropped          SyncEventKind = "outbox_dropped"
)

// SyncEvent makes optimistic-write divergence observable after the caller
// has already received its result.
type SyncEvent struct {
	ID         string            `json:"id"`
	Kind       SyncEventKind     `json:"kind"`
	CampaignID string            `json:"campaignId,omitempty"`
	Operation  string            `json:"operation,omitempty"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// NewSyncEvent stamps an event with an id and creation time.
func NewSyncEvent(kind SyncEventKind, campaignID, operation string, err error) SyncEvent {
	ev := SyncEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		CampaignID: campaignID,
		Operation:  operation,
		CreatedAt:  time.Now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// With attaches a metadata pair.
func (e SyncEvent) With(key, value string) SyncEvent {
	meta := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		meta[k] = v
	}
	meta[key] = value
	e.Metadata = meta
	return e
}
