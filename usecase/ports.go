package usecase

import (
	"context"

	"github.com/fastygo/groupbuy/domain"
)

// Remote write operations, shared by the engine and the outbox.
const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationJoin   = "join"
	OperationDelete = "delete"
)

// PendingWrite is a remote write the engine could not deliver.
type PendingWrite struct {
	Operation    string              `json:"operation"`
	CampaignID   string              `json:"campaign_id"`
	LocalVersion int64               `json:"local_version"`
	Campaign     *domain.Campaign    `json:"campaign,omitempty"`
	Patch        *domain.Patch       `json:"patch,omitempty"`
	Participant  *domain.Participant `json:"participant,omitempty"`
}

// RemoteOutbox abstracts durable retry storage so use cases stay storage-agnostic.
type RemoteOutbox interface {
	Defer(ctx context.Context, write PendingWrite) error
	Pending(ctx context.Context, campaignID string) (bool, error)
}

// EventSink receives sync events describing local/remote divergence.
type EventSink interface {
	Publish(ctx context.Context, event domain.SyncEvent) error
}

// Reconciler merges a remote-confirmed campaign into local state.
type Reconciler interface {
	ApplyRemote(ctx context.Context, campaignID string, localVersion int64, remote *domain.Campaign) error
}
