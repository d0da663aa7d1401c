package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/groupbuy/domain"
	"github.com/fastygo/groupbuy/internal/infrastructure/buffer"
	"github.com/fastygo/groupbuy/usecase"
)

// OutboxBridge stores deferred engine writes in the Bolt outbox.
type OutboxBridge struct {
	store *buffer.Store
}

func NewOutboxBridge(store *buffer.Store) *OutboxBridge {
	return &OutboxBridge{store: store}
}

func (b *OutboxBridge) Defer(_ context.Context, write usecase.PendingWrite) error {
	if b.store == nil || write.CampaignID == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(write)
	if err != nil {
		return err
	}
	return b.store.Enqueue(buffer.Item{
		CampaignID:   write.CampaignID,
		Operation:    write.Operation,
		LocalVersion: write.LocalVersion,
		Data:         payload,
	})
}

func (b *OutboxBridge) Pending(_ context.Context, campaignID string) (bool, error) {
	if b.store == nil {
		return false, nil
	}
	return b.store.Pending(campaignID)
}

var _ usecase.RemoteOutbox = (*OutboxBridge)(nil)
