package campaign

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/groupbuy/domain"
	"github.com/fastygo/groupbuy/usecase"
)

// schedule queues a remote write behind earlier writes for the same campaign.
func (e *Engine) schedule(write usecase.PendingWrite) {
	e.writes.Submit(write.CampaignID, func(ctx context.Context) {
		e.settle(ctx, write)
	})
}

func (e *Engine) settle(ctx context.Context, write usecase.PendingWrite) {
	logger := e.logger.With(
		zap.String("campaign_id", write.CampaignID),
		zap.String("operation", write.Operation))

	// earlier writes are still in the outbox; stay behind them
	if e.outbox != nil {
		if pending, err := e.outbox.Pending(ctx, write.CampaignID); err == nil && pending {
			e.deferWrite(ctx, write, logger)
			return
		}
	}

	rctx, cancel := context.WithTimeout(ctx, e.timeout)
	remote, err := Push(rctx, e.remote, write)
	cancel()

	if err != nil {
		e.emit(ctx, domain.NewSyncEvent(domain.EventRemoteWriteFailed, write.CampaignID, write.Operation, err))
		if errors.Is(err, domain.ErrRemoteUnavailable) {
			e.deferWrite(ctx, write, logger)
		}
		return
	}

	logger.Debug("remote write settled")
	if remote == nil {
		return
	}
	if err := e.ApplyRemote(ctx, write.CampaignID, write.LocalVersion, remote); err != nil {
		logger.Warn("failed to apply remote result", zap.Error(err))
	}
}

func (e *Engine) deferWrite(ctx context.Context, write usecase.PendingWrite, logger *zap.Logger) {
	if e.outbox == nil {
		return
	}
	if err := e.outbox.Defer(ctx, write); err != nil {
		logger.Error("failed to defer remote write", zap.Error(err))
		return
	}
	logger.Info("remote write deferred to outbox")
}

// Push delivers a pending write to the remote store. It returns the remote
// copy for creates and updates, nil otherwise. Deleting an id the remote
// never saw counts as success.
func Push(ctx context.Context, remote RemoteWriter, write usecase.PendingWrite) (*domain.Campaign, error) {
	switch write.Operation {
	case usecase.OperationCreate:
		if write.Campaign == nil {
			return nil, domain.ErrInvalidPayload
		}
		return remote.Create(ctx, write.Campaign)
	case usecase.OperationUpdate:
		if write.Patch == nil {
			return nil, domain.ErrInvalidPayload
		}
		return remote.Update(ctx, write.CampaignID, *write.Patch)
	case usecase.OperationJoin:
		if write.Participant == nil {
			return nil, domain.ErrInvalidPayload
		}
		_, err := remote.AddParticipant(ctx, write.CampaignID, *write.Participant)
		return nil, err
	case usecase.OperationDelete:
		err := remote.Delete(ctx, write.CampaignID)
		if errors.Is(err, domain.ErrCampaignNotFound) {
			err = nil
		}
		return nil, err
	default:
		return nil, fmt.Errorf("unknown operation %q: %w", write.Operation, domain.ErrInvalidPayload)
	}
}

// RemoteWriter is the write side of the remote campaign store.
type RemoteWriter interface {
	Create(ctx context.Context, campaign *domain.Campaign) (*domain.Campaign, error)
	Update(ctx context.Context, id string, patch domain.Patch) (*domain.Campaign, error)
	Delete(ctx context.Context, id string) error
	AddParticipant(ctx context.Context, campaignID string, participant domain.Participant) (*domain.Participant, error)
}

// ApplyRemote merges a remote-confirmed copy into the cache. Confirmations
// for a superseded local version are dropped so a late response never
// overwrites a newer local write. Divergent content is reported as a
// reconciliation conflict and the local copy is kept.
func (e *Engine) ApplyRemote(ctx context.Context, campaignID string, localVersion int64, remote *domain.Campaign) error {
	if remote == nil {
		return nil
	}
	unlock := e.locks.Lock(campaignID)
	defer unlock()

	local, err := e.cache.Load(ctx, campaignID)
	if err != nil {
		if errors.Is(err, domain.ErrCampaignNotFound) {
			return nil
		}
		return err
	}
	if local.Version != localVersion {
		e.logger.Debug("stale remote confirmation dropped",
			zap.String("campaign_id", campaignID),
			zap.Int64("local_version", local.Version),
			zap.Int64("confirmed_version", localVersion))
		return nil
	}
	if remote.ID != campaignID {
		e.emit(ctx, domain.NewSyncEvent(domain.EventReconciliationConflict, campaignID, "reconcile",
			domain.ErrReconciliationConflict).With("remote_id", remote.ID))
		return nil
	}
	if !local.SameState(remote) {
		e.emit(ctx, domain.NewSyncEvent(domain.EventReconciliationConflict, campaignID, "reconcile",
			domain.ErrReconciliationConflict).With("remote_status", string(remote.Status)))
		return nil
	}

	merged := remote.Clone()
	merged.Version = localVersion
	return e.cache.Save(ctx, merged)
}

var _ usecase.Reconciler = (*Engine)(nil)
