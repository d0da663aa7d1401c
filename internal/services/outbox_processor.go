package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/groupbuy/domain"
	"github.com/fastygo/groupbuy/internal/infrastructure/buffer"
	"github.com/fastygo/groupbuy/repository"
	"github.com/fastygo/groupbuy/usecase"
	"github.com/fastygo/groupbuy/usecase/campaign"
)

var errRetentionExceeded = errors.New("outbox retention exceeded")

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the outbox is drained.
type ProcessorConfig struct {
	Interval      time.Duration
	BatchSize     int
	MaxRetries    int
	RetentionTime time.Duration
	RemoteTimeout time.Duration
}

// DrainStats summarises one drain pass.
type DrainStats struct {
	Delivered int `json:"delivered"`
	Requeued  int `json:"requeued"`
	Dropped   int `json:"dropped"`
	Skipped   int `json:"skipped"`
	Remaining int `json:"remaining"`
}

// OutboxProcessor replays deferred campaign writes against the remote store.
type OutboxProcessor struct {
	store      *buffer.Store
	monitor    ConnectionHealth
	remote     repository.CampaignStore
	reconciler usecase.Reconciler
	events     usecase.EventSink
	logger     *zap.Logger
	cron       *cron.Cron
	cfg        ProcessorConfig
}

func NewOutboxProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	remote repository.CampaignStore,
	reconciler usecase.Reconciler,
	events usecase.EventSink,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *OutboxProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetentionTime <= 0 {
		cfg.RetentionTime = 24 * time.Hour
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = campaign.DefaultRemoteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	op := &OutboxProcessor{
		store:      store,
		monitor:    monitor,
		remote:     remote,
		reconciler: reconciler,
		events:     events,
		logger:     logger.Named("outbox"),
		cfg:        cfg,
		cron:       cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", max(1, int(cfg.Interval.Seconds())))
	_, _ = op.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if _, err := op.Drain(ctx); err != nil {
			op.logger.Error("outbox drain failed", zap.Error(err))
		}
	})
	_, _ = op.cron.AddFunc("@every 1h", func() {
		if _, err := op.Cleanup(context.Background(), time.Now()); err != nil {
			op.logger.Error("outbox cleanup failed", zap.Error(err))
		}
	})

	return op
}

// Start launches the cron scheduler.
func (op *OutboxProcessor) Start() {
	if op == nil || op.cron == nil {
		return
	}
	op.cron.Start()
	op.logger.Info("outbox processor started", zap.Duration("interval", op.cfg.Interval))
}

// Stop gracefully stops the scheduler.
func (op *OutboxProcessor) Stop(ctx context.Context) {
	if op == nil || op.cron == nil {
		return
	}
	stopCtx := op.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	op.logger.Info("outbox processor stopped")
}

// Drain replays one batch in outbox order. Once a campaign's item fails,
// its later items wait for the next pass; an unreachable remote ends the
// pass early.
func (op *OutboxProcessor) Drain(ctx context.Context) (DrainStats, error) {
	var stats DrainStats
	if op == nil || op.store == nil {
		return stats, nil
	}
	if op.monitor != nil && !op.monitor.IsOnline() {
		op.logger.Debug("skipping outbox drain (offline)")
		return op.remaining(stats)
	}

	items, err := op.store.GetBatch(op.cfg.BatchSize)
	if err != nil {
		return stats, err
	}

	blocked := make(map[string]bool)
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if blocked[item.CampaignID] {
			stats.Skipped++
			continue
		}

		err := op.processItem(ctx, item)
		switch {
		case err == nil:
			stats.Delivered++
			if err := op.store.Remove(item); err != nil {
				op.logger.Warn("failed to purge delivered outbox item", zap.Error(err))
			}
		case errors.Is(err, domain.ErrRemoteUnavailable):
			blocked[item.CampaignID] = true
			if op.retry(ctx, item, err) {
				stats.Requeued++
			} else {
				stats.Dropped++
			}
			op.logger.Warn("remote unavailable, ending drain", zap.Error(err))
			return op.remaining(stats)
		default:
			// rejected by the remote; replaying cannot succeed
			op.drop(ctx, item, err)
			stats.Dropped++
		}
	}
	return op.remaining(stats)
}

func (op *OutboxProcessor) remaining(stats DrainStats) (DrainStats, error) {
	size, err := op.store.Size()
	stats.Remaining = size
	return stats, err
}

func (op *OutboxProcessor) retry(ctx context.Context, item buffer.Item, cause error) bool {
	item.Retries++
	if item.Retries >= op.cfg.MaxRetries {
		op.drop(ctx, item, cause)
		return false
	}
	if err := op.store.Requeue(item); err != nil {
		op.logger.Error("failed to requeue outbox item", zap.String("item_id", item.ID), zap.Error(err))
	}
	return true
}

func (op *OutboxProcessor) drop(ctx context.Context, item buffer.Item, cause error) {
	op.logger.Warn("dropping outbox item",
		zap.String("item_id", item.ID),
		zap.String("campaign_id", item.CampaignID),
		zap.String("operation", item.Operation),
		zap.Int("retries", item.Retries),
		zap.Error(cause))
	if err := op.store.Remove(item); err != nil {
		op.logger.Warn("failed to remove outbox item", zap.Error(err))
	}
	op.publishDropped(ctx, item, cause)
}

// Cleanup discards items queued longer than the retention time. Each one is
// reported as dropped since its write never reached the remote.
func (op *OutboxProcessor) Cleanup(ctx context.Context, now time.Time) (int, error) {
	if op == nil || op.store == nil {
		return 0, nil
	}
	expired, err := op.store.Cleanup(now.Add(-op.cfg.RetentionTime))
	if err != nil {
		return 0, err
	}
	for _, item := range expired {
		op.logger.Warn("expired outbox item dropped",
			zap.String("item_id", item.ID),
			zap.String("campaign_id", item.CampaignID),
			zap.String("operation", item.Operation),
			zap.Time("queued_at", item.Timestamp))
		op.publishDropped(ctx, item, errRetentionExceeded)
	}
	return len(expired), nil
}

func (op *OutboxProcessor) publishDropped(ctx context.Context, item buffer.Item, cause error) {
	if op.events == nil {
		return
	}
	ev := domain.NewSyncEvent(domain.EventOutboxDropped, item.CampaignID, item.Operation, cause).
		With("retries", strconv.Itoa(item.Retries))
	if err := op.events.Publish(ctx, ev); err != nil {
		op.logger.Error("failed to publish sync event", zap.Error(err))
	}
}

// Size returns the number of deferred writes.
func (op *OutboxProcessor) Size() int {
	if op == nil || op.store == nil {
		return 0
	}
	size, err := op.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (op *OutboxProcessor) processItem(ctx context.Context, item buffer.Item) error {
	var write usecase.PendingWrite
	if err := json.Unmarshal(item.Data, &write); err != nil {
		return fmt.Errorf("decode outbox item %s: %w", item.ID, domain.ErrInvalidPayload)
	}

	rctx, cancel := context.WithTimeout(ctx, op.cfg.RemoteTimeout)
	remote, err := campaign.Push(rctx, op.remote, write)
	cancel()
	if err != nil {
		return err
	}

	op.logger.Info("deferred write delivered",
		zap.String("campaign_id", write.CampaignID),
		zap.String("operation", write.Operation),
		zap.Int("retries", item.Retries))
	if remote != nil && op.reconciler != nil {
		if err := op.reconciler.ApplyRemote(ctx, write.CampaignID, write.LocalVersion, remote); err != nil {
			op.logger.Warn("failed to apply remote result", zap.String("campaign_id", write.CampaignID), zap.Error(err))
		}
	}
	return nil
}
