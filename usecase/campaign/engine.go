package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fastygo/groupbuy/domain"
	"github.com/fastygo/groupbuy/repository"
	"github.com/fastygo/groupbuy/usecase"
)

// DefaultRemoteTimeout bounds every remote call unless overridden.
const DefaultRemoteTimeout = 5 * time.Second

// Engine is the single entry point for campaign reads and writes. Reads are
// remote-first with a cache fallback; writes are applied to the cache and
// returned immediately while the remote settles in the background.
type Engine struct {
	remote  repository.CampaignStore
	cache   repository.CampaignCache
	outbox  usecase.RemoteOutbox
	events  usecase.EventSink
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
	newID   func() string

	locks  *keyedMutex
	writes *usecase.Dispatcher
	reads  singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRemoteTimeout bounds each remote call; exceeding it counts as a remote failure.
func WithRemoteTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides campaign and participant id generation.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// WithEventSink publishes sync events in addition to logging them.
func WithEventSink(sink usecase.EventSink) Option {
	return func(e *Engine) { e.events = sink }
}

// WithOutbox persists remote writes that fail so they can be replayed.
func WithOutbox(outbox usecase.RemoteOutbox) Option {
	return func(e *Engine) { e.outbox = outbox }
}

// New builds an Engine over the remote store and the local cache.
func New(remote repository.CampaignStore, cache repository.CampaignCache, opts ...Option) *Engine {
	e := &Engine{
		remote:  remote,
		cache:   cache,
		logger:  zap.NewNop(),
		timeout: DefaultRemoteTimeout,
		now:     defaultClock,
		newID:   uuid.NewString,
		locks:   newKeyedMutex(),
		writes:  usecase.NewDispatcher(context.Background()),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("campaign_engine")
	return e
}

// Postgres keeps microseconds; truncating here keeps optimistic copies
// comparable with what the remote echoes back.
func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// List returns the remote collection, writing it through to the cache. When
// the remote fails the cached collection is returned instead. Every returned
// campaign carries the status derived at the current time.
func (e *Engine) List(ctx context.Context) ([]domain.Campaign, error) {
	v, err := e.readRemote(ctx, "list", func(rctx context.Context) (interface{}, error) {
		return e.remote.List(rctx)
	})
	if err != nil {
		e.emit(ctx, domain.NewSyncEvent(domain.EventRemoteReadFailed, "", "list", err))
		cached, cacheErr := e.cache.LoadAll(ctx)
		if cacheErr != nil {
			return nil, fmt.Errorf("load cached campaigns: %w", cacheErr)
		}
		campaigns := make([]domain.Campaign, 0, len(cached))
		for i := range cached {
			c, err := e.deriveCached(ctx, &cached[i])
			if err != nil {
				if errors.Is(err, domain.ErrCampaignNotFound) {
					continue
				}
				return nil, err
			}
			campaigns = append(campaigns, *c)
		}
		e.logger.Info("serving campaigns from cache", zap.Int("count", len(campaigns)))
		return campaigns, nil
	}

	shared, _ := v.([]domain.Campaign)
	campaigns := make([]domain.Campaign, 0, len(shared))
	for i := range shared {
		if c, ok := e.writeThrough(ctx, shared[i].Clone()); ok {
			campaigns = append(campaigns, *c)
		}
	}
	e.logger.Debug("loaded campaigns from remote", zap.Int("count", len(campaigns)))
	return campaigns, nil
}

// Get returns a campaign from the remote, falling back to the cache.
func (e *Engine) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	remote, err := e.fetchRemote(ctx, id)
	if err == nil {
		if c, ok := e.writeThrough(ctx, remote); ok {
			return c, nil
		}
		e.logger.Debug("campaign removed locally", zap.String("campaign_id", id))
		return nil, domain.ErrCampaignNotFound
	}

	if !errors.Is(err, domain.ErrCampaignNotFound) {
		e.emit(ctx, domain.NewSyncEvent(domain.EventRemoteReadFailed, id, "get", err))
	}
	cached, cacheErr := e.cache.Load(ctx, id)
	if cacheErr != nil {
		if errors.Is(cacheErr, domain.ErrCampaignNotFound) {
			e.logger.Warn("campaign not found", zap.String("campaign_id", id))
			return nil, domain.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("load cached campaign: %w", cacheErr)
	}
	return e.deriveCached(ctx, cached)
}

// Create validates input, stores the new campaign locally and returns it
// before the remote confirms.
func (e *Engine) Create(ctx context.Context, input domain.CreateInput) (*domain.Campaign, error) {
	created, err := domain.NewCampaign(input, e.newID(), e.newID(), e.now())
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(created.ID)
	defer unlock()

	if err := e.cache.Save(ctx, created); err != nil {
		return nil, fmt.Errorf("cache campaign: %w", err)
	}
	e.schedule(usecase.PendingWrite{
		Operation:    usecase.OperationCreate,
		CampaignID:   created.ID,
		LocalVersion: created.Version,
		Campaign:     created.Clone(),
	})

	e.logger.Info("campaign created",
		zap.String("campaign_id", created.ID),
		zap.String("product", created.ProductName),
		zap.Float64("group_price", created.GroupPrice),
		zap.Int("required_participants", created.RequiredParticipants))
	return created, nil
}

// Update merges patch over the current campaign. Without an explicit status
// the status is re-derived; an explicit status is an unconditional override.
func (e *Engine) Update(ctx context.Context, id string, patch domain.Patch) (*domain.Campaign, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	current, err := e.current(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := patch.Apply(current, e.now())
	if err != nil {
		return nil, err
	}
	updated.Version = current.Version + 1

	if err := e.cache.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("cache campaign: %w", err)
	}
	p := patch
	e.schedule(usecase.PendingWrite{
		Operation:    usecase.OperationUpdate,
		CampaignID:   id,
		LocalVersion: updated.Version,
		Patch:        &p,
	})

	e.logger.Info("campaign updated",
		zap.String("campaign_id", id),
		zap.String("status", string(updated.Status)),
		zap.Int64("version", updated.Version))
	return updated, nil
}

// ChangeStatus applies a manual status override.
func (e *Engine) ChangeStatus(ctx context.Context, id string, status domain.Status) (*domain.Campaign, error) {
	if !status.Valid() {
		return nil, domain.NewValidationError("unknown status %q", status)
	}
	return e.Update(ctx, id, domain.StatusPatch(status))
}

// Duplicate creates a fresh campaign from an existing one, preserving its
// deadline duration.
func (e *Engine) Duplicate(ctx context.Context, id string) (*domain.Campaign, error) {
	source, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dup := source.Duplicate(e.newID(), e.newID(), e.now())

	unlock := e.locks.Lock(dup.ID)
	defer unlock()

	if err := e.cache.Save(ctx, dup); err != nil {
		return nil, fmt.Errorf("cache campaign: %w", err)
	}
	e.schedule(usecase.PendingWrite{
		Operation:    usecase.OperationCreate,
		CampaignID:   dup.ID,
		LocalVersion: dup.Version,
		Campaign:     dup.Clone(),
	})

	e.logger.Info("campaign duplicated",
		zap.String("original_id", id),
		zap.String("campaign_id", dup.ID))
	return dup, nil
}

// Remove deletes the campaign locally and asks the remote to follow. The
// local deletion is never undone.
func (e *Engine) Remove(ctx context.Context, id string) (bool, error) {
	unlock := e.locks.Lock(id)
	err := e.cache.Delete(ctx, id)
	if err == nil {
		e.schedule(usecase.PendingWrite{
			Operation:  usecase.OperationDelete,
			CampaignID: id,
		})
	}
	unlock()

	if err != nil {
		e.logger.Error("failed to remove cached campaign", zap.String("campaign_id", id), zap.Error(err))
		return false, fmt.Errorf("remove cached campaign: %w", err)
	}
	e.logger.Info("campaign removed", zap.String("campaign_id", id))
	return true, nil
}

// Join appends a participant, re-derives the status and stores the result
// locally before the remote confirms.
func (e *Engine) Join(ctx context.Context, id string) (*domain.Campaign, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	current, err := e.cache.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrCampaignNotFound) {
			e.logger.Warn("cache read failed, trying remote", zap.String("campaign_id", id), zap.Error(err))
		}
		if current, err = e.current(ctx, id); err != nil {
			return nil, err
		}
	}

	now := e.now()
	joined := current.Clone()
	participant := domain.Participant{
		ID:       e.newID(),
		Name:     domain.ParticipantName(len(joined.Participants) + 1),
		JoinedAt: now,
	}
	joined.AddParticipant(participant)
	joined.Status = domain.DeriveStatus(*joined, now)
	joined.Version = current.Version + 1

	if err := e.cache.Save(ctx, joined); err != nil {
		return nil, fmt.Errorf("cache campaign: %w", err)
	}
	e.schedule(usecase.PendingWrite{
		Operation:    usecase.OperationJoin,
		CampaignID:   id,
		LocalVersion: joined.Version,
		Participant:  &participant,
	})

	e.logger.Info("participant joined",
		zap.String("campaign_id", id),
		zap.String("participant_id", participant.ID),
		zap.Int("participants", joined.CurrentParticipants),
		zap.Int("required", joined.RequiredParticipants))
	if joined.Status == domain.StatusCompleted && current.Status != domain.StatusCompleted {
		e.logger.Info("campaign goal reached", zap.String("campaign_id", id))
	}
	return joined, nil
}

// Flush waits until every scheduled remote write has settled.
func (e *Engine) Flush(ctx context.Context) error {
	return e.writes.Wait(ctx)
}

// current resolves the state a mutation builds on. It must be called with
// the id lock held. While local writes for id are unsettled the cache is the
// freshest copy and a missing entry means a pending removal; otherwise Get
// semantics apply.
func (e *Engine) current(ctx context.Context, id string) (*domain.Campaign, error) {
	if e.pending(ctx, id) {
		cached, err := e.cache.Load(ctx, id)
		if err == nil {
			return cached, nil
		}
		if errors.Is(err, domain.ErrCampaignNotFound) {
			return nil, domain.ErrCampaignNotFound
		}
	}

	remote, err := e.fetchRemote(ctx, id)
	if err == nil {
		return remote, nil
	}
	if !errors.Is(err, domain.ErrCampaignNotFound) {
		e.emit(ctx, domain.NewSyncEvent(domain.EventRemoteReadFailed, id, "get", err))
	}
	cached, cacheErr := e.cache.Load(ctx, id)
	if cacheErr != nil {
		if errors.Is(cacheErr, domain.ErrCampaignNotFound) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("load cached campaign: %w", cacheErr)
	}
	return cached, nil
}

func (e *Engine) fetchRemote(ctx context.Context, id string) (*domain.Campaign, error) {
	v, err := e.readRemote(ctx, "get:"+id, func(rctx context.Context) (interface{}, error) {
		return e.remote.Get(rctx, id)
	})
	if err != nil {
		return nil, err
	}
	c, _ := v.(*domain.Campaign)
	if c == nil {
		return nil, domain.ErrCampaignNotFound
	}
	return c.Clone(), nil
}

// readRemote coalesces identical concurrent remote reads. The shared call is
// detached from any single caller's cancellation and bounded by the remote
// timeout; each caller still stops waiting when its own ctx ends.
func (e *Engine) readRemote(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := e.reads.DoChan(key, func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()
		return fn(rctx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, domain.Unavailable(ctx.Err())
	}
}

// writeThrough stores a remote read in the cache unless local writes for the
// same id are still settling, in which case the local copy wins. A pending
// id with no cache entry was removed locally and reports false.
func (e *Engine) writeThrough(ctx context.Context, remote *domain.Campaign) (*domain.Campaign, bool) {
	unlock := e.locks.Lock(remote.ID)
	defer unlock()

	if e.pending(ctx, remote.ID) {
		cached, err := e.cache.Load(ctx, remote.ID)
		if err == nil {
			return e.deriveLocked(ctx, cached), true
		}
		if errors.Is(err, domain.ErrCampaignNotFound) {
			return nil, false
		}
		e.logger.Warn("cache read failed", zap.String("campaign_id", remote.ID), zap.Error(err))
	}
	remote.Status = domain.DeriveStatus(*remote, e.now())
	if err := e.cache.Save(ctx, remote); err != nil {
		e.logger.Warn("write-through failed", zap.String("campaign_id", remote.ID), zap.Error(err))
	}
	return remote, true
}

// deriveCached re-derives the status of a cached campaign under its id lock.
// The entry is reloaded so a mutation that landed in between is not lost.
func (e *Engine) deriveCached(ctx context.Context, c *domain.Campaign) (*domain.Campaign, error) {
	if domain.DeriveStatus(*c, e.now()) == c.Status {
		return c, nil
	}
	unlock := e.locks.Lock(c.ID)
	defer unlock()

	fresh, err := e.cache.Load(ctx, c.ID)
	if err != nil {
		if errors.Is(err, domain.ErrCampaignNotFound) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("load cached campaign: %w", err)
	}
	return e.deriveLocked(ctx, fresh), nil
}

// deriveLocked applies the status automaton to c and persists a change. The
// id lock must be held.
func (e *Engine) deriveLocked(ctx context.Context, c *domain.Campaign) *domain.Campaign {
	status := domain.DeriveStatus(*c, e.now())
	if status == c.Status {
		return c
	}
	previous := c.Status
	c.Status = status
	if err := e.cache.Save(ctx, c); err != nil {
		e.logger.Warn("failed to persist derived status", zap.String("campaign_id", c.ID), zap.Error(err))
	}
	e.logger.Info("campaign status derived",
		zap.String("campaign_id", c.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))
	return c
}

func (e *Engine) pending(ctx context.Context, id string) bool {
	if e.writes.Pending(id) {
		return true
	}
	if e.outbox == nil {
		return false
	}
	pending, err := e.outbox.Pending(ctx, id)
	if err != nil {
		e.logger.Warn("outbox lookup failed", zap.String("campaign_id", id), zap.Error(err))
		return false
	}
	return pending
}

func (e *Engine) emit(ctx context.Context, event domain.SyncEvent) {
	e.logger.Warn("sync event",
		zap.String("kind", string(event.Kind)),
		zap.String("campaign_id", event.CampaignID),
		zap.String("operation", event.Operation),
		zap.String("error", event.Error),
		zap.Any("metadata", event.Metadata))
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.Error("failed to publish sync event", zap.String("event_id", event.ID), zap.Error(err))
	}
}
