package refresh

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/groupbuy/domain"
)

// Lister is the read side the scheduler polls.
type Lister interface {
	List(ctx context.Context) ([]domain.Campaign, error)
}

type Config struct {
	Interval time.Duration
	Tick     time.Duration
}

// Snapshot is one refresh result. It replaces whatever the subscriber held before.
type Snapshot struct {
	Campaigns []domain.Campaign
	FetchedAt time.Time
	Err       error
}

// Scheduler periodically lists campaigns and fans the result out to
// subscribers. A faster tick counts down to the next refresh.
type Scheduler struct {
	lister Lister
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	subs      map[int]chan Snapshot
	nextSub   int
	latest    *Snapshot
	remaining time.Duration
	cancel    context.CancelFunc
	done      chan struct{}

	refreshMu sync.Mutex
}

func New(lister Lister, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.Tick > cfg.Interval {
		cfg.Tick = cfg.Interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		lister:    lister,
		cfg:       cfg,
		logger:    logger.Named("refresh"),
		subs:      make(map[int]chan Snapshot),
		remaining: cfg.Interval,
	}
}

// Start refreshes immediately and then every Interval until ctx is done or
// Stop is called. Starting a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.loop(loopCtx, done)
	s.logger.Debug("refresh scheduler started", zap.Duration("interval", s.cfg.Interval))
}

// Stop cancels the timers, waits for an in-flight refresh and closes every
// subscription.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.mu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()
	s.logger.Debug("refresh scheduler stopped")
}

// Subscribe returns a channel that always holds the most recent snapshot
// not yet received, and a function that ends the subscription.
func (s *Scheduler) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if sub, ok := s.subs[id]; ok {
				close(sub)
				delete(s.subs, id)
			}
			s.mu.Unlock()
		})
	}
}

// RefreshNow lists immediately, publishes the result and restarts the countdown.
func (s *Scheduler) RefreshNow(ctx context.Context) Snapshot {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	campaigns, err := s.lister.List(ctx)
	snap := Snapshot{Campaigns: campaigns, FetchedAt: time.Now(), Err: err}
	if err != nil {
		s.logger.Warn("refresh failed", zap.Error(err))
	} else {
		s.logger.Debug("campaigns refreshed", zap.Int("count", len(campaigns)))
	}

	s.mu.Lock()
	s.latest = &snap
	s.remaining = s.cfg.Interval
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
	s.mu.Unlock()
	return snap
}

// Latest returns the most recent snapshot, if any refresh happened yet.
func (s *Scheduler) Latest() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Snapshot{}, false
	}
	return *s.latest, true
}

// NextRefreshIn is the countdown until the next periodic refresh.
func (s *Scheduler) NextRefreshIn() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.RefreshNow(ctx)

	refresh := time.NewTicker(s.cfg.Interval)
	defer refresh.Stop()
	tick := time.NewTicker(s.cfg.Tick)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
			s.RefreshNow(ctx)
		case <-tick.C:
			s.mu.Lock()
			if s.remaining > s.cfg.Tick {
				s.remaining -= s.cfg.Tick
			} else {
				s.remaining = 0
			}
			s.mu.Unlock()
		}
	}
}
