package monitor

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// Check is a named probe. The monitor is offline while any critical check fails.
type Check struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Probe    CheckFunc
}

// SizeFunc reports the number of writes still waiting in the outbox.
type SizeFunc func() (int, error)

type Monitor struct {
	checks     []Check
	outboxSize SizeFunc

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	done     chan struct{}
	logger   *zap.Logger
}

func New(interval time.Duration, logger *zap.Logger, checks ...Check) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		checks:   checks,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Named("monitor"),
	}
}

// WithOutboxSize reports the outbox backlog alongside the checks.
func (m *Monitor) WithOutboxSize(fn SizeFunc) *Monitor {
	m.outboxSize = fn
	return m
}

// Start runs a first round synchronously so IsOnline is meaningful right away.
func (m *Monitor) Start() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	m.Refresh(context.Background())
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	if m.started.Load() {
		<-m.done
	}
}

// IsOnline reports whether every critical check passed in the last round.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Online
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.status
	out.Checks = make(map[string]CheckResult, len(m.status.Checks))
	for k, v := range m.status.Checks {
		out.Checks[k] = v
	}
	return out
}

// Names lists the registered checks in a stable order.
func (m *Monitor) Names() []string {
	names := make([]string, 0, len(m.checks))
	for _, c := range m.checks {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

func (m *Monitor) loop() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every check once and publishes the result.
func (m *Monitor) Refresh(ctx context.Context) Status {
	status := Status{
		Online:    true,
		Checks:    make(map[string]CheckResult, len(m.checks)),
		LastCheck: time.Now(),
	}
	for _, c := range m.checks {
		res := m.run(ctx, c)
		status.Checks[c.Name] = res
		if c.Critical && !res.Healthy {
			status.Online = false
		}
	}
	if m.outboxSize != nil {
		size, err := m.outboxSize()
		if err != nil {
			m.logger.Warn("outbox size check failed", zap.Error(err))
		}
		status.OutboxSize = size
	}

	m.mu.Lock()
	changed := m.status.LastCheck.IsZero() || m.status.Online != status.Online
	m.status = status
	m.mu.Unlock()

	if changed {
		m.logger.Info("connectivity changed", zap.Bool("online", status.Online))
	}
	return status
}

func (m *Monitor) run(ctx context.Context, c Check) CheckResult {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := c.Probe(cctx)
	res := CheckResult{Healthy: err == nil, Critical: c.Critical, Latency: time.Since(start)}
	if err != nil {
		res.Error = err.Error()
		m.logger.Debug("check failed", zap.String("check", c.Name), zap.Error(err))
	}
	return res
}

// PostgresCheck pings the pool.
func PostgresCheck(pool *pgxpool.Pool, critical bool) Check {
	return Check{
		Name:     "postgresql",
		Critical: critical,
		Timeout:  3 * time.Second,
		Probe: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	}
}

// RedisCheck pings the redis client.
func RedisCheck(client redislib.UniversalClient, critical bool) Check {
	return Check{
		Name:     "redis",
		Critical: critical,
		Timeout:  2 * time.Second,
		Probe: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}
