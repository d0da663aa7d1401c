package campaign_test

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/groupbuy/domain"
	"github.com/fastygo/groupbuy/repository"
	boltcache "github.com/fastygo/groupbuy/repository/bolt"
	"github.com/fastygo/groupbuy/usecase"
)

var errConnRefused = errors.New("connection refused")

// fakeRemote is an in-memory remote store that can be switched offline.
type fakeRemote struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
	offline   bool
	now       func() time.Time
	calls     map[string]int
}

func newFakeRemote(now func() time.Time) *fakeRemote {
	return &fakeRemote{
		campaigns: make(map[string]*domain.Campaign),
		now:       now,
		calls:     make(map[string]int),
	}
}

func (f *fakeRemote) setOffline(v bool) {
	f.mu.Lock()
	f.offline = v
	f.mu.Unlock()
}

func (f *fakeRemote) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) enter(op string) error {
	f.calls[op]++
	if f.offline {
		return domain.Unavailable(errConnRefused)
	}
	return nil
}

func (f *fakeRemote) stored(id string) (*domain.Campaign, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	return c.Clone(), ok
}

func (f *fakeRemote) List(_ context.Context) ([]domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("list"); err != nil {
		return nil, err
	}
	out := make([]domain.Campaign, 0, len(f.campaigns))
	for _, c := range f.campaigns {
		out = append(out, *c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRemote) Get(_ context.Context, id string) (*domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("get"); err != nil {
		return nil, err
	}
	c, ok := f.campaigns[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	return c.Clone(), nil
}

func (f *fakeRemote) Create(_ context.Context, c *domain.Campaign) (*domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("create"); err != nil {
		return nil, err
	}
	if existing, ok := f.campaigns[c.ID]; ok {
		return existing.Clone(), nil
	}
	stored := c.Clone()
	stored.Version = 1
	f.campaigns[c.ID] = stored
	return stored.Clone(), nil
}

func (f *fakeRemote) Update(_ context.Context, id string, patch domain.Patch) (*domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("update"); err != nil {
		return nil, err
	}
	c, ok := f.campaigns[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	updated, err := patch.Apply(c, f.now())
	if err != nil {
		return nil, err
	}
	updated.Version = c.Version + 1
	f.campaigns[id] = updated
	return updated.Clone(), nil
}

func (f *fakeRemote) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("delete"); err != nil {
		return err
	}
	if _, ok := f.campaigns[id]; !ok {
		return domain.ErrCampaignNotFound
	}
	delete(f.campaigns, id)
	return nil
}

func (f *fakeRemote) AddParticipant(_ context.Context, campaignID string, p domain.Participant) (*domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("join"); err != nil {
		return nil, err
	}
	c, ok := f.campaigns[campaignID]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	if !c.HasParticipant(p.ID) {
		c.AddParticipant(p)
		c.Status = domain.DeriveStatus(*c, f.now())
		c.Version++
	}
	return &p, nil
}

var _ repository.CampaignStore = (*fakeRemote)(nil)

type recordingSink struct {
	mu     sync.Mutex
	events []domain.SyncEvent
}

func (s *recordingSink) Publish(_ context.Context, ev domain.SyncEvent) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) kinds() []domain.SyncEventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SyncEventKind, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Kind)
	}
	return out
}

type recordingOutbox struct {
	mu     sync.Mutex
	writes []usecase.PendingWrite
}

func (o *recordingOutbox) Defer(_ context.Context, w usecase.PendingWrite) error {
	o.mu.Lock()
	o.writes = append(o.writes, w)
	o.mu.Unlock()
	return nil
}

func (o *recordingOutbox) Pending(_ context.Context, id string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, w := range o.writes {
		if w.CampaignID == id {
			return true, nil
		}
	}
	return false, nil
}

// replayed forgets the deferred writes of id, as a drained outbox would.
func (o *recordingOutbox) replayed(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.writes[:0]
	for _, w := range o.writes {
		if w.CampaignID != id {
			kept = append(kept, w)
		}
	}
	o.writes = kept
}

func (o *recordingOutbox) deferred() []usecase.PendingWrite {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]usecase.PendingWrite(nil), o.writes...)
}

func newBoltCache(t *testing.T) repository.CampaignCache {
	t.Helper()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "cache.db"), 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cache, err := boltcache.NewCampaignCache(db, "")
	require.NoError(t, err)
	return cache
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fixedClock {
	return &fixedClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
