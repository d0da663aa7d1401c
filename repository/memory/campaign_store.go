package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fastygo/groupbuy/domain"
	"github.com/fastygo/groupbuy/repository"
)

// CampaignStore keeps campaigns in process memory. It follows the same
// rules as the Postgres store and backs the server when no database is
// configured.
type CampaignStore struct {
	mu        sync.RWMutex
	campaigns map[string]*domain.Campaign
	now       func() time.Time
}

func NewCampaignStore() *CampaignStore {
	return &CampaignStore{
		campaigns: make(map[string]*domain.Campaign),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *CampaignStore) List(_ context.Context) ([]domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, *c.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *CampaignStore) Get(_ context.Context, id string) (*domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	return c.Clone(), nil
}

func (s *CampaignStore) Create(_ context.Context, c *domain.Campaign) (*domain.Campaign, error) {
	if c == nil || c.ID == "" {
		return nil, domain.ErrInvalidPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.campaigns[c.ID]; ok {
		return existing.Clone(), nil
	}
	stored := c.Clone()
	stored.CurrentParticipants = len(stored.Participants)
	if stored.Version <= 0 {
		stored.Version = 1
	}
	s.campaigns[c.ID] = stored
	return stored.Clone(), nil
}

func (s *CampaignStore) Update(_ context.Context, id string, patch domain.Patch) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.campaigns[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	merged, err := patch.Apply(current, s.now())
	if err != nil {
		return nil, err
	}
	merged.Version = current.Version + 1
	s.campaigns[id] = merged
	return merged.Clone(), nil
}

func (s *CampaignStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.campaigns[id]; !ok {
		return domain.ErrCampaignNotFound
	}
	delete(s.campaigns, id)
	return nil
}

func (s *CampaignStore) AddParticipant(_ context.Context, campaignID string, p domain.Participant) (*domain.Participant, error) {
	if p.ID == "" {
		return nil, domain.ErrInvalidPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	if c.HasParticipant(p.ID) {
		return &p, nil
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = s.now()
	}
	if p.Name == "" {
		p.Name = domain.ParticipantName(c.CurrentParticipants + 1)
	}
	c.AddParticipant(p)
	c.Status = domain.DeriveStatus(*c, s.now())
	c.Version++
	return &p, nil
}

var _ repository.CampaignStore = (*CampaignStore)(nil)
