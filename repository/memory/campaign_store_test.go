package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/groupbuy/domain"
)

func seed(t *testing.T, s *CampaignStore, id string, createdAt time.Time) *domain.Campaign {
	t.Helper()
	c, err := domain.NewCampaign(domain.DefaultCampaignInput(), id, "creator-"+id, createdAt)
	require.NoError(t, err)
	stored, err := s.Create(context.Background(), c)
	require.NoError(t, err)
	return stored
}

func TestCampaignStore_ListNewestFirst(t *testing.T) {
	s := NewCampaignStore()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seed(t, s, "old", base)
	seed(t, s, "new", base.Add(time.Hour))

	list, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
}

func TestCampaignStore_ReturnsCopies(t *testing.T) {
	s := NewCampaignStore()
	seed(t, s, "c-1", time.Now().UTC())

	got, err := s.Get(context.Background(), "c-1")
	require.NoError(t, err)
	got.ProductName = "mutated"
	got.Participants[0].Name = "mutated"

	again, err := s.Get(context.Background(), "c-1")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.ProductName)
	assert.Equal(t, domain.CreatorName, again.Participants[0].Name)
}

func TestCampaignStore_AddParticipant(t *testing.T) {
	s := NewCampaignStore()
	ctx := context.Background()
	seed(t, s, "c-1", time.Now().UTC())

	_, err := s.AddParticipant(ctx, "c-1", domain.Participant{})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	p, err := s.AddParticipant(ctx, "c-1", domain.Participant{ID: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, "Participant 2", p.Name)

	_, err = s.AddParticipant(ctx, "c-1", domain.Participant{ID: "p-1"})
	require.NoError(t, err)

	c, err := s.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 2, c.CurrentParticipants)
	assert.Equal(t, int64(2), c.Version)

	_, err = s.AddParticipant(ctx, "missing", domain.Participant{ID: "p-1"})
	assert.ErrorIs(t, err, domain.ErrCampaignNotFound)
}

func TestCampaignStore_UpdateAndDelete(t *testing.T) {
	s := NewCampaignStore()
	ctx := context.Background()
	seed(t, s, "c-1", time.Now().UTC())

	required := 1
	updated, err := s.Update(ctx, "c-1", domain.Patch{RequiredParticipants: &required})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.Status)
	assert.Equal(t, int64(2), updated.Version)

	require.NoError(t, s.Delete(ctx, "c-1"))
	assert.ErrorIs(t, s.Delete(ctx, "c-1"), domain.ErrCampaignNotFound)
	_, err = s.Update(ctx, "c-1", domain.Patch{RequiredParticipants: &required})
	assert.ErrorIs(t, err, domain.ErrCampaignNotFound)
}
