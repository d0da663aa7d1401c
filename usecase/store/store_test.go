package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fastygo/groupbuy/domain"
	"github.com/fastygo/groupbuy/repository/memory"
)

func newUseCase(t *testing.T) *UseCase {
	t.Helper()
	uc := New(memory.NewCampaignStore(), zaptest.NewLogger(t))
	uc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return uc
}

func TestCreateCampaign_WithoutIDBuildsFresh(t *testing.T) {
	uc := newUseCase(t)
	in := domain.DefaultCampaignInput()

	created, err := uc.CreateCampaign(context.Background(), &domain.Campaign{
		ProductName:          in.ProductName,
		RegularPrice:         in.RegularPrice,
		GroupPrice:           in.GroupPrice,
		RequiredParticipants: in.RequiredParticipants,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 1, created.CurrentParticipants)
	assert.Equal(t, domain.CreatorName, created.Participants[0].Name)
	assert.Equal(t, domain.StatusActive, created.Status)
	require.NotNil(t, created.ExpiresAt)
	assert.Equal(t, domain.DefaultCampaignDuration, created.ExpiresAt.Sub(created.CreatedAt))
}

func TestCreateCampaign_HonoursClientIDAndIsIdempotent(t *testing.T) {
	uc := newUseCase(t)
	ctx := context.Background()
	c, err := domain.NewCampaign(domain.DefaultCampaignInput(), "client-1", "creator-1", uc.now())
	require.NoError(t, err)

	first, err := uc.CreateCampaign(ctx, c.Clone())
	require.NoError(t, err)
	assert.Equal(t, "client-1", first.ID)
	assert.Equal(t, "creator-1", first.Participants[0].ID)

	renamed := c.Clone()
	renamed.ProductName = "Something else"
	again, err := uc.CreateCampaign(ctx, renamed)
	require.NoError(t, err)
	assert.Equal(t, first.ProductName, again.ProductName)

	all, err := uc.ListCampaigns(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateCampaign_NormalizesSubmittedCampaign(t *testing.T) {
	uc := newUseCase(t)
	created, err := uc.CreateCampaign(context.Background(), &domain.Campaign{
		ID:                   "bare",
		ProductName:          "Kettle",
		RegularPrice:         40,
		GroupPrice:           25,
		RequiredParticipants: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, uc.now(), created.CreatedAt)
	require.NotNil(t, created.ExpiresAt)
	assert.Equal(t, uc.now().Add(domain.DefaultCampaignDuration), *created.ExpiresAt)
	assert.Equal(t, 1, created.CurrentParticipants)
	assert.NotEmpty(t, created.Participants[0].ID)
	assert.Equal(t, domain.StatusActive, created.Status)
}

func TestCreateCampaign_RejectsInvalid(t *testing.T) {
	uc := newUseCase(t)

	_, err := uc.CreateCampaign(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = uc.CreateCampaign(context.Background(), &domain.Campaign{
		ID: "x", ProductName: "Kettle", RegularPrice: 10, GroupPrice: 20, RequiredParticipants: 3,
	})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = uc.CreateCampaign(context.Background(), &domain.Campaign{
		ID: "y", ProductName: "Kettle", RegularPrice: 20, GroupPrice: 10, RequiredParticipants: 3, Status: "archived",
	})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestUpdateCampaign(t *testing.T) {
	uc := newUseCase(t)
	ctx := context.Background()
	c, err := domain.NewCampaign(domain.DefaultCampaignInput(), "c-1", "creator", uc.now())
	require.NoError(t, err)
	_, err = uc.CreateCampaign(ctx, c)
	require.NoError(t, err)

	same, err := uc.UpdateCampaign(ctx, "c-1", domain.Patch{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), same.Version)

	paused := domain.StatusPaused
	updated, err := uc.UpdateCampaign(ctx, "c-1", domain.Patch{Status: &paused})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, updated.Status)
	assert.Equal(t, int64(2), updated.Version)

	_, err = uc.UpdateCampaign(ctx, "missing", domain.Patch{Status: &paused})
	assert.ErrorIs(t, err, domain.ErrCampaignNotFound)
}

func TestJoinCampaign(t *testing.T) {
	uc := newUseCase(t)
	ctx := context.Background()
	in := domain.DefaultCampaignInput()
	in.RequiredParticipants = 2
	c, err := domain.NewCampaign(in, "c-1", "creator", uc.now())
	require.NoError(t, err)
	_, err = uc.CreateCampaign(ctx, c)
	require.NoError(t, err)

	joined, err := uc.JoinCampaign(ctx, "c-1", domain.Participant{})
	require.NoError(t, err)
	assert.NotEmpty(t, joined.ID)
	assert.Equal(t, "Participant 2", joined.Name)
	assert.Equal(t, uc.now(), joined.JoinedAt)

	_, err = uc.JoinCampaign(ctx, "c-1", *joined)
	require.NoError(t, err)

	stored, err := uc.GetCampaign(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentParticipants)
	assert.Equal(t, domain.StatusCompleted, stored.Status)

	_, err = uc.JoinCampaign(ctx, "missing", domain.Participant{})
	assert.ErrorIs(t, err, domain.ErrCampaignNotFound)
}

func TestDeleteCampaign(t *testing.T) {
	uc := newUseCase(t)
	ctx := context.Background()
	c, err := domain.NewCampaign(domain.DefaultCampaignInput(), "c-1", "creator", uc.now())
	require.NoError(t, err)
	_, err = uc.CreateCampaign(ctx, c)
	require.NoError(t, err)

	require.NoError(t, uc.DeleteCampaign(ctx, "c-1"))
	assert.ErrorIs(t, uc.DeleteCampaign(ctx, "c-1"), domain.ErrCampaignNotFound)
}
