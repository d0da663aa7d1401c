package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/groupbuy/domain"
	"github.com/fastygo/groupbuy/repository"
)

// UseCase serves the remote campaign store over its persistent backend.
// It is the authoritative side: client-supplied ids are honoured so that
// optimistic local copies and stored records share one identity.
type UseCase struct {
	campaigns repository.CampaignStore
	logger    *zap.Logger
	now       func() time.Time
}

func New(campaigns repository.CampaignStore, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		campaigns: campaigns,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (uc *UseCase) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	return uc.campaigns.List(ctx)
}

func (uc *UseCase) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return uc.campaigns.Get(ctx, id)
}

// CreateCampaign stores a campaign. A campaign without an id is built from
// its fields like a fresh Create; one with an id is stored as submitted
// after validation, and resubmitting it is a no-op.
func (uc *UseCase) CreateCampaign(ctx context.Context, c *domain.Campaign) (*domain.Campaign, error) {
	if c == nil {
		return nil, domain.ErrInvalidPayload
	}

	if strings.TrimSpace(c.ID) == "" {
		built, err := domain.NewCampaign(domain.CreateInput{
			ProductName:          c.ProductName,
			Description:          c.Description,
			Category:             c.Category,
			ImageURL:             c.ImageURL,
			RegularPrice:         c.RegularPrice,
			GroupPrice:           c.GroupPrice,
			RequiredParticipants: c.RequiredParticipants,
			ExpiresAt:            c.ExpiresAt,
		}, uuid.NewString(), uuid.NewString(), uc.now())
		if err != nil {
			return nil, err
		}
		c = built
	} else if err := uc.normalize(c); err != nil {
		return nil, err
	}

	created, err := uc.campaigns.Create(ctx, c)
	if err != nil {
		uc.logger.Error("failed to store campaign", zap.String("campaign_id", c.ID), zap.Error(err))
		return nil, err
	}
	uc.logger.Info("campaign stored", zap.String("campaign_id", created.ID))
	return created, nil
}

func (uc *UseCase) normalize(c *domain.Campaign) error {
	in := domain.CreateInput{
		ProductName:          c.ProductName,
		RegularPrice:         c.RegularPrice,
		GroupPrice:           c.GroupPrice,
		RequiredParticipants: c.RequiredParticipants,
	}
	if err := in.Validate(); err != nil {
		return err
	}
	now := uc.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.ExpiresAt == nil {
		expires := c.CreatedAt.Add(domain.DefaultCampaignDuration)
		c.ExpiresAt = &expires
	}
	if len(c.Participants) == 0 {
		c.AddParticipant(domain.Participant{ID: uuid.NewString(), Name: domain.CreatorName, JoinedAt: c.CreatedAt})
	}
	for i := range c.Participants {
		if c.Participants[i].ID == "" {
			c.Participants[i].ID = uuid.NewString()
		}
		if c.Participants[i].JoinedAt.IsZero() {
			c.Participants[i].JoinedAt = c.CreatedAt
		}
	}
	c.CurrentParticipants = len(c.Participants)
	if c.Status == "" {
		c.Status = domain.StatusActive
	}
	if !c.Status.Valid() {
		return domain.NewValidationError("unknown status %q", c.Status)
	}
	return nil
}

func (uc *UseCase) UpdateCampaign(ctx context.Context, id string, patch domain.Patch) (*domain.Campaign, error) {
	if patch.IsEmpty() {
		return uc.campaigns.Get(ctx, id)
	}
	updated, err := uc.campaigns.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("campaign updated", zap.String("campaign_id", id), zap.String("status", string(updated.Status)))
	return updated, nil
}

func (uc *UseCase) DeleteCampaign(ctx context.Context, id string) error {
	if err := uc.campaigns.Delete(ctx, id); err != nil {
		return err
	}
	uc.logger.Info("campaign deleted", zap.String("campaign_id", id))
	return nil
}

// JoinCampaign records a participant. Missing ids and names are generated;
// repeating a join with the same participant id has no further effect.
func (uc *UseCase) JoinCampaign(ctx context.Context, campaignID string, p domain.Participant) (*domain.Participant, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = uc.now()
	}
	if strings.TrimSpace(p.Name) == "" {
		current, err := uc.campaigns.Get(ctx, campaignID)
		if err != nil {
			return nil, err
		}
		p.Name = domain.ParticipantName(current.CurrentParticipants + 1)
	}

	joined, err := uc.campaigns.AddParticipant(ctx, campaignID, p)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("participant joined", zap.String("campaign_id", campaignID), zap.String("participant_id", joined.ID))
	return joined, nil
}
