package repository

import (
	"context"

	"github.com/fastygo/groupbuy/domain"
)

// CampaignStore is the authoritative remote campaign store. Implementations
// wrap transport failures in domain.ErrRemoteUnavailable.
type CampaignStore interface {
	List(ctx context.Context) ([]domain.Campaign, error)
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	Create(ctx context.Context, campaign *domain.Campaign) (*domain.Campaign, error)
	Update(ctx context.Context, id string, patch domain.Patch) (*domain.Campaign, error)
	Delete(ctx context.Context, id string) error
	AddParticipant(ctx context.Context, campaignID string, participant domain.Participant) (*domain.Participant, error)
}

// CampaignCache is the local durable copy keyed by campaign id. Last write wins per key.
type CampaignCache interface {
	Save(ctx context.Context, campaign *domain.Campaign) error
	// Load returns domain.ErrCampaignNotFound when the id is absent.
	Load(ctx context.Context, id string) (*domain.Campaign, error)
	// LoadAll returns every cached campaign, most recently created first.
	LoadAll(ctx context.Context) ([]domain.Campaign, error)
	Delete(ctx context.Context, id string) error
}
