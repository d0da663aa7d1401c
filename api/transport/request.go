package transport

import (
	"time"

	"github.com/fastygo/groupbuy/domain"
)

// CampaignRequest is the create payload. Clients that already assigned an
// id locally send the full record; others send only the descriptive fields.
type CampaignRequest struct {
	ID                   string               `json:"id,omitempty"`
	ProductName          string               `json:"productName"`
	Description          string               `json:"description,omitempty"`
	Category             string               `json:"category,omitempty"`
	ImageURL             string               `json:"imageUrl,omitempty"`
	RegularPrice         float64              `json:"regularPrice"`
	GroupPrice           float64              `json:"groupPrice"`
	RequiredParticipants int                  `json:"requiredParticipants"`
	CreatedAt            *time.Time           `json:"createdAt,omitempty"`
	ExpiresAt            *time.Time           `json:"expiresAt,omitempty"`
	Status               string               `json:"status,omitempty"`
	Participants         []domain.Participant `json:"participants,omitempty"`
}

// Campaign converts the request into a domain campaign.
func (r CampaignRequest) Campaign() *domain.Campaign {
	c := &domain.Campaign{
		ID:                   r.ID,
		ProductName:          r.ProductName,
		Description:          r.Description,
		Category:             r.Category,
		ImageURL:             r.ImageURL,
		RegularPrice:         r.RegularPrice,
		GroupPrice:           r.GroupPrice,
		RequiredParticipants: r.RequiredParticipants,
		ExpiresAt:            r.ExpiresAt,
		Status:               domain.Status(r.Status),
		Participants:         r.Participants,
	}
	if r.CreatedAt != nil {
		c.CreatedAt = *r.CreatedAt
	}
	c.CurrentParticipants = len(c.Participants)
	return c
}

// NewCampaignRequest is the inverse of Campaign, used by API clients.
func NewCampaignRequest(c *domain.Campaign) CampaignRequest {
	created := c.CreatedAt
	return CampaignRequest{
		ID:                   c.ID,
		ProductName:          c.ProductName,
		Description:          c.Description,
		Category:             c.Category,
		ImageURL:             c.ImageURL,
		RegularPrice:         c.RegularPrice,
		GroupPrice:           c.GroupPrice,
		RequiredParticipants: c.RequiredParticipants,
		CreatedAt:            &created,
		ExpiresAt:            c.ExpiresAt,
		Status:               string(c.Status),
		Participants:         c.Participants,
	}
}

// JoinRequest adds a participant. Both fields are optional.
type JoinRequest struct {
	ID       string     `json:"id,omitempty"`
	Name     string     `json:"name,omitempty"`
	JoinedAt *time.Time `json:"joinedAt,omitempty"`
}

func (r JoinRequest) Participant() domain.Participant {
	p := domain.Participant{ID: r.ID, Name: r.Name}
	if r.JoinedAt != nil {
		p.JoinedAt = *r.JoinedAt
	}
	return p
}
