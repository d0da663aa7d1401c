package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultCampaignDuration applies when a campaign is created without an explicit deadline.
const DefaultCampaignDuration = 48 * time.Hour

// CreatorName labels the synthetic participant seeded into every new campaign.
const CreatorName = "Organizer"

// Status is the lifecycle state of a campaign.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted, StatusExpired:
		return true
	}
	return false
}

// ParseStatus converts user input into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", NewValidationError("unknown status %q", raw)
	}
	return s, nil
}

// Participant is a join event recorded against a campaign.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Campaign is a group-buying instance tracking participants against a threshold and deadline.
type Campaign struct {
	ID                   string        `json:"id"`
	ProductName          string        `json:"productName"`
	Description          string        `json:"description,omitempty"`
	Category             string        `json:"category,omitempty"`
	ImageURL             string        `json:"imageUrl,omitempty"`
	RegularPrice         float64       `json:"regularPrice"`
	GroupPrice           float64       `json:"groupPrice"`
	RequiredParticipants int           `json:"requiredParticipants"`
	CurrentParticipants  int           `json:"currentParticipants"`
	CreatedAt            time.Time     `json:"createdAt"`
	ExpiresAt            *time.Time    `json:"expiresAt,omitempty"`
	Status               Status        `json:"status"`
	Participants         []Participant `json:"participants"`
	Version              int64         `json:"version"`
}

// CreateInput carries the caller-provided fields of a new campaign.
type CreateInput struct {
	ProductName          string     `json:"productName"`
	Description          string     `json:"description,omitempty"`
	Category             string     `json:"category,omitempty"`
	ImageURL             string     `json:"imageUrl,omitempty"`
	RegularPrice         float64    `json:"regularPrice"`
	GroupPrice           float64    `json:"groupPrice"`
	RequiredParticipants int        `json:"requiredParticipants"`
	ExpiresAt            *time.Time `json:"expiresAt,omitempty"`
}

// Validate rejects input that would produce an inconsistent campaign.
func (in CreateInput) Validate() error {
	return validateFields(in.ProductName, in.RegularPrice, in.GroupPrice, in.RequiredParticipants)
}

func validateFields(name string, regular, group float64, required int) error {
	switch {
	case strings.TrimSpace(name) == "":
		return NewValidationError("product name is required")
	case regular <= 0:
		return NewValidationError("regular price must be positive")
	case group <= 0:
		return NewValidationError("group price must be positive")
	case group > regular:
		return NewValidationError("group price %.2f exceeds regular price %.2f", group, regular)
	case required <= 0:
		return NewValidationError("required participants must be positive")
	}
	return nil
}

// DefaultCampaignInput returns the demo campaign used when no parameters are given.
func DefaultCampaignInput() CreateInput {
	return CreateInput{
		ProductName:          "Premium Wireless Headphones",
		Description:          "Noise-cancelling wireless headphones with long battery life and high-fidelity sound.",
		Category:             "electronics",
		RegularPrice:         30,
		GroupPrice:           20,
		RequiredParticipants: 10,
	}
}

// NewCampaign builds a validated campaign seeded with its creator.
func NewCampaign(in CreateInput, id, creatorID string, now time.Time) (*Campaign, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	expires := now.Add(DefaultCampaignDuration)
	if in.ExpiresAt != nil {
		expires = *in.ExpiresAt
	}
	c := &Campaign{
		ID:                   id,
		ProductName:          strings.TrimSpace(in.ProductName),
		Description:          in.Description,
		Category:             in.Category,
		ImageURL:             in.ImageURL,
		RegularPrice:         in.RegularPrice,
		GroupPrice:           in.GroupPrice,
		RequiredParticipants: in.RequiredParticipants,
		CreatedAt:            now,
		ExpiresAt:            &expires,
		Status:               StatusActive,
		Version:              1,
	}
	c.AddParticipant(Participant{ID: creatorID, Name: CreatorName, JoinedAt: now})
	c.Status = StatusActive
	return c, nil
}

// Clone returns a deep copy.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	out := *c
	if c.ExpiresAt != nil {
		exp := *c.ExpiresAt
		out.ExpiresAt = &exp
	}
	out.Participants = append([]Participant(nil), c.Participants...)
	return &out
}

// AddParticipant appends p and keeps the stored count in sync with the list.
func (c *Campaign) AddParticipant(p Participant) {
	c.Participants = append(c.Participants, p)
	c.CurrentParticipants = len(c.Participants)
}

// HasParticipant reports whether a participant with the given id already joined.
func (c *Campaign) HasParticipant(id string) bool {
	for _, p := range c.Participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Duration is the span between creation and the deadline.
func (c *Campaign) Duration() time.Duration {
	if c.ExpiresAt == nil {
		return DefaultCampaignDuration
	}
	return c.ExpiresAt.Sub(c.CreatedAt)
}

// Duplicate clones every descriptive field into a fresh campaign that keeps
// the original deadline duration rather than its absolute deadline.
func (c *Campaign) Duplicate(id, creatorID string, now time.Time) *Campaign {
	dup := c.Clone()
	expires := now.Add(c.Duration())
	dup.ID = id
	dup.CreatedAt = now
	dup.ExpiresAt = &expires
	dup.Participants = nil
	dup.AddParticipant(Participant{ID: creatorID, Name: CreatorName, JoinedAt: now})
	dup.Status = StatusActive
	dup.Version = 1
	return dup
}

// ParticipantName derives the synthetic name for the n-th participant.
func ParticipantName(n int) string {
	return fmt.Sprintf("Participant %d", n)
}

// SameState compares the user-visible state of two campaigns, ignoring the
// local version counter.
func (c *Campaign) SameState(other *Campaign) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.ID != other.ID ||
		c.ProductName != other.ProductName ||
		c.Description != other.Description ||
		c.Category != other.Category ||
		c.ImageURL != other.ImageURL ||
		c.RegularPrice != other.RegularPrice ||
		c.GroupPrice != other.GroupPrice ||
		c.RequiredParticipants != other.RequiredParticipants ||
		c.CurrentParticipants != other.CurrentParticipants ||
		c.Status != other.Status ||
		!c.CreatedAt.Equal(other.CreatedAt) ||
		!sameDeadline(c.ExpiresAt, other.ExpiresAt) ||
		len(c.Participants) != len(other.Participants) {
		return false
	}
	for i := range c.Participants {
		if c.Participants[i].ID != other.Participants[i].ID {
			return false
		}
	}
	return true
}

func sameDeadline(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
