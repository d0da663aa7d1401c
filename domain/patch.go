package domain

import (
	"strings"
	"time"
)

// Patch is a shallow update; nil fields keep their prior values. Identity,
// creation time and the participant list are never patchable.
type Patch struct {
	ProductName          *string    `json:"productName,omitempty"`
	Description          *string    `json:"description,omitempty"`
	Category             *string    `json:"category,omitempty"`
	ImageURL             *string    `json:"imageUrl,omitempty"`
	RegularPrice         *float64   `json:"regularPrice,omitempty"`
	GroupPrice           *float64   `json:"groupPrice,omitempty"`
	RequiredParticipants *int       `json:"requiredParticipants,omitempty"`
	ExpiresAt            *time.Time `json:"expiresAt,omitempty"`
	Status               *Status    `json:"status,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.ProductName == nil && p.Description == nil && p.Category == nil &&
		p.ImageURL == nil && p.RegularPrice == nil && p.GroupPrice == nil &&
		p.RequiredParticipants == nil && p.ExpiresAt == nil && p.Status == nil
}

// Apply merges the patch over c and returns the result. The status is
// re-derived unless the patch sets it explicitly.
func (p Patch) Apply(c *Campaign, now time.Time) (*Campaign, error) {
	if p.Status != nil && !p.Status.Valid() {
		return nil, NewValidationError("unknown status %q", *p.Status)
	}

	out := c.Clone()
	if p.ProductName != nil {
		out.ProductName = strings.TrimSpace(*p.ProductName)
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.ImageURL != nil {
		out.ImageURL = *p.ImageURL
	}
	if p.RegularPrice != nil {
		out.RegularPrice = *p.RegularPrice
	}
	if p.GroupPrice != nil {
		out.GroupPrice = *p.GroupPrice
	}
	if p.RequiredParticipants != nil {
		out.RequiredParticipants = *p.RequiredParticipants
	}
	if p.ExpiresAt != nil {
		exp := *p.ExpiresAt
		out.ExpiresAt = &exp
	}

	if err := validateFields(out.ProductName, out.RegularPrice, out.GroupPrice, out.RequiredParticipants); err != nil {
		return nil, err
	}

	switch {
	case p.Status != nil:
		out.Status = *p.Status
	case p.reopens() && out.Status != StatusPaused:
		// a new threshold or deadline re-enters automatic derivation
		out.Status = StatusActive
		out.Status = DeriveStatus(*out, now)
	default:
		out.Status = DeriveStatus(*out, now)
	}
	return out, nil
}

func (p Patch) reopens() bool {
	return p.RequiredParticipants != nil || p.ExpiresAt != nil
}

// StatusPatch is the explicit override used for manual status changes.
func StatusPatch(s Status) Patch {
	return Patch{Status: &s}
}
