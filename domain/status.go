package domain

import "time"

// DeriveStatus computes the lifecycle state of c at now. The previously
// stored status matters: paused is a manual override, and completed and
// expired are terminal for automatic transitions.
func DeriveStatus(c Campaign, now time.Time) Status {
	deadlinePassed := c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)

	switch {
	case c.Status == StatusPaused, c.Status == StatusCompleted, c.Status == StatusExpired:
		return c.Status
	case deadlinePassed && c.CurrentParticipants < c.RequiredParticipants:
		return StatusExpired
	case c.CurrentParticipants >= c.RequiredParticipants:
		return StatusCompleted
	default:
		return StatusActive
	}
}

// Progress summarises how close a campaign is to unlocking its group price.
type Progress struct {
	Current   int           `json:"current"`
	Required  int           `json:"required"`
	Remaining int           `json:"remaining"`
	Percent   float64       `json:"percent"`
	Unlocked  bool          `json:"unlocked"`
	Savings   float64       `json:"savings"`
	TimeLeft  time.Duration `json:"timeLeft"`
}

// Progress reports threshold progress at now.
func (c *Campaign) Progress(now time.Time) Progress {
	p := Progress{
		Current:  c.CurrentParticipants,
		Required: c.RequiredParticipants,
		Unlocked: c.CurrentParticipants >= c.RequiredParticipants,
		Savings:  c.RegularPrice - c.GroupPrice,
	}
	if remaining := c.RequiredParticipants - c.CurrentParticipants; remaining > 0 {
		p.Remaining = remaining
	}
	if c.RequiredParticipants > 0 {
		p.Percent = float64(c.CurrentParticipants) / float64(c.RequiredParticipants) * 100
		if p.Percent > 100 {
			p.Percent = 100
		}
	}
	if c.ExpiresAt != nil && now.Before(*c.ExpiresAt) {
		p.TimeLeft = c.ExpiresAt.Sub(now)
	}
	return p
}
