package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		status   Status
		current  int
		required int
		expires  *time.Time
		want     Status
	}{
		{"below threshold before deadline", StatusActive, 1, 3, &future, StatusActive},
		{"threshold reached", StatusActive, 3, 3, &future, StatusCompleted},
		{"threshold exceeded", StatusActive, 5, 3, &future, StatusCompleted},
		{"deadline passed below threshold", StatusActive, 2, 3, &past, StatusExpired},
		{"deadline exactly now", StatusActive, 2, 3, &now, StatusExpired},
		{"deadline passed threshold met", StatusActive, 3, 3, &past, StatusCompleted},
		{"no deadline", StatusActive, 1, 3, nil, StatusActive},
		{"paused stays paused", StatusPaused, 3, 3, &past, StatusPaused},
		{"completed is sticky", StatusCompleted, 1, 3, &past, StatusCompleted},
		{"expired is sticky", StatusExpired, 5, 3, &future, StatusExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Campaign{
				Status:               tt.status,
				CurrentParticipants:  tt.current,
				RequiredParticipants: tt.required,
				ExpiresAt:            tt.expires,
			}
			got := DeriveStatus(c, now)
			assert.Equal(t, tt.want, got)

			c.Status = got
			assert.Equal(t, got, DeriveStatus(c, now), "derivation must be idempotent")
		})
	}
}

func TestCampaignProgress(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(90 * time.Minute)
	c := Campaign{
		RegularPrice:         30,
		GroupPrice:           20,
		RequiredParticipants: 4,
		CurrentParticipants:  3,
		ExpiresAt:            &expires,
	}

	p := c.Progress(now)
	assert.Equal(t, 1, p.Remaining)
	assert.InDelta(t, 75.0, p.Percent, 0.001)
	assert.False(t, p.Unlocked)
	assert.InDelta(t, 10.0, p.Savings, 0.001)
	assert.Equal(t, 90*time.Minute, p.TimeLeft)

	c.CurrentParticipants = 6
	p = c.Progress(now.Add(2 * time.Hour))
	assert.Zero(t, p.Remaining)
	assert.InDelta(t, 100.0, p.Percent, 0.001)
	assert.True(t, p.Unlocked)
	assert.Zero(t, p.TimeLeft)
}
