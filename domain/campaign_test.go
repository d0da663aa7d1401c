package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewCampaign(t *testing.T) {
	c, err := NewCampaign(DefaultCampaignInput(), "c-1", "creator", testNow)
	require.NoError(t, err)

	assert.Equal(t, "c-1", c.ID)
	assert.Equal(t, StatusActive, c.Status)
	assert.Equal(t, 1, c.CurrentParticipants)
	require.Len(t, c.Participants, 1)
	assert.Equal(t, "creator", c.Participants[0].ID)
	assert.Equal(t, int64(1), c.Version)
	require.NotNil(t, c.ExpiresAt)
	assert.Equal(t, testNow.Add(48*time.Hour), *c.ExpiresAt)
}

func TestNewCampaign_ExplicitDeadline(t *testing.T) {
	in := DefaultCampaignInput()
	deadline := testNow.Add(3 * time.Hour)
	in.ExpiresAt = &deadline

	c, err := NewCampaign(in, "c-1", "creator", testNow)
	require.NoError(t, err)
	assert.Equal(t, deadline, *c.ExpiresAt)
	assert.Equal(t, 3*time.Hour, c.Duration())
}

func TestCreateInputValidate(t *testing.T) {
	valid := DefaultCampaignInput()
	require.NoError(t, valid.Validate())

	equal := valid
	equal.GroupPrice = equal.RegularPrice
	assert.NoError(t, equal.Validate())

	cases := map[string]func(*CreateInput){
		"blank name":      func(in *CreateInput) { in.ProductName = "   " },
		"zero regular":    func(in *CreateInput) { in.RegularPrice = 0 },
		"negative group":  func(in *CreateInput) { in.GroupPrice = -1 },
		"group > regular": func(in *CreateInput) { in.GroupPrice = in.RegularPrice + 1 },
		"zero required":   func(in *CreateInput) { in.RequiredParticipants = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := DefaultCampaignInput()
			mutate(&in)
			err := in.Validate()
			require.Error(t, err)
			assert.True(t, IsDomainError(err, ErrCodeInvalid))
		})
	}
}

func TestCampaignDuplicate(t *testing.T) {
	in := DefaultCampaignInput()
	deadline := testNow.Add(5 * time.Hour)
	in.ExpiresAt = &deadline
	src, err := NewCampaign(in, "src", "creator", testNow)
	require.NoError(t, err)
	src.AddParticipant(Participant{ID: "p2", Name: ParticipantName(2), JoinedAt: testNow})
	src.Status = StatusPaused
	src.Version = 7

	later := testNow.Add(24 * time.Hour)
	dup := src.Duplicate("dup", "creator-2", later)

	assert.Equal(t, "dup", dup.ID)
	assert.Equal(t, src.ProductName, dup.ProductName)
	assert.Equal(t, src.GroupPrice, dup.GroupPrice)
	assert.Equal(t, later, dup.CreatedAt)
	assert.Equal(t, src.Duration(), dup.Duration())
	assert.Equal(t, 1, dup.CurrentParticipants)
	assert.Equal(t, StatusActive, dup.Status)
	assert.Equal(t, int64(1), dup.Version)
	assert.Len(t, src.Participants, 2, "source must be untouched")
}

func TestCampaignCloneIsDeep(t *testing.T) {
	c, err := NewCampaign(DefaultCampaignInput(), "c-1", "creator", testNow)
	require.NoError(t, err)

	clone := c.Clone()
	clone.Participants[0].Name = "changed"
	*clone.ExpiresAt = testNow

	assert.Equal(t, CreatorName, c.Participants[0].Name)
	assert.NotEqual(t, testNow, *c.ExpiresAt)
	assert.True(t, c.SameState(c.Clone()))
}

func TestPatchApply(t *testing.T) {
	base, err := NewCampaign(DefaultCampaignInput(), "c-1", "creator", testNow)
	require.NoError(t, err)
	base.AddParticipant(Participant{ID: "p2"})

	t.Run("shallow merge keeps omitted fields", func(t *testing.T) {
		name := "Studio Monitors"
		out, err := Patch{ProductName: &name}.Apply(base, testNow)
		require.NoError(t, err)
		assert.Equal(t, name, out.ProductName)
		assert.Equal(t, base.Description, out.Description)
		assert.Equal(t, base.RegularPrice, out.RegularPrice)
		assert.Equal(t, StatusActive, out.Status)
	})

	t.Run("lowering threshold completes", func(t *testing.T) {
		required := 2
		out, err := Patch{RequiredParticipants: &required}.Apply(base, testNow)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, out.Status)
	})

	t.Run("explicit status overrides derivation", func(t *testing.T) {
		required := 2
		paused := StatusPaused
		out, err := Patch{RequiredParticipants: &required, Status: &paused}.Apply(base, testNow)
		require.NoError(t, err)
		assert.Equal(t, StatusPaused, out.Status)
	})

	t.Run("new deadline reopens an expired campaign", func(t *testing.T) {
		expired := base.Clone()
		expired.Status = StatusExpired
		deadline := testNow.Add(time.Hour)

		out, err := Patch{ExpiresAt: &deadline}.Apply(expired, testNow)
		require.NoError(t, err)
		assert.Equal(t, StatusActive, out.Status)
	})

	t.Run("paused campaign stays paused on edits", func(t *testing.T) {
		paused := base.Clone()
		paused.Status = StatusPaused
		required := 2

		out, err := Patch{RequiredParticipants: &required}.Apply(paused, testNow)
		require.NoError(t, err)
		assert.Equal(t, StatusPaused, out.Status)
	})

	t.Run("invalid merge is rejected", func(t *testing.T) {
		group := base.RegularPrice * 2
		_, err := Patch{GroupPrice: &group}.Apply(base, testNow)
		assert.True(t, IsDomainError(err, ErrCodeInvalid))

		bogus := Status("archived")
		_, err = Patch{Status: &bogus}.Apply(base, testNow)
		assert.True(t, IsDomainError(err, ErrCodeInvalid))
	})

	assert.Equal(t, 2, base.CurrentParticipants, "base must be untouched")
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Paused ")
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, s)

	_, err = ParseStatus("archived")
	assert.True(t, IsDomainError(err, ErrCodeInvalid))
}

func TestErrorMatching(t *testing.T) {
	wrapped := Unavailable(assert.AnError)
	assert.ErrorIs(t, wrapped, ErrRemoteUnavailable)
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.NotErrorIs(t, wrapped, ErrCampaignNotFound)
	assert.ErrorIs(t, NewValidationError("bad %s", "x"), &Error{Code: ErrCodeInvalid})
}
