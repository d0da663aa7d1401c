package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/groupbuy/domain"
)

func TestParseDeadline(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := parseDeadline("72h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(72*time.Hour), got)

	got, err = parseDeadline("2025-04-01T08:00:00+02:00", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 4, 1, 6, 0, 0, 0, time.UTC), got)

	_, err = parseDeadline("next week", now)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestParseDeadline_MicrosecondPrecision(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC)

	got, err := parseDeadline("72h", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 4, 12, 0, 0, 123456000, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
	assert.Zero(t, got.Nanosecond()%int(time.Microsecond))

	got, err = parseDeadline("2025-04-01T08:00:00.123456789Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 4, 1, 8, 0, 0, 123456000, time.UTC), got)

	// a deadline that went through the database compares equal to the local one
	c, err := domain.NewCampaign(domain.CreateInput{
		ProductName: "Desk lamp", RegularPrice: 30, GroupPrice: 20, RequiredParticipants: 2, ExpiresAt: &got,
	}, "c-1", "creator", now.UTC().Truncate(time.Microsecond))
	require.NoError(t, err)
	stored := c.Clone()
	roundTripped := stored.ExpiresAt.Truncate(time.Microsecond)
	stored.ExpiresAt = &roundTripped
	assert.True(t, c.SameState(stored))
}

func TestCampaignFlags_OnlyChangedFieldsPatch(t *testing.T) {
	var f campaignFlags
	fs := pflag.NewFlagSet("update", pflag.ContinueOnError)
	f.bind(fs)
	require.NoError(t, fs.Parse([]string{"--name", "Desk lamp", "--required", "4"}))

	p, err := f.patch(fs, time.Now())
	require.NoError(t, err)
	require.NotNil(t, p.ProductName)
	require.NotNil(t, p.RequiredParticipants)
	assert.Equal(t, "Desk lamp", *p.ProductName)
	assert.Equal(t, 4, *p.RequiredParticipants)
	assert.Nil(t, p.GroupPrice)
	assert.Nil(t, p.ExpiresAt)
}

func TestApplyInput_KeepsDemoDefaults(t *testing.T) {
	name := "Espresso grinder"
	in := domain.DefaultCampaignInput()
	applyInput(&in, domain.Patch{ProductName: &name})

	assert.Equal(t, name, in.ProductName)
	assert.Equal(t, domain.DefaultCampaignInput().GroupPrice, in.GroupPrice)
	assert.Equal(t, 10, in.RequiredParticipants)
	assert.NoError(t, in.Validate())
}

func TestFormatTimeLeft(t *testing.T) {
	assert.Equal(t, "ended", formatTimeLeft(0))
	assert.Equal(t, "1h30m0s", formatTimeLeft(90*time.Minute))
	assert.Equal(t, "2d 3h0m0s", formatTimeLeft(51*time.Hour+400*time.Millisecond))
}

func TestPrintCampaign_JSON(t *testing.T) {
	jsonOutput = true
	t.Cleanup(func() { jsonOutput = false })

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c, err := domain.NewCampaign(domain.DefaultCampaignInput(), "c-1", "creator", now)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printCampaign(&buf, c, now))
	assert.Contains(t, buf.String(), `"id": "c-1"`)
	assert.Contains(t, buf.String(), `"progress"`)
}
