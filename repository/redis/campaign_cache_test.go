package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/groupbuy/domain"
	"github.com/fastygo/groupbuy/repository"
)

func newCache(t *testing.T) (repository.CampaignCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCampaignCache(client, "test"), srv
}

func campaignAt(t *testing.T, id string, createdAt time.Time) *domain.Campaign {
	t.Helper()
	c, err := domain.NewCampaign(domain.DefaultCampaignInput(), id, "creator-"+id, createdAt)
	require.NoError(t, err)
	return c
}

func TestCampaignCache_SaveLoadDelete(t *testing.T) {
	cache, srv := newCache(t)
	ctx := context.Background()
	c := campaignAt(t, "c-1", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, cache.Save(ctx, c))
	assert.True(t, srv.Exists("test:campaign:c-1"))

	got, err := cache.Load(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, c.SameState(got))

	require.NoError(t, cache.Delete(ctx, "c-1"))
	_, err = cache.Load(ctx, "c-1")
	assert.ErrorIs(t, err, domain.ErrCampaignNotFound)
	require.NoError(t, cache.Delete(ctx, "c-1"))

	assert.ErrorIs(t, cache.Save(ctx, &domain.Campaign{}), domain.ErrInvalidPayload)
}

func TestCampaignCache_LoadAllNewestFirst(t *testing.T) {
	cache, srv := newCache(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// the first three share one millisecond
	require.NoError(t, cache.Save(ctx, campaignAt(t, "c", base.Add(300*time.Microsecond))))
	require.NoError(t, cache.Save(ctx, campaignAt(t, "a", base.Add(100*time.Microsecond))))
	require.NoError(t, cache.Save(ctx, campaignAt(t, "b", base.Add(200*time.Microsecond))))
	require.NoError(t, cache.Save(ctx, campaignAt(t, "old", base.Add(-time.Hour))))

	_, err := srv.ZAdd("test:campaigns:by_created", float64(base.UnixMilli()), "dangling")
	require.NoError(t, err)
	require.NoError(t, srv.Set("test:campaign:broken", "{not json"))
	_, err = srv.ZAdd("test:campaigns:by_created", float64(base.UnixMilli()), "broken")
	require.NoError(t, err)

	all, err := cache.LoadAll(ctx)
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, c := range all {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"c", "b", "a", "old"}, ids)
}

func TestCampaignCache_LoadAllEmpty(t *testing.T) {
	cache, _ := newCache(t)
	all, err := cache.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}
