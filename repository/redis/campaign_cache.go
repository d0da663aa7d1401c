package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/groupbuy/domain"
	"github.com/fastygo/groupbuy/repository"
)

type campaignCache struct {
	client redislib.UniversalClient
	prefix string
	index  string
}

// NewCampaignCache creates a Redis-backed campaign cache. Entries never expire.
func NewCampaignCache(client redislib.UniversalClient, namespace string) repository.CampaignCache {
	if namespace == "" {
		namespace = "groupbuy"
	}
	return &campaignCache{
		client: client,
		prefix: namespace + ":campaign:",
		index:  namespace + ":campaigns:by_created",
	}
}

func (c *campaignCache) Save(ctx context.Context, campaign *domain.Campaign) error {
	if campaign == nil || campaign.ID == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(campaign)
	if err != nil {
		return err
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
		pipe.Set(ctx, c.key(campaign.ID), payload, 0)
		pipe.ZAdd(ctx, c.index, redislib.Z{
			Score:  float64(campaign.CreatedAt.UnixMilli()),
			Member: campaign.ID,
		})
		return nil
	})
	return err
}

func (c *campaignCache) Load(ctx context.Context, id string) (*domain.Campaign, error) {
	result, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, err
	}

	var campaign domain.Campaign
	if err := json.Unmarshal(result, &campaign); err != nil {
		return nil, fmt.Errorf("decode cached campaign %s: %w", id, err)
	}
	return &campaign, nil
}

func (c *campaignCache) LoadAll(ctx context.Context) ([]domain.Campaign, error) {
	ids, err := c.client.ZRevRange(ctx, c.index, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	campaigns := make([]domain.Campaign, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry without a payload
			continue
		}
		var campaign domain.Campaign
		if err := json.Unmarshal([]byte(raw), &campaign); err != nil {
			continue
		}
		campaigns = append(campaigns, campaign)
	}
	// scores only carry milliseconds
	sort.SliceStable(campaigns, func(i, j int) bool {
		return campaigns[i].CreatedAt.After(campaigns[j].CreatedAt)
	})
	return campaigns, nil
}

func (c *campaignCache) Delete(ctx context.Context, id string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
		pipe.Del(ctx, c.key(id))
		pipe.ZRem(ctx, c.index, id)
		return nil
	})
	return err
}

func (c *campaignCache) key(id string) string {
	return fmt.Sprintf("%s%s", c.prefix, id)
}
