package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/groupbuy/domain"
	"github.com/fastygo/groupbuy/repository"
)

const keyPrefix = "campaign_"

type campaignCache struct {
	db     *bbolt.DB
	bucket []byte
}

// NewCampaignCache creates a BoltDB-backed campaign cache in the given bucket.
func NewCampaignCache(db *bbolt.DB, bucket string) (repository.CampaignCache, error) {
	if db == nil {
		return nil, bbolt.ErrDatabaseNotOpen
	}
	if bucket == "" {
		bucket = "campaigns"
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		return nil, err
	}
	return &campaignCache{db: db, bucket: []byte(bucket)}, nil
}

func (c *campaignCache) Save(_ context.Context, campaign *domain.Campaign) error {
	if campaign == nil || campaign.ID == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(campaign)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(c.bucket).Put(key(campaign.ID), payload)
	})
}

func (c *campaignCache) Load(_ context.Context, id string) (*domain.Campaign, error) {
	var campaign *domain.Campaign
	err := c.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(c.bucket).Get(key(id))
		if raw == nil {
			return domain.ErrCampaignNotFound
		}
		var decoded domain.Campaign
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("decode cached campaign %s: %w", id, err)
		}
		campaign = &decoded
		return nil
	})
	return campaign, err
}

func (c *campaignCache) LoadAll(_ context.Context) ([]domain.Campaign, error) {
	var campaigns []domain.Campaign
	err := c.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(c.bucket).ForEach(func(_, v []byte) error {
			var campaign domain.Campaign
			if err := json.Unmarshal(v, &campaign); err != nil {
				// unreadable entries are skipped, not fatal
				return nil
			}
			campaigns = append(campaigns, campaign)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(campaigns, func(i, j int) bool {
		return campaigns[i].CreatedAt.After(campaigns[j].CreatedAt)
	})
	return campaigns, nil
}

func (c *campaignCache) Delete(_ context.Context, id string) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(c.bucket).Delete(key(id))
	})
}

func key(id string) []byte {
	return []byte(keyPrefix + id)
}
