package buffer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Open initializes the BoltDB file and ensures every bucket exists. The
// local campaign cache and the outbox share one file since Bolt holds an
// exclusive lock per file.
func Open(path string, buckets ...string) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Store persists remote writes that could not be delivered. A companion
// index bucket keyed by campaign id makes Pending a prefix seek.
type Store struct {
	db     *bolt.DB
	bucket []byte
	index  []byte
}

// NewStore wraps an outbox bucket in db, creating it and its campaign index
// if needed. An index missing from an older file is rebuilt.
func NewStore(db *bolt.DB, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = "outbox"
	}
	if db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	s := &Store{db: db, bucket: []byte(bucket), index: []byte(bucket + "_by_campaign")}
	if err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		if tx.Bucket(s.index) != nil {
			return nil
		}
		idx, err := tx.CreateBucket(s.index)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				return nil
			}
			return idx.Put(indexKey(item.CampaignID, k), nil)
		})
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Enqueue stores an item using a priority-aware key.
func (s *Store) Enqueue(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	item.normalize()
	item.bucketKey = []byte(buildKey(item))

	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(s.bucket).Put(item.bucketKey, payload); err != nil {
			return err
		}
		return tx.Bucket(s.index).Put(indexKey(item.CampaignID, item.bucketKey), nil)
	})
}

// GetBatch returns up to limit items in replay order without removing them.
func (s *Store) GetBatch(limit int) ([]Item, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var items []Item
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil && len(items) < limit; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			item.bucketKey = append([]byte(nil), k...)
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Pending reports whether any item for campaignID is waiting.
func (s *Store) Pending(campaignID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, bolt.ErrDatabaseNotOpen
	}
	prefix := indexPrefix(campaignID)
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		k, _ := tx.Bucket(s.index).Cursor().Seek(prefix)
		found = k != nil && bytes.HasPrefix(k, prefix)
		return nil
	})
	return found, err
}

// Remove deletes the provided item from the outbox.
func (s *Store) Remove(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if len(item.bucketKey) == 0 {
		return s.deleteByID(item.ID)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return s.delete(tx, item.bucketKey)
	})
}

// Requeue replaces an item after a failed attempt. The original timestamp
// is kept so items of one campaign stay in order.
func (s *Store) Requeue(item Item) error {
	if err := s.Remove(item); err != nil {
		return err
	}
	item.bucketKey = nil
	return s.Enqueue(item)
}

// Size returns the number of buffered items.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup removes items older than the provided timestamp and returns them.
func (s *Store) Cleanup(olderThan time.Time) ([]Item, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	var stale []Item
	err := s.db.Update(func(tx *bolt.Tx) error {
		stale = stale[:0]
		if err := tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				return nil
			}
			if item.Timestamp.Before(olderThan) {
				item.bucketKey = append([]byte(nil), k...)
				stale = append(stale, item)
			}
			return nil
		}); err != nil {
			return err
		}
		for _, item := range stale {
			if err := s.delete(tx, item.bucketKey); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stale, nil
}

// Stats exposes Bolt statistics for monitoring endpoints.
func (s *Store) Stats() bolt.Stats {
	if s == nil || s.db == nil {
		return bolt.Stats{}
	}
	return s.db.Stats()
}

func (s *Store) deleteByID(id string) error {
	if id == "" {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			if item.ID == id {
				return s.delete(tx, append([]byte(nil), k...))
			}
		}
		return nil
	})
}

// delete removes the item stored under key together with its index entry.
func (s *Store) delete(tx *bolt.Tx, key []byte) error {
	b := tx.Bucket(s.bucket)
	if v := b.Get(key); v != nil {
		var item Item
		if err := json.Unmarshal(v, &item); err == nil {
			if err := tx.Bucket(s.index).Delete(indexKey(item.CampaignID, key)); err != nil {
				return err
			}
		}
	}
	return b.Delete(key)
}

func buildKey(item Item) string {
	return fmt.Sprintf("%d_%020d_%s", item.Priority, item.Timestamp.UnixNano(), item.ID)
}

// Campaign ids never contain NUL, so the separator keeps "a" from matching "ab".
func indexPrefix(campaignID string) []byte {
	return append([]byte(campaignID), 0)
}

func indexKey(campaignID string, key []byte) []byte {
	return append(indexPrefix(campaignID), key...)
}
