// Package store implements the durable cache store on BoltDB.
//
// Each collection maps to one bucket. Values are JSON-encoded
// domain.CacheEntry records keyed by the entry key. BoltDB has no secondary
// indexes, so expiry and recency orderings are cursor scans over the whole
// bucket; collections are capacity-bounded (<=2000 entries) which keeps the
// scans cheap.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/biliview/biliview/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const dbFileName = "biliview.db"

// Store implements domain.KVStore using BoltDB.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the store under dir and ensures every collection
// bucket exists. Bucket creation is additive; existing data is never touched.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFileName)
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range domain.Collections {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) view(fn func(tx *bolt.Tx) error) error {
	if s.db == nil {
		return domain.ErrStoreClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(tx *bolt.Tx) error) error {
	if s.db == nil {
		return domain.ErrStoreClosed
	}
	return s.db.Update(fn)
}

// Path returns the on-disk location of the database file.
func (s *Store) Path() string {
	if s.db == nil {
		return ""
	}
	return s.db.Path()
}

func bucketOf(tx *bolt.Tx, collection string) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(collection))
	if b == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCollection, collection)
	}
	return b, nil
}

// Put upserts an entry by key, overwriting any existing entry entirely.
func (s *Store) Put(collection string, entry *domain.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode entry %q: %w", entry.Key, err)
	}
	return s.update(func(tx *bolt.Tx) error {
		b, err := bucketOf(tx, collection)
		if err != nil {
			return err
		}
		return b.Put([]byte(entry.Key), data)
	})
}

// Get returns the entry for key or domain.ErrNotFound. Expiry is not applied
// here; that is cache-service policy.
func (s *Store) Get(collection, key string) (*domain.CacheEntry, error) {
	var entry *domain.CacheEntry
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucketOf(tx, collection)
		if err != nil {
			return err
		}
		v := b.Get([]byte(key))
		if v == nil {
			return domain.ErrNotFound
		}
		entry = &domain.CacheEntry{}
		return json.Unmarshal(v, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Store) Delete(collection, key string) error {
	return s.update(func(tx *bolt.Tx) error {
		b, err := bucketOf(tx, collection)
		if err != nil {
			return err
		}
		return b.Delete([]byte(key))
	})
}

func (s *Store) Count(collection string) (int, error) {
	var count int
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucketOf(tx, collection)
		if err != nil {
			return err
		}
		count = b.Stats().KeyN
		return nil
	})
	return count, err
}

func (s *Store) Keys(collection string) ([]string, error) {
	var keys []string
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucketOf(tx, collection)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// GetAll returns every entry in the collection, including expired ones.
func (s *Store) GetAll(collection string) ([]*domain.CacheEntry, error) {
	var entries []*domain.CacheEntry
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucketOf(tx, collection)
		if err != nil {
			return err
		}
		return b.ForEach(func(_, v []byte) error {
			entry := &domain.CacheEntry{}
			if err := json.Unmarshal(v, entry); err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) Clear(collection string) error {
	return s.update(func(tx *bolt.Tx) error {
		if _, err := bucketOf(tx, collection); err != nil {
			return err
		}
		if err := tx.DeleteBucket([]byte(collection)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(collection))
		return err
	})
}

// DeleteExpiredBefore removes every entry with 0 < expiresAt < nowMS.
func (s *Store) DeleteExpiredBefore(collection string, nowMS int64) (int, error) {
	deleted := 0
	err := s.update(func(tx *bolt.Tx) error {
		b, err := bucketOf(tx, collection)
		if err != nil {
			return err
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var entry domain.CacheEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue // skip undecodable entries rather than abort the sweep
			}
			if entry.ExpiresAt > 0 && entry.ExpiresAt < nowMS {
				if err := c.Delete(); err != nil {
					return err
				}
				deleted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// DeleteLeastRecent removes the n entries with the smallest lastAccessedAt.
// Ties break on key order, which keeps eviction deterministic.
func (s *Store) DeleteLeastRecent(collection string, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}

	type victim struct {
		key        string
		accessedAt int64
	}

	deleted := 0
	err := s.update(func(tx *bolt.Tx) error {
		b, err := bucketOf(tx, collection)
		if err != nil {
			return err
		}

		var all []victim
		if err := b.ForEach(func(k, v []byte) error {
			var entry domain.CacheEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return nil
			}
			all = append(all, victim{key: string(k), accessedAt: entry.LastAccessedAt})
			return nil
		}); err != nil {
			return err
		}

		sort.Slice(all, func(i, j int) bool {
			if all[i].accessedAt != all[j].accessedAt {
				return all[i].accessedAt < all[j].accessedAt
			}
			return all[i].key < all[j].key
		})

		if n > len(all) {
			n = len(all)
		}
		for _, v := range all[:n] {
			if err := b.Delete([]byte(v.key)); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
