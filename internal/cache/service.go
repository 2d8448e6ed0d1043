// Package cache layers TTL expiry and LRU eviction on top of the durable
// store. One Service instance is shared for the life of the process.
//
// Error policy: the store returns real errors, this layer absorbs them.
// Reads degrade to a miss and writes to a logged warning, so callers treat a
// cache failure and a cache miss identically.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/biliview/biliview/internal/domain"
)

// TTLs and capacity limits, in line with the hosted product's policy.
const (
	DefaultTTL = 24 * time.Hour
	ImageTTL   = 7 * 24 * time.Hour
	HistoryTTL = 30 * 24 * time.Hour
	ExploreTTL = 7 * 24 * time.Hour

	MaxImageEntries = 2000
	MaxDataEntries  = 500
)

// Options configure a single Set call.
type Options struct {
	// TTL of the entry; <= 0 means never expire. Zero value means
	// "unset" and falls back to DefaultTTL.
	TTL time.Duration
	// Namespace groups entries for reporting; it does not isolate keys.
	Namespace string
}

// NeverExpire marks an entry as permanent (distinct from the zero Options
// value, which picks DefaultTTL).
const NeverExpire = time.Duration(-1)

// Service is the generic cache with TTL + LRU policy.
type Service struct {
	store  domain.KVStore
	logger *slog.Logger

	maxImageEntries int
	maxDataEntries  int

	now func() time.Time
}

// NewService creates the shared cache service over an opened store.
func NewService(store domain.KVStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:           store,
		logger:          logger,
		maxImageEntries: MaxImageEntries,
		maxDataEntries:  MaxDataEntries,
		now:             time.Now,
	}
}

// SetLimits overrides the per-collection entry caps used by Maintain.
func (s *Service) SetLimits(maxImageEntries, maxDataEntries int) {
	if maxImageEntries > 0 {
		s.maxImageEntries = maxImageEntries
	}
	if maxDataEntries > 0 {
		s.maxDataEntries = maxDataEntries
	}
}

func (s *Service) nowMS() int64 {
	return s.now().UnixMilli()
}

// Set writes value under key. Overwriting an existing entry is not an error;
// two concurrent writers race and the last committed write wins.
func (s *Service) Set(collection, key string, value any, opts Options) error {
	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "default"
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %q: %w", key, err)
	}

	now := s.nowMS()
	entry := &domain.CacheEntry{
		Key:            key,
		Value:          raw,
		CreatedAt:      now,
		LastAccessedAt: now,
		Size:           estimateSize(value),
		Namespace:      namespace,
	}
	if ttl > 0 {
		entry.ExpiresAt = now + ttl.Milliseconds()
	}

	return s.store.Put(collection, entry)
}

// Get loads the value for key into dest and reports whether it was found.
// Expired entries are deleted in the background and reported as a miss; store
// failures are logged and reported as a miss too.
func (s *Service) Get(collection, key string, dest any) bool {
	return s.lookup(collection, key, dest, true)
}

// Peek is Get without refreshing the entry's last-access time.
func (s *Service) Peek(collection, key string, dest any) bool {
	return s.lookup(collection, key, dest, false)
}

// Has reports whether key exists and is not expired, without touching the
// access time.
func (s *Service) Has(collection, key string) bool {
	return s.lookup(collection, key, nil, false)
}

func (s *Service) lookup(collection, key string, dest any, touch bool) bool {
	entry, err := s.store.Get(collection, key)
	if err != nil {
		if err != domain.ErrNotFound {
			s.logger.Warn("cache read failed", "collection", collection, "key", key, "error", err)
		}
		return false
	}

	if entry.Expired(s.nowMS()) {
		// Stale entries are never returned; the delete runs in the
		// background and a delete failure still yields a miss.
		go func() {
			if err := s.store.Delete(collection, key); err != nil {
				s.logger.Warn("failed to delete expired entry", "collection", collection, "key", key, "error", err)
			}
		}()
		return false
	}

	if touch {
		entry.LastAccessedAt = s.nowMS()
		if err := s.store.Put(collection, entry); err != nil {
			s.logger.Warn("failed to update access time", "collection", collection, "key", key, "error", err)
		}
	}

	if dest != nil {
		if err := json.Unmarshal(entry.Value, dest); err != nil {
			s.logger.Warn("cache entry undecodable", "collection", collection, "key", key, "error", err)
			return false
		}
	}
	return true
}

func (s *Service) Delete(collection, key string) error {
	return s.store.Delete(collection, key)
}

// Keys returns every key in the collection, expired entries included.
func (s *Service) Keys(collection string) []string {
	keys, err := s.store.Keys(collection)
	if err != nil {
		s.logger.Warn("failed to list keys", "collection", collection, "error", err)
		return nil
	}
	return keys
}

// GetAll returns every entry with metadata, expired entries included.
func (s *Service) GetAll(collection string) []*domain.CacheEntry {
	entries, err := s.store.GetAll(collection)
	if err != nil {
		s.logger.Warn("failed to list entries", "collection", collection, "error", err)
		return nil
	}
	return entries
}

func (s *Service) Count(collection string) int {
	count, err := s.store.Count(collection)
	if err != nil {
		s.logger.Warn("failed to count entries", "collection", collection, "error", err)
		return 0
	}
	return count
}

func (s *Service) Clear(collection string) error {
	return s.store.Clear(collection)
}

// ClearExpired deletes every entry whose TTL has passed and returns how many
// were removed.
func (s *Service) ClearExpired(collection string) int {
	deleted, err := s.store.DeleteExpiredBefore(collection, s.nowMS())
	if err != nil {
		s.logger.Warn("expiry sweep failed", "collection", collection, "error", err)
		return 0
	}
	return deleted
}

// EvictLRU trims the collection down to maxEntries, removing the
// oldest-accessed entries first. No-op when the collection fits.
func (s *Service) EvictLRU(collection string, maxEntries int) int {
	count, err := s.store.Count(collection)
	if err != nil {
		s.logger.Warn("eviction count failed", "collection", collection, "error", err)
		return 0
	}
	if count <= maxEntries {
		return 0
	}
	deleted, err := s.store.DeleteLeastRecent(collection, count-maxEntries)
	if err != nil {
		s.logger.Warn("eviction failed", "collection", collection, "error", err)
		return 0
	}
	return deleted
}

// Maintain runs the expiry sweep and LRU eviction over the image and data
// collections. Failures are logged, never returned.
func (s *Service) Maintain() {
	expiredImages := s.ClearExpired(domain.CollectionImage)
	expiredData := s.ClearExpired(domain.CollectionData)
	evictedImages := s.EvictLRU(domain.CollectionImage, s.maxImageEntries)
	evictedData := s.EvictLRU(domain.CollectionData, s.maxDataEntries)

	if expiredImages+expiredData+evictedImages+evictedData > 0 {
		s.logger.Info("cache maintenance",
			"expired_images", expiredImages,
			"expired_data", expiredData,
			"evicted_images", evictedImages,
			"evicted_data", evictedData,
		)
	}
}

// Stats returns the per-collection entry counts.
func (s *Service) Stats() map[string]domain.CollectionStats {
	stats := make(map[string]domain.CollectionStats, len(domain.Collections))
	for _, collection := range domain.Collections {
		stats[collection] = domain.CollectionStats{Count: s.Count(collection)}
	}
	return stats
}

// estimateSize roughly estimates the stored size of a value: blobs by byte
// length, strings at two bytes per rune slot (UTF-16 convention carried over
// from the web client), everything else by JSON length. Unserializable
// values count as zero rather than failing the write.
func estimateSize(value any) int64 {
	switch v := value.(type) {
	case []byte:
		return int64(len(v))
	case string:
		return int64(len([]rune(v)) * 2)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return 0
		}
		return int64(len(raw) * 2)
	}
}
