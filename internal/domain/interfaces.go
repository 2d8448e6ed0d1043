package domain

// KVStore is the durable key-value layer beneath the cache service.
// Implementations return real errors; expiry and eviction policy live in the
// layers above.
type KVStore interface {
	Put(collection string, entry *CacheEntry) error
	Get(collection, key string) (*CacheEntry, error)
	Delete(collection, key string) error
	Count(collection string) (int, error)
	Keys(collection string) ([]string, error)
	GetAll(collection string) ([]*CacheEntry, error)
	Clear(collection string) error

	// DeleteExpiredBefore removes every entry with 0 < expiresAt < nowMS
	// and returns how many were removed.
	DeleteExpiredBefore(collection string, nowMS int64) (int, error)

	// DeleteLeastRecent removes the n entries with the smallest
	// lastAccessedAt and returns how many were removed.
	DeleteLeastRecent(collection string, n int) (int, error)

	Close() error
}
