package domain

import "encoding/json"

// Collection names inside the local cache store. One bbolt bucket each.
const (
	CollectionData    = "data-cache"
	CollectionImage   = "image-cache"
	CollectionHistory = "search-history"
)

// Collections lists every collection in creation order.
var Collections = []string{CollectionData, CollectionImage, CollectionHistory}

// CacheEntry is the stored form of a single cached value. Timestamps are
// Unix milliseconds; ExpiresAt == 0 means the entry never expires.
type CacheEntry struct {
	Key            string          `json:"key"`
	Value          json.RawMessage `json:"value"`
	CreatedAt      int64           `json:"createdAt"`
	LastAccessedAt int64           `json:"lastAccessedAt"`
	ExpiresAt      int64           `json:"expiresAt"`
	Size           int64           `json:"size"`
	Namespace      string          `json:"namespace"`
}

// Expired reports whether the entry is stale at the given time (ms).
func (e *CacheEntry) Expired(nowMS int64) bool {
	return e.ExpiresAt > 0 && e.ExpiresAt < nowMS
}

// HistoryItem is one search submission. Every submission creates a new
// record; duplicate queries are deliberately retained as separate items.
type HistoryItem struct {
	ID          string `json:"id"`
	Query       string `json:"query"`
	Timestamp   int64  `json:"timestamp"`
	Pinned      bool   `json:"pinned"`
	ResultCount int    `json:"resultCount,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// HistoryGroup is a day-bucket of non-pinned history items.
type HistoryGroup struct {
	Label string        `json:"label"`
	Items []HistoryItem `json:"items"`
}

// CollectionStats summarizes one collection for reporting.
type CollectionStats struct {
	Count int `json:"count"`
}
