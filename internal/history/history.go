// Package history keeps the append-only search history log. Every
// submission creates a new record (duplicate queries stay separate entries);
// capacity pressure trims the oldest unpinned records, never pinned ones.
package history

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/biliview/biliview/internal/cache"
	"github.com/biliview/biliview/internal/domain"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/oklog/ulid/v2"
)

// MaxItems bounds the history log; oldest unpinned records trim first.
const MaxItems = 200

const historyNamespace = "search-history"

// Service manages search history over the shared cache service. The
// in-memory item list mirrors the history collection and is loaded once.
type Service struct {
	cache  *cache.Service
	logger *slog.Logger

	mu      sync.Mutex
	items   []domain.HistoryItem
	loaded  bool
	entropy *ulid.MonotonicEntropy

	now func() time.Time
}

// NewService creates the history service.
func NewService(c *cache.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cache:   c,
		logger:  logger,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		now:     time.Now,
	}
}

func (s *Service) newID() string {
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

func historyKey(id string) string { return "history:" + id }

// Load reads the history collection into memory. Idempotent. Records
// written before IDs existed are migrated in place: they get a stable ID
// derived from their timestamp and query, the old key is removed and the
// record re-persisted.
func (s *Service) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return
	}

	entries := s.cache.GetAll(domain.CollectionHistory)
	items := make([]domain.HistoryItem, 0, len(entries))
	migrated := 0

	for _, entry := range entries {
		var item domain.HistoryItem
		if !s.cache.Peek(domain.CollectionHistory, entry.Key, &item) {
			continue // expired or undecodable
		}
		if item.Query == "" {
			continue
		}
		if item.ID == "" {
			queryTag := item.Query
			if len(queryTag) > 8 {
				queryTag = queryTag[:8]
			}
			item.ID = fmt.Sprintf("%d-%s", item.Timestamp, queryTag)
			if err := s.cache.Delete(domain.CollectionHistory, entry.Key); err != nil {
				s.logger.Warn("failed to delete legacy history key", "key", entry.Key, "error", err)
			}
			s.persist(item)
			migrated++
		}
		items = append(items, item)
	}

	s.items = items
	s.loaded = true
	s.logger.Info("loaded search history", "count", len(items), "migrated", migrated)
}

// AddRecord appends a new history record for a search submission.
// Repeated queries deliberately create separate records.
func (s *Service) AddRecord(query string, resultCount int) (domain.HistoryItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.HistoryItem{}, fmt.Errorf("empty query")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := domain.HistoryItem{
		ID:          s.newID(),
		Query:       query,
		Timestamp:   s.now().UnixMilli(),
		ResultCount: resultCount,
	}
	s.items = append(s.items, item)
	// Persist before trimming: when the new record is itself the trim
	// victim, the trim's store delete must cover it or a reload would
	// resurrect it past the capacity bound.
	s.persist(item)

	if len(s.items) > MaxItems {
		s.trimLocked()
	}
	return item, nil
}

// TogglePin flips a record's pinned state.
func (s *Service) TogglePin(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Pinned = !s.items[i].Pinned
			s.persist(s.items[i])
			return true
		}
	}
	return false
}

// RenameRecord sets a record's display name; the original query is kept.
func (s *Service) RenameRecord(id, newName string) bool {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].DisplayName = newName
			s.persist(s.items[i])
			return true
		}
	}
	return false
}

// RemoveRecord deletes a single record.
func (s *Service) RemoveRecord(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			if err := s.cache.Delete(domain.CollectionHistory, historyKey(id)); err != nil {
				s.logger.Warn("failed to delete history record", "id", id, "error", err)
			}
			return true
		}
	}
	return false
}

// ClearAll removes every record, pinned included.
func (s *Service) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	return s.cache.Clear(domain.CollectionHistory)
}

// ClearUnpinned removes every non-pinned record.
func (s *Service) ClearUnpinned() {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	for _, item := range s.items {
		if item.Pinned {
			kept = append(kept, item)
			continue
		}
		if err := s.cache.Delete(domain.CollectionHistory, historyKey(item.ID)); err != nil {
			s.logger.Warn("failed to delete history record", "id", item.ID, "error", err)
		}
	}
	s.items = kept
}

// Search filters history by keyword: case-folded substring match first,
// fuzzy match as fallback. An empty keyword returns everything sorted.
func (s *Service) Search(keyword string) []domain.HistoryItem {
	keyword = strings.TrimSpace(keyword)
	sorted := s.SortedItems()
	if keyword == "" {
		return sorted
	}

	lower := strings.ToLower(keyword)
	var out []domain.HistoryItem
	for _, item := range sorted {
		if strings.Contains(strings.ToLower(item.Query), lower) ||
			fuzzy.MatchNormalizedFold(keyword, item.Query) {
			out = append(out, item)
		}
	}
	return out
}

// SortedItems returns all records, pinned first, newest first within each
// group.
func (s *Service) SortedItems() []domain.HistoryItem {
	s.mu.Lock()
	items := make([]domain.HistoryItem, len(s.items))
	copy(items, s.items)
	s.mu.Unlock()

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Pinned != items[j].Pinned {
			return items[i].Pinned
		}
		return items[i].Timestamp > items[j].Timestamp
	})
	return items
}

// PinnedItems returns the pinned records, newest first.
func (s *Service) PinnedItems() []domain.HistoryItem {
	var out []domain.HistoryItem
	for _, item := range s.SortedItems() {
		if item.Pinned {
			out = append(out, item)
		}
	}
	return out
}

// RecentItems returns the non-pinned records, newest first.
func (s *Service) RecentItems() []domain.HistoryItem {
	var out []domain.HistoryItem
	for _, item := range s.SortedItems() {
		if !item.Pinned {
			out = append(out, item)
		}
	}
	return out
}

// Count returns the total number of records.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// persist writes one record through the cache service. Failures are logged;
// the in-memory copy stays authoritative for this session.
func (s *Service) persist(item domain.HistoryItem) {
	err := s.cache.Set(domain.CollectionHistory, historyKey(item.ID), item, cache.Options{
		TTL:       cache.HistoryTTL,
		Namespace: historyNamespace,
	})
	if err != nil {
		s.logger.Warn("failed to persist history record", "id", item.ID, "error", err)
	}
}

// trimLocked drops the oldest unpinned records until the log fits MaxItems.
// Pinned records are never auto-evicted. Caller holds s.mu.
func (s *Service) trimLocked() {
	sorted := make([]domain.HistoryItem, len(s.items))
	copy(sorted, s.items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Pinned != sorted[j].Pinned {
			return sorted[i].Pinned
		}
		return sorted[i].Timestamp > sorted[j].Timestamp
	})

	excess := len(sorted) - MaxItems
	if excess <= 0 {
		return
	}

	// Oldest unpinned records sit at the tail; walk backwards dropping
	// them until the log fits again.
	kept := make([]domain.HistoryItem, 0, MaxItems)
	for i := len(sorted) - 1; i >= 0; i-- {
		victim := sorted[i]
		if excess > 0 && !victim.Pinned {
			if err := s.cache.Delete(domain.CollectionHistory, historyKey(victim.ID)); err != nil {
				s.logger.Warn("failed to delete trimmed history record", "id", victim.ID, "error", err)
			}
			excess--
			continue
		}
		kept = append(kept, victim)
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	s.items = kept
}
