package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/biliview/biliview/internal/cache"
	"github.com/biliview/biliview/internal/domain"
	"github.com/biliview/biliview/internal/log"
	"github.com/biliview/biliview/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(t *testing.T) (*Service, *cache.Service, *testClock) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := &testClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	c := cache.NewService(st, log.NullLogger())
	svc := NewService(c, log.NullLogger())
	svc.now = clock.Now
	svc.Load()
	return svc, c, clock
}

func TestAddRecord(t *testing.T) {
	svc, _, _ := newTestService(t)

	item, err := svc.AddRecord("  cat videos  ", 42)
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "cat videos", item.Query)
	assert.Equal(t, 42, item.ResultCount)
	assert.False(t, item.Pinned)
	assert.Equal(t, 1, svc.Count())
}

func TestAddRecordRejectsEmptyQuery(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.AddRecord("   ", 0)
	assert.Error(t, err)
	assert.Equal(t, 0, svc.Count())
}

func TestDuplicateQueriesStaySeparate(t *testing.T) {
	svc, _, clock := newTestService(t)

	first, err := svc.AddRecord("same query", 1)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := svc.AddRecord("same query", 2)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, svc.Count())
}

func TestRecordsSurviveReload(t *testing.T) {
	svc, c, clock := newTestService(t)

	added, err := svc.AddRecord("durable", 7)
	require.NoError(t, err)
	require.True(t, svc.TogglePin(added.ID))

	// A fresh service over the same cache sees the persisted records.
	reloaded := NewService(c, log.NullLogger())
	reloaded.now = clock.Now
	reloaded.Load()

	require.Equal(t, 1, reloaded.Count())
	got := reloaded.SortedItems()[0]
	assert.Equal(t, added.ID, got.ID)
	assert.Equal(t, "durable", got.Query)
	assert.True(t, got.Pinned)
}

func TestLoadMigratesLegacyRecords(t *testing.T) {
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	c := cache.NewService(st, log.NullLogger())

	// A record written before IDs existed: keyed by query, no ID field.
	legacy := domain.HistoryItem{Query: "old style query", Timestamp: 1_700_000_000_000}
	require.NoError(t, c.Set(domain.CollectionHistory, "history:old style query", legacy, cache.Options{TTL: cache.HistoryTTL}))

	svc := NewService(c, log.NullLogger())
	svc.Load()

	require.Equal(t, 1, svc.Count())
	got := svc.SortedItems()[0]
	assert.Equal(t, "1700000000000-old styl", got.ID)
	assert.Equal(t, "old style query", got.Query)

	// The legacy key is gone and the record now lives under its new ID.
	var tmp domain.HistoryItem
	assert.False(t, c.Has(domain.CollectionHistory, "history:old style query"))
	assert.True(t, c.Peek(domain.CollectionHistory, historyKey(got.ID), &tmp))
}

func TestTrimEvictsOldestUnpinned(t *testing.T) {
	svc, _, clock := newTestService(t)

	var first domain.HistoryItem
	for i := 0; i < MaxItems+1; i++ {
		item, err := svc.AddRecord(fmt.Sprintf("query %d", i), 0)
		require.NoError(t, err)
		if i == 0 {
			first = item
		}
		clock.Advance(time.Second)
	}

	assert.Equal(t, MaxItems, svc.Count())

	// The oldest record was the one trimmed.
	for _, item := range svc.SortedItems() {
		assert.NotEqual(t, first.ID, item.ID)
	}
}

func TestTrimNeverEvictsPinned(t *testing.T) {
	svc, _, clock := newTestService(t)

	// Five pinned records at the very start, then enough unpinned ones to
	// overflow the cap.
	var pinnedIDs []string
	for i := 0; i < 5; i++ {
		item, err := svc.AddRecord(fmt.Sprintf("pinned %d", i), 0)
		require.NoError(t, err)
		require.True(t, svc.TogglePin(item.ID))
		pinnedIDs = append(pinnedIDs, item.ID)
		clock.Advance(time.Second)
	}
	for i := 0; i < MaxItems; i++ {
		_, err := svc.AddRecord(fmt.Sprintf("filler %d", i), 0)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	assert.Equal(t, MaxItems, svc.Count())
	pinned := svc.PinnedItems()
	require.Len(t, pinned, 5)
	for _, id := range pinnedIDs {
		found := false
		for _, item := range pinned {
			if item.ID == id {
				found = true
			}
		}
		assert.True(t, found, "pinned record %s must survive trimming", id)
	}
}

func TestTrimmedRecordDoesNotSurviveReload(t *testing.T) {
	svc, c, clock := newTestService(t)

	// Fill the log to capacity with pinned records, so the next unpinned
	// addition is its own trim victim.
	for i := 0; i < MaxItems; i++ {
		item, err := svc.AddRecord(fmt.Sprintf("pinned %d", i), 0)
		require.NoError(t, err)
		require.True(t, svc.TogglePin(item.ID))
		clock.Advance(time.Second)
	}

	overflow, err := svc.AddRecord("overflow", 0)
	require.NoError(t, err)

	assert.Equal(t, MaxItems, svc.Count())
	assert.Equal(t, MaxItems, c.Count(domain.CollectionHistory), "trimmed record must not linger durably")

	reloaded := NewService(c, log.NullLogger())
	reloaded.now = clock.Now
	reloaded.Load()
	require.Equal(t, MaxItems, reloaded.Count())
	for _, item := range reloaded.SortedItems() {
		assert.NotEqual(t, overflow.ID, item.ID, "trimmed record must not resurrect on reload")
	}
}

func TestTogglePin(t *testing.T) {
	svc, _, _ := newTestService(t)

	item, err := svc.AddRecord("pin me", 0)
	require.NoError(t, err)

	assert.True(t, svc.TogglePin(item.ID))
	assert.Len(t, svc.PinnedItems(), 1)

	assert.True(t, svc.TogglePin(item.ID))
	assert.Empty(t, svc.PinnedItems())

	assert.False(t, svc.TogglePin("no-such-id"))
}

func TestRenameRecord(t *testing.T) {
	svc, _, _ := newTestService(t)

	item, err := svc.AddRecord("original query", 0)
	require.NoError(t, err)

	assert.True(t, svc.RenameRecord(item.ID, "My saved search"))
	got := svc.SortedItems()[0]
	assert.Equal(t, "My saved search", got.DisplayName)
	assert.Equal(t, "original query", got.Query, "renaming keeps the query")

	assert.False(t, svc.RenameRecord(item.ID, "   "))
	assert.False(t, svc.RenameRecord("no-such-id", "x"))
}

func TestRemoveRecord(t *testing.T) {
	svc, c, _ := newTestService(t)

	item, err := svc.AddRecord("remove me", 0)
	require.NoError(t, err)

	assert.True(t, svc.RemoveRecord(item.ID))
	assert.Equal(t, 0, svc.Count())
	assert.False(t, c.Has(domain.CollectionHistory, historyKey(item.ID)))

	assert.False(t, svc.RemoveRecord(item.ID))
}

func TestClearAll(t *testing.T) {
	svc, c, _ := newTestService(t)

	item, err := svc.AddRecord("pinned", 0)
	require.NoError(t, err)
	require.True(t, svc.TogglePin(item.ID))
	_, err = svc.AddRecord("unpinned", 0)
	require.NoError(t, err)

	require.NoError(t, svc.ClearAll())
	assert.Equal(t, 0, svc.Count())
	assert.Equal(t, 0, c.Count(domain.CollectionHistory))
}

func TestClearUnpinned(t *testing.T) {
	svc, _, clock := newTestService(t)

	pinned, err := svc.AddRecord("keep", 0)
	require.NoError(t, err)
	require.True(t, svc.TogglePin(pinned.ID))
	clock.Advance(time.Second)
	_, err = svc.AddRecord("drop", 0)
	require.NoError(t, err)

	svc.ClearUnpinned()
	require.Equal(t, 1, svc.Count())
	assert.Equal(t, pinned.ID, svc.SortedItems()[0].ID)
}

func TestSortedItemsPinnedFirstNewestFirst(t *testing.T) {
	svc, _, clock := newTestService(t)

	a, _ := svc.AddRecord("a", 0)
	clock.Advance(time.Minute)
	b, _ := svc.AddRecord("b", 0)
	clock.Advance(time.Minute)
	c, _ := svc.AddRecord("c", 0)
	require.True(t, svc.TogglePin(a.ID))

	sorted := svc.SortedItems()
	require.Len(t, sorted, 3)
	assert.Equal(t, a.ID, sorted[0].ID, "pinned record sorts first")
	assert.Equal(t, c.ID, sorted[1].ID)
	assert.Equal(t, b.ID, sorted[2].ID)
}

func TestSearch(t *testing.T) {
	svc, _, clock := newTestService(t)

	svc.AddRecord("Gundam opening themes", 0)
	clock.Advance(time.Second)
	svc.AddRecord("cooking tutorials", 0)
	clock.Advance(time.Second)
	svc.AddRecord("gundam model review", 0)

	// Substring match is case-folded.
	hits := svc.Search("GUNDAM")
	require.Len(t, hits, 2)
	assert.Equal(t, "gundam model review", hits[0].Query)

	// An empty keyword returns everything.
	assert.Len(t, svc.Search("  "), 3)

	// Fuzzy fallback catches subsequence matches.
	hits = svc.Search("ckng")
	require.Len(t, hits, 1)
	assert.Equal(t, "cooking tutorials", hits[0].Query)

	assert.Empty(t, svc.Search("zzzzz"))
}

func TestGroupedRecentItems(t *testing.T) {
	svc, _, clock := newTestService(t)
	base := clock.Now()

	add := func(query string, at time.Time) {
		clock.now = at
		_, err := svc.AddRecord(query, 0)
		require.NoError(t, err)
	}

	add("last year", base.AddDate(-1, 0, 0))
	add("this spring", time.Date(base.Year(), 3, 2, 9, 0, 0, 0, time.UTC))
	add("three days ago", base.AddDate(0, 0, -3))
	add("two days ago", base.AddDate(0, 0, -2))
	add("yesterday", base.AddDate(0, 0, -1))
	add("today", base)
	clock.now = base

	groups := svc.GroupedRecentItems()
	require.Len(t, groups, 6)
	assert.Equal(t, "今天", groups[0].Label)
	assert.Equal(t, "昨天", groups[1].Label)
	assert.Equal(t, "2天前", groups[2].Label)
	assert.Equal(t, "6月12日", groups[3].Label)
	assert.Equal(t, "3月2日", groups[4].Label)
	assert.Equal(t, "2024年6月15日", groups[5].Label)

	assert.Equal(t, "today", groups[0].Items[0].Query)
}

func TestDateGroupLabelBoundaries(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 30, 0, 0, time.UTC)

	// Late last night is still yesterday even though it is under 24h away.
	assert.Equal(t, "昨天", dateGroupLabel(time.Date(2025, 6, 14, 23, 45, 0, 0, time.UTC), now))
	assert.Equal(t, "今天", dateGroupLabel(now.Add(-time.Minute), now))
	assert.Equal(t, "1月1日", dateGroupLabel(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, "2023年12月31日", dateGroupLabel(time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC), now))
}

func TestFormatFullTime(t *testing.T) {
	ts := time.Date(2025, 6, 15, 9, 5, 3, 0, time.Local).UnixMilli()
	assert.Equal(t, "2025-06-15 09:05:03", FormatFullTime(ts))
}
