package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/biliview/biliview/internal/domain"
	"github.com/biliview/biliview/internal/log"
	"github.com/biliview/biliview/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a settable clock so expiry tests never sleep.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(t *testing.T) (*Service, *testClock) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := &testClock{now: time.UnixMilli(1_700_000_000_000)}
	svc := NewService(st, log.NullLogger())
	svc.now = clock.Now
	return svc, clock
}

func TestSetThenGet(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.Set(domain.CollectionData, "k", "hello", Options{}))

	var got string
	assert.True(t, svc.Get(domain.CollectionData, "k", &got))
	assert.Equal(t, "hello", got)
}

func TestGetMissingIsNotAnError(t *testing.T) {
	svc, _ := newTestService(t)

	var got string
	assert.False(t, svc.Get(domain.CollectionData, "absent", &got))
}

func TestLastWriteWins(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.Set(domain.CollectionData, "k", "first", Options{}))
	require.NoError(t, svc.Set(domain.CollectionData, "k", "second", Options{}))

	var got string
	require.True(t, svc.Get(domain.CollectionData, "k", &got))
	assert.Equal(t, "second", got)
}

func TestTTLExpiry(t *testing.T) {
	svc, clock := newTestService(t)

	require.NoError(t, svc.Set(domain.CollectionData, "k", "v", Options{TTL: time.Minute}))

	var got string
	assert.True(t, svc.Get(domain.CollectionData, "k", &got), "fresh entry must hit")

	clock.Advance(59 * time.Second)
	assert.True(t, svc.Get(domain.CollectionData, "k", &got), "entry is still within TTL")

	clock.Advance(2 * time.Second)
	assert.False(t, svc.Get(domain.CollectionData, "k", &got), "stale entry must miss")

	// The miss schedules a background delete of the stale entry.
	assert.Eventually(t, func() bool {
		return svc.Count(domain.CollectionData) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestNeverExpire(t *testing.T) {
	svc, clock := newTestService(t)

	require.NoError(t, svc.Set(domain.CollectionData, "k", "v", Options{TTL: NeverExpire}))

	clock.Advance(10 * 365 * 24 * time.Hour)

	var got string
	assert.True(t, svc.Get(domain.CollectionData, "k", &got))
}

func TestDefaultTTLApplied(t *testing.T) {
	svc, clock := newTestService(t)

	require.NoError(t, svc.Set(domain.CollectionData, "k", "v", Options{}))

	clock.Advance(23 * time.Hour)
	var got string
	assert.True(t, svc.Get(domain.CollectionData, "k", &got))

	clock.Advance(2 * time.Hour)
	assert.False(t, svc.Get(domain.CollectionData, "k", &got))
}

func TestHasDoesNotTouchAccessTime(t *testing.T) {
	svc, clock := newTestService(t)

	require.NoError(t, svc.Set(domain.CollectionData, "k", "v", Options{}))
	before := svc.GetAll(domain.CollectionData)[0].LastAccessedAt

	clock.Advance(time.Minute)
	assert.True(t, svc.Has(domain.CollectionData, "k"))

	after := svc.GetAll(domain.CollectionData)[0].LastAccessedAt
	assert.Equal(t, before, after)
}

func TestGetTouchesAccessTime(t *testing.T) {
	svc, clock := newTestService(t)

	require.NoError(t, svc.Set(domain.CollectionData, "k", "v", Options{}))
	before := svc.GetAll(domain.CollectionData)[0].LastAccessedAt

	clock.Advance(time.Minute)
	var got string
	require.True(t, svc.Get(domain.CollectionData, "k", &got))

	after := svc.GetAll(domain.CollectionData)[0].LastAccessedAt
	assert.Greater(t, after, before)
}

func TestClearExpired(t *testing.T) {
	svc, clock := newTestService(t)

	require.NoError(t, svc.Set(domain.CollectionData, "short", "v", Options{TTL: time.Minute}))
	require.NoError(t, svc.Set(domain.CollectionData, "long", "v", Options{TTL: time.Hour}))
	require.NoError(t, svc.Set(domain.CollectionData, "forever", "v", Options{TTL: NeverExpire}))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, svc.ClearExpired(domain.CollectionData))
	assert.Equal(t, 2, svc.Count(domain.CollectionData))

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, svc.ClearExpired(domain.CollectionData))
	assert.Equal(t, 1, svc.Count(domain.CollectionData))
}

func TestEvictLRUOrder(t *testing.T) {
	svc, clock := newTestService(t)

	// Five entries with distinct access times.
	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Set(domain.CollectionData, fmt.Sprintf("k%d", i), i, Options{TTL: NeverExpire}))
		clock.Advance(time.Second)
	}

	// Touch k0 so it becomes the most recently used.
	var v int
	require.True(t, svc.Get(domain.CollectionData, "k0", &v))

	evicted := svc.EvictLRU(domain.CollectionData, 3)
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 3, svc.Count(domain.CollectionData))

	// k1 and k2 had the smallest access times.
	assert.False(t, svc.Has(domain.CollectionData, "k1"))
	assert.False(t, svc.Has(domain.CollectionData, "k2"))
	assert.True(t, svc.Has(domain.CollectionData, "k0"))
	assert.True(t, svc.Has(domain.CollectionData, "k3"))
	assert.True(t, svc.Has(domain.CollectionData, "k4"))
}

func TestEvictLRUNoOpWhenUnderCap(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.Set(domain.CollectionData, "k", "v", Options{}))
	assert.Equal(t, 0, svc.EvictLRU(domain.CollectionData, 10))
	assert.Equal(t, 1, svc.Count(domain.CollectionData))
}

func TestMaintainAppliesCaps(t *testing.T) {
	svc, clock := newTestService(t)
	svc.SetLimits(3, 2)

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Set(domain.CollectionImage, fmt.Sprintf("img%d", i), []byte{1}, Options{TTL: NeverExpire}))
		require.NoError(t, svc.Set(domain.CollectionData, fmt.Sprintf("d%d", i), i, Options{TTL: NeverExpire}))
		clock.Advance(time.Second)
	}

	svc.Maintain()

	assert.Equal(t, 3, svc.Count(domain.CollectionImage))
	assert.Equal(t, 2, svc.Count(domain.CollectionData))
}

func TestBlobRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)

	blob := []byte{0x89, 0x50, 0x4e, 0x47, 0x00}
	require.NoError(t, svc.Set(domain.CollectionImage, "img", blob, Options{TTL: ImageTTL, Namespace: "cover"}))

	var got []byte
	require.True(t, svc.Get(domain.CollectionImage, "img", &got))
	assert.Equal(t, blob, got)
}

func TestStats(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.Set(domain.CollectionData, "a", 1, Options{}))
	require.NoError(t, svc.Set(domain.CollectionData, "b", 2, Options{}))
	require.NoError(t, svc.Set(domain.CollectionImage, "i", []byte{1}, Options{}))

	stats := svc.Stats()
	assert.Equal(t, 2, stats[domain.CollectionData].Count)
	assert.Equal(t, 1, stats[domain.CollectionImage].Count)
	assert.Equal(t, 0, stats[domain.CollectionHistory].Count)
}

func TestEstimateSize(t *testing.T) {
	assert.Equal(t, int64(3), estimateSize([]byte{1, 2, 3}))
	assert.Equal(t, int64(10), estimateSize("hello"))
	// JSON length x2: {"a":1} is 7 bytes.
	assert.Equal(t, int64(14), estimateSize(map[string]int{"a": 1}))
	// Unserializable values degrade to zero instead of failing the write.
	assert.Equal(t, int64(0), estimateSize(func() {}))
}

func TestSizeRecordedOnEntries(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.Set(domain.CollectionData, "s", "hello", Options{}))
	entries := svc.GetAll(domain.CollectionData)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(10), entries[0].Size)
}
