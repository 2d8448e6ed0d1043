package explore

import (
	"encoding/json"
	"testing"

	"github.com/biliview/biliview/internal/cache"
	"github.com/biliview/biliview/internal/log"
	"github.com/biliview/biliview/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return NewCache(cache.NewService(st, log.NullLogger()), log.NullLogger())
}

func sampleSession(query string) Session {
	return Session{
		Query: query,
		StepResults: []StepResult{
			{
				Step:       1,
				Name:       "keyword expansion",
				NameZH:     "关键词扩展",
				Status:     "done",
				Input:      json.RawMessage(`{"query":"` + query + `"}`),
				Output:     json.RawMessage(`["a","b"]`),
				OutputType: "keywords",
			},
			{
				Step:    2,
				Name:    "ranked results",
				Status:  "done",
				Output:  json.RawMessage(`[{"bvid":"BV1xx411c7mD","score":0.9}]`),
				Comment: "top hit only",
			},
		},
	}
}

func TestSaveAndRestore(t *testing.T) {
	c := newTestCache(t)
	session := sampleSession("mecha documentaries")

	require.NoError(t, c.Save(session))

	got := c.Restore("mecha documentaries")
	require.NotNil(t, got)
	assert.Equal(t, session.Query, got.Query)
	require.Len(t, got.StepResults, 2)
	assert.Equal(t, "关键词扩展", got.StepResults[0].NameZH)
	// Backend documents round-trip untouched.
	assert.JSONEq(t, `["a","b"]`, string(got.StepResults[0].Output))
	assert.JSONEq(t, `[{"bvid":"BV1xx411c7mD","score":0.9}]`, string(got.StepResults[1].Output))
}

func TestRestoreMiss(t *testing.T) {
	c := newTestCache(t)
	assert.Nil(t, c.Restore("never searched"))
}

func TestSessionsAreKeyedByQuery(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Save(sampleSession("query one")))
	require.NoError(t, c.Save(sampleSession("query two")))

	one := c.Restore("query one")
	two := c.Restore("query two")
	require.NotNil(t, one)
	require.NotNil(t, two)
	assert.Equal(t, "query one", one.Query)
	assert.Equal(t, "query two", two.Query)
}

func TestSaveOverwrites(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Save(sampleSession("q")))
	updated := sampleSession("q")
	updated.StepResults = updated.StepResults[:1]
	require.NoError(t, c.Save(updated))

	got := c.Restore("q")
	require.NotNil(t, got)
	assert.Len(t, got.StepResults, 1)
}

func TestInvalidate(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Save(sampleSession("q")))
	c.Invalidate("q")
	assert.Nil(t, c.Restore("q"))

	// Invalidating an absent session is harmless.
	c.Invalidate("q")
}
