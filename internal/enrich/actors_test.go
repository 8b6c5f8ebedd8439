package enrich

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyinsider/tracker/internal/store"
)

type fakeSource struct {
	calls   map[string]int
	history map[string][]store.Activity
	err     error
}

func newFakeSource() *fakeSource {
	return &fakeSource{calls: make(map[string]int), history: make(map[string][]store.Activity)}
}

func (f *fakeSource) FetchActivity(_ context.Context, user string) ([]store.Activity, error) {
	f.calls[user]++
	if f.err != nil {
		return nil, f.err
	}
	return f.history[user], nil
}

func ptr[T any](v T) *T { return &v }

func TestDeriveStats(t *testing.T) {
	activities := []store.Activity{
		{Side: ptr("BUY"), ConditionID: ptr("c1"), Timestamp: ptr(int64(300))},
		{Side: ptr("SELL"), ConditionID: ptr("c1"), Timestamp: ptr(int64(200))},
		{Side: ptr("BUY"), Slug: ptr("some-market"), Timestamp: ptr(int64(250))},
		{Side: ptr("BUY"), ConditionID: ptr("c2"), Slug: ptr("ignored-slug")},
		{ActivityType: ptr("REDEEM"), ConditionID: ptr("c9"), Timestamp: ptr(int64(100))},
		{Side: ptr("BUY")},
	}

	stats := DeriveStats("0xabc", activities)
	assert.Equal(t, "0xabc", stats.Address)
	assert.Equal(t, 3, stats.UniqueMarkets, "c1, some-market, c2; side-less records are not trades")
	assert.Equal(t, 5, stats.TotalTrades)
	require.NotNil(t, stats.FirstActivity)
	assert.Equal(t, int64(100), *stats.FirstActivity, "earliest timestamp ignores side")
}

func TestDeriveStatsEmpty(t *testing.T) {
	stats := DeriveStats("0xabc", nil)
	assert.Zero(t, stats.UniqueMarkets)
	assert.Zero(t, stats.TotalTrades)
	assert.Nil(t, stats.FirstActivity)
}

func TestActorCacheTTL(t *testing.T) {
	src := newFakeSource()
	src.history["0xw"] = []store.Activity{{Side: ptr("BUY"), ConditionID: ptr("c1")}}

	now := time.Unix(1000, 0)
	cache := NewActorCache(src, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	stats, err := cache.StatsFor(ctx, "0xw")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UniqueMarkets)

	now = now.Add(59 * time.Second)
	_, err = cache.StatsFor(ctx, "0xw")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls["0xw"], "served from cache within TTL")

	now = now.Add(time.Second)
	_, err = cache.StatsFor(ctx, "0xw")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls["0xw"], "refreshed once the TTL elapses")
}

func TestActorCacheFetchFailure(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New("connection refused")
	cache := NewActorCache(src)

	_, err := cache.StatsFor(context.Background(), "0x1234567890abcdef")
	require.Error(t, err)
	assert.ErrorIs(t, err, src.err)
	assert.Contains(t, err.Error(), "0x1234...cdef")
	assert.Zero(t, cache.Len(), "failures are not cached")

	src.err = nil
	_, err = cache.StatsFor(context.Background(), "0x1234567890abcdef")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls["0x1234567890abcdef"])
}

func TestActorCacheEvictsOne(t *testing.T) {
	src := newFakeSource()
	cache := NewActorCache(src, WithMaxEntries(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := cache.StatsFor(ctx, fmt.Sprintf("w%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, cache.Len())

	_, err := cache.StatsFor(ctx, "w3")
	require.NoError(t, err)
	assert.Equal(t, 3, cache.Len(), "exactly one entry evicted")

	_, err = cache.StatsFor(ctx, "w3")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls["w3"], "new entry is kept")
}
