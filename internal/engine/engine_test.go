package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyinsider/tracker/internal/detector"
	"github.com/polyinsider/tracker/internal/enrich"
	"github.com/polyinsider/tracker/internal/store"
)

type fakeFeed struct {
	batches [][]store.Trade
	err     error
	calls   int
}

func (f *fakeFeed) FetchRecentTrades(_ context.Context, limit int) ([]store.Trade, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

type fakeActivity struct {
	markets map[string]int
	err     error
}

func (f *fakeActivity) FetchActivity(_ context.Context, user string) ([]store.Activity, error) {
	if f.err != nil {
		return nil, f.err
	}
	n := f.markets[user]
	out := make([]store.Activity, 0, n)
	for i := 0; i < n; i++ {
		side, market := "BUY", fmt.Sprintf("m%d", i)
		out = append(out, store.Activity{Side: &side, ConditionID: &market})
	}
	return out, nil
}

type captureNotifier struct {
	mu     sync.Mutex
	events []store.Event
}

func (c *captureNotifier) Dispatch(ev store.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureNotifier) kinds() []store.EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]store.EventKind, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Kind())
	}
	return out
}

type captureObserver struct {
	reports []CycleReport
}

func (c *captureObserver) ObserveCycle(r CycleReport) {
	c.reports = append(c.reports, r)
}

type countingObserver struct {
	cycles atomic.Int64
}

func (c *countingObserver) ObserveCycle(CycleReport) {
	c.cycles.Add(1)
}

func testConfig() Config {
	return Config{
		TradeLimit:   100,
		PollInterval: 10 * time.Millisecond,
		Filter: detector.FilterConfig{
			Excluded:          detector.KeywordFilter([]string{"bitcoin", "up or down"}),
			MinTradeSizeUSD:   5000,
			MaxPriceThreshold: 0.35,
		},
		MaxUniqueMarkets: 5,
		Cluster: detector.ClusterConfig{
			Window:      time.Hour,
			MinWallets:  3,
			MinTradeUSD: 1000,
		},
		SpikeMultiplier: 3,
	}
}

var start = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(feed TradeSource, activity *fakeActivity, opts ...Option) (*Engine, *captureNotifier) {
	cfg := testConfig()
	state := NewState(cfg, enrich.NewActorCache(activity))
	notifier := &captureNotifier{}
	opts = append([]Option{WithClock(func() time.Time { return start })}, opts...)
	return New(cfg, feed, state, notifier, opts...), notifier
}

func trade(wallet, market, title, side string, size, price float64, ts int64) store.Trade {
	return store.Trade{
		ProxyWallet: wallet,
		Side:        side,
		ConditionID: market,
		Title:       title,
		Size:        size,
		Price:       price,
		Timestamp:   ts,
	}
}

func TestPollEmptyBatch(t *testing.T) {
	e, notifier := newTestEngine(&fakeFeed{}, &fakeActivity{})

	sum, err := e.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sum.Poll)
	assert.Zero(t, sum.New)
	assert.Zero(t, sum.NonExcluded())
	assert.Zero(t, sum.Large())
	assert.Zero(t, sum.Contrarian())
	assert.Zero(t, sum.Suspects)
	assert.Empty(t, notifier.kinds())
	assert.Equal(t, "[POLL #1] New: 0 | Non-gambling: 0 | Large($5k+): 0 | Contrarian: 0 | INSIDERS: 0 | CLUSTERS: 0 | SPIKES: 0", sum.String())
}

func TestPollFlagsFreshWallet(t *testing.T) {
	feed := &fakeFeed{batches: [][]store.Trade{{
		trade("0xfresh", "0xm1", "Will the Fed cut rates?", "BUY", 40000, 0.25, 1),
		trade("0xveteran", "0xm1", "Will the Fed cut rates?", "BUY", 40000, 0.25, 2),
		trade("0xgambler", "0xm2", "Bitcoin Up or Down", "BUY", 40000, 0.25, 3),
		trade("0xsmall", "0xm1", "Will the Fed cut rates?", "BUY", 100, 0.25, 4),
		trade("0xseller", "0xm1", "Will the Fed cut rates?", "SELL", 40000, 0.25, 5),
		trade("0xfav", "0xm3", "Will the Fed hike rates?", "BUY", 40000, 0.9, 6),
	}}}
	activity := &fakeActivity{markets: map[string]int{"0xfresh": 1, "0xveteran": 50}}
	obs := &captureObserver{}
	e, notifier := newTestEngine(feed, activity, WithObserver(obs))

	sum, err := e.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, sum.New)
	assert.Equal(t, 5, sum.NonExcluded())
	assert.Equal(t, 4, sum.Large())
	assert.Equal(t, 3, sum.Aggressive())
	assert.Equal(t, 2, sum.Contrarian())
	assert.Equal(t, 1, sum.Suspects)

	require.Len(t, notifier.events, 1)
	suspect, ok := notifier.events[0].(store.Suspect)
	require.True(t, ok)
	assert.Equal(t, "0xfresh", suspect.Trade.ProxyWallet)
	assert.Equal(t, store.SeverityHigh, suspect.Severity)

	require.Len(t, obs.reports, 1)
	assert.Len(t, obs.reports[0].NewTrades, 6)
	assert.Equal(t, 6, obs.reports[0].DedupSize)
	assert.Equal(t, 2, obs.reports[0].CacheSize)
}

func TestPollDeduplicatesAcrossCycles(t *testing.T) {
	batch := []store.Trade{trade("0xa", "0xm1", "Election", "BUY", 10, 0.5, 1)}
	feed := &fakeFeed{batches: [][]store.Trade{batch, batch}}
	e, _ := newTestEngine(feed, &fakeActivity{})

	first, err := e.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.New)

	second, err := e.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.New)
	assert.Equal(t, 1, second.Fetched)
}

func TestPollClusterAlertsOnce(t *testing.T) {
	var batch []store.Trade
	for i := 0; i < 4; i++ {
		batch = append(batch, trade(fmt.Sprintf("0xw%d", i), "0xm1", "Election", "BUY", 2000, 0.5, int64(i)))
	}
	feed := &fakeFeed{batches: [][]store.Trade{batch}}
	e, notifier := newTestEngine(feed, &fakeActivity{})

	sum, err := e.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Clusters)
	assert.Equal(t, []store.EventKind{store.KindCluster}, notifier.kinds())

	alert := notifier.events[0].(store.ClusterAlert)
	assert.Equal(t, 3, alert.WalletCount, "alert fires when the third wallet joins")
}

func TestPollStatsFailureSkipsTrade(t *testing.T) {
	feed := &fakeFeed{batches: [][]store.Trade{{
		trade("0xfresh", "0xm1", "Election", "BUY", 40000, 0.25, 1),
	}}}
	e, notifier := newTestEngine(feed, &fakeActivity{err: errors.New("timeout")})

	sum, err := e.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.StatsFailures)
	assert.Zero(t, sum.Suspects)
	assert.Empty(t, notifier.kinds())
}

func TestPollFetchFailure(t *testing.T) {
	feed := &fakeFeed{err: errors.New("connection reset")}
	obs := &captureObserver{}
	e, _ := newTestEngine(feed, &fakeActivity{}, WithObserver(obs))

	sum, err := e.Poll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, feed.err)
	assert.Equal(t, uint64(1), sum.Poll)
	require.Len(t, obs.reports, 1, "failed cycles are still reported")
	assert.Error(t, obs.reports[0].Summary.Err)
}

func TestResetAlertsAppliedBeforeNextCycle(t *testing.T) {
	e, _ := newTestEngine(&fakeFeed{}, &fakeActivity{})
	for i := 0; i < 3; i++ {
		e.State().Clusters.Record(trade(fmt.Sprintf("0xw%d", i), "0xm1", "Election", "BUY", 2000, 0.5, 1), start)
	}
	require.Equal(t, 1, e.State().Clusters.AlertedCount())

	e.ResetAlerts()
	e.ResetAlerts()
	e.applyResets()
	assert.Zero(t, e.State().Clusters.AlertedCount())
}

func TestRunStopsOnCancel(t *testing.T) {
	obs := &countingObserver{}
	e, _ := newTestEngine(&fakeFeed{}, &fakeActivity{}, WithObserver(obs))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool { return obs.cycles.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
