package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyinsider/tracker/internal/detector"
	"github.com/polyinsider/tracker/internal/engine"
	"github.com/polyinsider/tracker/internal/store"
)

func report(poll uint64, trades []store.Trade, events ...store.Event) engine.CycleReport {
	return engine.CycleReport{
		Summary: engine.Summary{
			Poll:    poll,
			Fetched: len(trades),
			New:     len(trades),
			Stages: detector.StageCounts{
				Input: len(trades),
				Stages: []detector.StageCount{
					{Name: detector.StageExcludedCategory, Survivors: 3},
					{Name: detector.StageMinSize, Survivors: 1},
				},
			},
			Suspects: 1,
		},
		At:        time.Unix(1700000000, 0),
		NewTrades: trades,
		Events:    events,
		Volumes: []detector.VolumeView{
			{MarketID: "a", Ratio: 1},
			{MarketID: "b", Ratio: 4},
			{MarketID: "c", Ratio: 4, CurrentVolume: 10},
		},
		DedupSize: 42,
		CacheSize: 7,
	}
}

func tradesN(prefix string, n int) []store.Trade {
	out := make([]store.Trade, n)
	for i := range out {
		out[i] = store.Trade{ProxyWallet: fmt.Sprintf("%s%d", prefix, i)}
	}
	return out
}

func TestTrackerObserveCycle(t *testing.T) {
	m := NewMetricsTracker()
	suspect := store.Suspect{Severity: store.SeverityMedium}
	m.ObserveCycle(report(1, tradesN("w", 5), suspect, store.ClusterAlert{MarketID: "m"}))

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.PollsTotal)
	assert.Equal(t, int64(5), snap.TradesNew)
	assert.Equal(t, int64(1), snap.AlertsByKind[store.KindSuspect])
	assert.Equal(t, int64(1), snap.AlertsByKind[store.KindCluster])
	assert.Equal(t, int64(1), snap.SuspectsBySev["MEDIUM"])
	assert.Equal(t, APIStatusOK, snap.APIStatus)
	assert.Equal(t, 42, snap.DedupSize)
	assert.Equal(t, 7, snap.ActorCacheSize)
	assert.Greater(t, snap.TradeRate, 0.0)

	require.Len(t, snap.Volumes, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{snap.Volumes[0].MarketID, snap.Volumes[1].MarketID, snap.Volumes[2].MarketID})

	require.Len(t, snap.RecentTrades, 5)
	assert.Equal(t, "w4", snap.RecentTrades[0].ProxyWallet, "newest first")
}

func TestTrackerRecentTradesBounded(t *testing.T) {
	m := NewMetricsTracker()
	m.ObserveCycle(report(1, tradesN("old", RecentTradesCap)))
	m.ObserveCycle(report(2, tradesN("new", 10)))

	snap := m.Snapshot()
	require.Len(t, snap.RecentTrades, RecentTradesCap)
	assert.Equal(t, "new9", snap.RecentTrades[0].ProxyWallet)
	assert.Equal(t, "old199", snap.RecentTrades[10].ProxyWallet)
}

func TestTrackerPollError(t *testing.T) {
	m := NewMetricsTracker()
	m.ObserveCycle(engine.CycleReport{Summary: engine.Summary{Poll: 3, Err: errors.New("fetch trades: boom")}})

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.PollErrors)
	assert.Equal(t, "fetch trades: boom", snap.LastError)
	assert.Equal(t, APIStatusError, snap.APIStatus)
}

func TestTrackerHooks(t *testing.T) {
	m := NewMetricsTracker()
	m.RecordRateLimit("fetch_recent_trades", time.Second)
	m.RecordDelivery("discord", store.KindSuspect, errors.New("down"))
	m.RecordDelivery("discord", store.KindSuspect, nil)

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.RateLimits)
	assert.Equal(t, APIStatusRateLimited, snap.APIStatus)
	assert.Equal(t, int64(1), snap.SinkFailures["discord"])
}

func TestExporterObserveCycle(t *testing.T) {
	e := NewExporter()
	e.ObserveCycle(report(1, tradesN("w", 5), store.Suspect{Severity: store.SeverityHigh}))

	assert.Equal(t, 1.0, testutil.ToFloat64(e.PollsTotal))
	assert.Equal(t, 5.0, testutil.ToFloat64(e.TradesNew))
	assert.Equal(t, 3.0, testutil.ToFloat64(e.StageSurvivors.WithLabelValues(detector.StageExcludedCategory)))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.SuspectsTotal.WithLabelValues("HIGH")))
	assert.Equal(t, 42.0, testutil.ToFloat64(e.DedupEntries))
	assert.Equal(t, 3.0, testutil.ToFloat64(e.TrackedMarkets))
}

func TestExporterHooks(t *testing.T) {
	e := NewExporter()
	e.RecordRateLimit("activity(0x1234...cdef)", time.Second)
	e.RecordRateLimit("activity(0xaaaa...bbbb)", time.Second)
	e.RecordDelivery("telegram", store.KindSpike, nil)
	e.RecordDelivery("telegram", store.KindSpike, errors.New("x"))

	assert.Equal(t, 2.0, testutil.ToFloat64(e.RateLimited.WithLabelValues("activity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Deliveries.WithLabelValues("telegram", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Deliveries.WithLabelValues("telegram", "error")))
}

func TestExporterHandler(t *testing.T) {
	e := NewExporter()
	e.PollsTotal.Inc()

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "polyinsider_engine_polls_total 1")
}
