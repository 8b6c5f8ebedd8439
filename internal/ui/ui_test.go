package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyinsider/tracker/internal/detector"
	"github.com/polyinsider/tracker/internal/engine"
	"github.com/polyinsider/tracker/internal/metrics"
	"github.com/polyinsider/tracker/internal/store"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Will th...", truncate("Will the Fed cut?", 10))
	assert.Equal(t, "ééé...", truncate("éééééééé", 6), "cuts on runes")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "12m", formatDuration(12*time.Minute))
	assert.Equal(t, "2h 5m", formatDuration(2*time.Hour+5*time.Minute))
}

func TestFormatTimeAgo(t *testing.T) {
	assert.Equal(t, "never", formatTimeAgo(time.Time{}))
	assert.Equal(t, "5m ago", formatTimeAgo(time.Now().Add(-5*time.Minute)))
}

func TestFormatEvent(t *testing.T) {
	at := time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)

	main, secondary := formatEvent(store.Suspect{
		Trade:    store.Trade{Title: "Who wins [A]?", Size: 20000, Price: 0.25},
		Stats:    store.ActorStats{Address: "0x1234567890abcdef"},
		Reason:   "Fresh Wallet",
		Severity: store.SeverityHigh,
	}, at)
	assert.Contains(t, main, "09:30:00")
	assert.Contains(t, main, "[red]INSIDER HIGH[-]")
	assert.Contains(t, main, "Who wins [A[]?", "titles are escaped")
	assert.Contains(t, secondary, "0x1234...cdef")
	assert.Contains(t, secondary, "$5000 @ 25.0%")

	main, secondary = formatEvent(store.ClusterAlert{Title: "Fed", WalletCount: 4, TotalVolume: 9000, WindowAge: 90 * time.Second}, at)
	assert.Contains(t, main, "CLUSTER")
	assert.Contains(t, secondary, "4 wallets | $9000")

	main, _ = formatEvent(store.SpikeAlert{Title: "Fed", Ratio: 3.5}, at)
	assert.Contains(t, main, "SPIKE 3.5x")
}

func TestSignalAlerterBounded(t *testing.T) {
	v := NewSignalAlerterView()
	for i := 0; i < maxAlertItems+5; i++ {
		v.AddEvent(store.SpikeAlert{Title: "m"})
	}
	assert.Equal(t, maxAlertItems, v.Len())
}

func TestSortClusters(t *testing.T) {
	sorted := sortClusters([]detector.ClusterView{
		{MarketID: "a", WalletCount: 2, Volume: 100},
		{MarketID: "b", WalletCount: 3, Volume: 50},
		{MarketID: "c", WalletCount: 2, Volume: 900},
	})
	require.Len(t, sorted, 3)
	assert.Equal(t, "b", sorted[0].MarketID)
	assert.Equal(t, "c", sorted[1].MarketID)
	assert.Equal(t, "a", sorted[2].MarketID)
}

func TestRenderStats(t *testing.T) {
	snap := metrics.MetricsSnapshot{
		APIStatus:     metrics.APIStatusError,
		LastError:     "fetch trades: boom",
		LastErrorAt:   time.Now(),
		LastSummary:   engine.Summary{Poll: 7, MinTradeSizeUSD: 5000, Err: errors.New("boom")},
		PollsTotal:    7,
		PollErrors:    1,
		AlertsByKind:  map[store.EventKind]int64{store.KindSuspect: 2, store.KindCluster: 1},
		SuspectsBySev: map[string]int64{"HIGH": 2},
	}
	text := renderStats(snap)
	assert.Contains(t, text, "[red]error[-]")
	assert.Contains(t, text, "POLL #7[]", "summary line is escaped")
	assert.Contains(t, text, "Insiders: 2 (H 2 / M 0 / L 0)")
	assert.Contains(t, text, "Polls: 7 (1 failed)")
}

func TestViewsUpdateWithoutScreen(t *testing.T) {
	snap := metrics.MetricsSnapshot{
		RecentTrades: []store.Trade{{ProxyWallet: "0xabc", Side: "BUY", Size: 10, Price: 0.5, Title: "Fed"}},
		Clusters:     []detector.ClusterView{{MarketID: "m", Title: "Fed", WalletCount: 3, Alerted: true}},
		Volumes:      []detector.VolumeView{{MarketID: "m", Title: "Fed", Ratio: 4, CompletedHours: 2, Alerted: true}},
	}

	live := NewLiveTradesView()
	live.Update(snap)
	assert.Equal(t, 2, live.table.GetRowCount())

	clusters := NewMarketOverviewView()
	clusters.Update(snap)
	assert.Equal(t, "Fed", clusters.table.GetCell(1, 0).Text)

	movers := NewTopMoversView()
	movers.Update(snap)
	assert.Equal(t, "4.0x", movers.table.GetCell(1, 1).Text)

	movers.Update(metrics.MetricsSnapshot{})
	assert.Equal(t, "No data yet...", movers.table.GetCell(1, 0).Text)
}
