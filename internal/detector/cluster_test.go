package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyinsider/tracker/internal/store"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clusterTrade(wallet string, price float64) store.Trade {
	return store.Trade{
		ProxyWallet: wallet,
		Side:        "BUY",
		ConditionID: "0xmarket",
		Title:       "Will the merger close?",
		Size:        10000,
		Price:       price,
	}
}

func TestClusterWalletCountIdempotent(t *testing.T) {
	tracker := NewClusterTracker(ClusterConfig{Window: time.Hour, MinWallets: 10})

	for _, w := range []string{"A", "A", "B", "C"} {
		tracker.Record(clusterTrade(w, 0.2), t0)
	}

	cluster, ok := tracker.Cluster("0xmarket")
	require.True(t, ok)
	assert.Equal(t, 3, cluster.WalletCount())
	assert.InDelta(t, 4*2000.0, cluster.Volume, 1e-9)
}

func TestClusterPriceRecurrence(t *testing.T) {
	tracker := NewClusterTracker(ClusterConfig{Window: time.Hour, MinWallets: 10})

	p0, p1, p2 := 0.1, 0.3, 0.8
	tracker.Record(clusterTrade("A", p0), t0)
	tracker.Record(clusterTrade("B", p1), t0)
	tracker.Record(clusterTrade("C", p2), t0)

	cluster, _ := tracker.Cluster("0xmarket")
	assert.Equal(t, ((p0+p1)/2+p2)/2, cluster.AvgPrice)
	assert.NotEqual(t, (p0+p1+p2)/3, cluster.AvgPrice)
}

func TestClusterOneShotAlert(t *testing.T) {
	tracker := NewClusterTracker(ClusterConfig{Window: time.Hour, MinWallets: 3})

	var alerts []store.ClusterAlert
	for i, w := range []string{"A", "B", "C", "D"} {
		if alert, ok := tracker.Record(clusterTrade(w, 0.2), t0.Add(time.Duration(i)*time.Minute)); ok {
			alerts = append(alerts, alert)
		}
	}

	require.Len(t, alerts, 1)
	alert := alerts[0]
	assert.Equal(t, "0xmarket", alert.MarketID)
	assert.Equal(t, 3, alert.WalletCount)
	assert.Equal(t, []string{"A", "B", "C"}, alert.Wallets)
	assert.Equal(t, 2*time.Minute, alert.WindowAge)
	assert.Equal(t, "Will the merger close?", alert.Title)

	_, ok := tracker.Record(clusterTrade("E", 0.2), t0.Add(5*time.Minute))
	assert.False(t, ok, "second alert suppressed while market stays alerted")

	cluster, _ := tracker.Cluster("0xmarket")
	assert.Equal(t, 5, cluster.WalletCount(), "alerted cluster keeps accumulating")
}

func TestClusterExpiryKeepsAlerted(t *testing.T) {
	tracker := NewClusterTracker(ClusterConfig{Window: 10 * time.Minute, MinWallets: 2})

	tracker.Record(clusterTrade("A", 0.2), t0)
	_, ok := tracker.Record(clusterTrade("B", 0.2), t0.Add(time.Minute))
	require.True(t, ok)

	assert.Zero(t, tracker.Expire(t0.Add(10*time.Minute)), "age equal to the window is kept")
	assert.Equal(t, 1, tracker.Expire(t0.Add(11*time.Minute)))
	assert.Zero(t, tracker.Len())
	assert.Equal(t, 1, tracker.AlertedCount())

	later := t0.Add(20 * time.Minute)
	tracker.Record(clusterTrade("C", 0.2), later)
	_, ok = tracker.Record(clusterTrade("D", 0.2), later)
	assert.False(t, ok, "new cluster on an alerted market does not re-fire")

	tracker.ResetAlerted()
	_, ok = tracker.Record(clusterTrade("E", 0.2), later)
	assert.True(t, ok, "external reset re-arms the market")
}

func TestClusterQualifyingTrades(t *testing.T) {
	tracker := NewClusterTracker(ClusterConfig{Window: time.Hour, MinWallets: 1, MinTradeUSD: 1000})

	sell := clusterTrade("A", 0.2)
	sell.Side = "SELL"
	_, ok := tracker.Record(sell, t0)
	assert.False(t, ok)

	noMarket := clusterTrade("A", 0.2)
	noMarket.ConditionID = ""
	_, ok = tracker.Record(noMarket, t0)
	assert.False(t, ok)

	tiny := clusterTrade("A", 0.2)
	tiny.Size = 10
	_, ok = tracker.Record(tiny, t0)
	assert.False(t, ok)
	assert.Zero(t, tracker.Len())

	_, ok = tracker.Record(clusterTrade("A", 0.2), t0)
	assert.True(t, ok)
}

func TestClusterSnapshot(t *testing.T) {
	tracker := NewClusterTracker(ClusterConfig{Window: time.Hour, MinWallets: 2})

	tracker.Record(clusterTrade("A", 0.2), t0)
	tracker.Record(clusterTrade("B", 0.2), t0)
	other := clusterTrade("C", 0.4)
	other.ConditionID = "0xother"
	tracker.Record(other, t0)

	views := tracker.Snapshot(t0.Add(time.Minute))
	require.Len(t, views, 2)
	assert.Equal(t, "0xmarket", views[0].MarketID)
	assert.True(t, views[0].Alerted)
	assert.Equal(t, time.Minute, views[0].Age)
	assert.False(t, views[1].Alerted)
}
