package detector

import (
	"sort"
	"time"

	"github.com/polyinsider/tracker/internal/store"
)

// MarketCluster accumulates wallets and volume on one market within a window.
type MarketCluster struct {
	MarketID  string
	CreatedAt time.Time
	Wallets   map[string]struct{}
	Volume    float64
	// AvgPrice is a recency-weighted running value: (prev + new) / 2.
	AvgPrice  float64
	LastTrade store.Trade
}

// WalletCount returns the number of distinct wallets in the cluster.
func (c *MarketCluster) WalletCount() int {
	return len(c.Wallets)
}

// ClusterConfig holds cluster detection thresholds.
type ClusterConfig struct {
	Window      time.Duration
	MinWallets  int
	MinTradeUSD float64
}

// ClusterView is a read-only copy of a cluster for dashboards.
type ClusterView struct {
	MarketID    string
	Title       string
	WalletCount int
	Volume      float64
	AvgPrice    float64
	Age         time.Duration
	Alerted     bool
}

// ClusterTracker detects bursts of distinct wallets buying into the same market.
type ClusterTracker struct {
	cfg      ClusterConfig
	clusters map[string]*MarketCluster
	alerted  *AlertedSet
}

// NewClusterTracker creates a new ClusterTracker.
func NewClusterTracker(cfg ClusterConfig) *ClusterTracker {
	return &ClusterTracker{
		cfg:      cfg,
		clusters: make(map[string]*MarketCluster),
		alerted:  NewAlertedSet(),
	}
}

// Qualifies reports whether a trade counts toward a cluster.
func (t *ClusterTracker) Qualifies(trade store.Trade) bool {
	_, ok := trade.MarketID()
	return ok && trade.IsAggressiveBuy() && trade.ValueUSD() >= t.cfg.MinTradeUSD
}

// Record adds a qualifying trade and returns an alert the first time the
// market reaches MinWallets distinct wallets.
func (t *ClusterTracker) Record(trade store.Trade, now time.Time) (store.ClusterAlert, bool) {
	if !t.Qualifies(trade) {
		return store.ClusterAlert{}, false
	}

	marketID := trade.ConditionID
	value := trade.ValueUSD()

	cluster, exists := t.clusters[marketID]
	if !exists {
		cluster = &MarketCluster{
			MarketID:  marketID,
			CreatedAt: now,
			Wallets:   map[string]struct{}{trade.ProxyWallet: {}},
			Volume:    value,
			AvgPrice:  trade.Price,
			LastTrade: trade,
		}
		t.clusters[marketID] = cluster
	} else {
		cluster.Wallets[trade.ProxyWallet] = struct{}{}
		cluster.Volume += value
		cluster.AvgPrice = (cluster.AvgPrice + trade.Price) / 2
		cluster.LastTrade = trade
	}

	if cluster.WalletCount() < t.cfg.MinWallets {
		return store.ClusterAlert{}, false
	}
	if !t.alerted.TryMark(marketID) {
		return store.ClusterAlert{}, false
	}

	return store.ClusterAlert{
		MarketID:    marketID,
		Title:       trade.DisplayTitle(),
		MarketURL:   trade.MarketURL(),
		WalletCount: cluster.WalletCount(),
		Wallets:     sortedKeys(cluster.Wallets),
		TotalVolume: cluster.Volume,
		AvgPrice:    cluster.AvgPrice,
		WindowAge:   now.Sub(cluster.CreatedAt),
		LastTrade:   trade,
		DetectedAt:  now,
	}, true
}

// Expire drops clusters older than the window and returns how many were
// removed. Alerted markets stay alerted.
func (t *ClusterTracker) Expire(now time.Time) int {
	removed := 0
	for id, cluster := range t.clusters {
		if now.Sub(cluster.CreatedAt) > t.cfg.Window {
			delete(t.clusters, id)
			removed++
		}
	}
	return removed
}

// Cluster returns the active cluster for a market.
func (t *ClusterTracker) Cluster(marketID string) (*MarketCluster, bool) {
	c, ok := t.clusters[marketID]
	return c, ok
}

// Len returns the number of active clusters.
func (t *ClusterTracker) Len() int {
	return len(t.clusters)
}

// AlertedCount returns the number of markets that already fired.
func (t *ClusterTracker) AlertedCount() int {
	return t.alerted.Len()
}

// ResetAlerted forgets which markets fired.
func (t *ClusterTracker) ResetAlerted() {
	t.alerted.Reset()
}

// Snapshot copies the active clusters, largest first.
func (t *ClusterTracker) Snapshot(now time.Time) []ClusterView {
	views := make([]ClusterView, 0, len(t.clusters))
	for id, c := range t.clusters {
		views = append(views, ClusterView{
			MarketID:    id,
			Title:       c.LastTrade.DisplayTitle(),
			WalletCount: c.WalletCount(),
			Volume:      c.Volume,
			AvgPrice:    c.AvgPrice,
			Age:         now.Sub(c.CreatedAt),
			Alerted:     t.alerted.Has(id),
		})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].WalletCount != views[j].WalletCount {
			return views[i].WalletCount > views[j].WalletCount
		}
		return views[i].Volume > views[j].Volume
	})
	return views
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
