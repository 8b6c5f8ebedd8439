// Package metrics provides real-time metrics tracking for the system.
package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/polyinsider/tracker/internal/detector"
	"github.com/polyinsider/tracker/internal/engine"
	"github.com/polyinsider/tracker/internal/store"
)

const (
	// RecentTradesCap bounds the recent-trade ring shown on the dashboard.
	RecentTradesCap = 200
	// rateWindow is the span used for the new-trade rate.
	rateWindow = 60 * time.Second
)

// API status values.
const (
	APIStatusStarting    = "starting"
	APIStatusOK          = "ok"
	APIStatusRateLimited = "rate_limited"
	APIStatusError       = "error"
)

type ratePoint struct {
	at    time.Time
	count int
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	PollsTotal      uint64
	PollErrors      int64
	TradesFetched   int64
	TradesNew       int64
	StatsFailures   int64
	AlertsByKind    map[store.EventKind]int64
	SuspectsBySev   map[string]int64
	RateLimits      int64
	SinkFailures    map[string]int64
	TradeRate       float64 // new trades per second
	LastSummary     engine.Summary
	LastPoll        time.Time
	LastError       string
	LastErrorAt     time.Time
	APIStatus       string
	RecentTrades    []store.Trade // newest first
	Clusters        []detector.ClusterView
	Volumes         []detector.VolumeView // highest spike ratio first
	DedupSize       int
	ActorCacheSize  int
	AlertedMarkets  int
	Uptime          time.Duration
	EventBufferUsed int
	EventBufferCap  int
}

// MetricsTracker provides thread-safe metrics tracking. It observes every poll
// cycle and is read concurrently by the dashboard.
type MetricsTracker struct {
	mu             sync.RWMutex
	startTime      time.Time
	pollsTotal     uint64
	pollErrors     int64
	tradesFetched  int64
	tradesNew      int64
	statsFailures  int64
	alertsByKind   map[store.EventKind]int64
	suspectsBySev  map[string]int64
	rateLimits     int64
	sinkFailures   map[string]int64
	ratePoints     []ratePoint
	lastSummary    engine.Summary
	lastPoll       time.Time
	lastError      string
	lastErrorAt    time.Time
	apiStatus      string
	recentTrades   []store.Trade
	clusters       []detector.ClusterView
	volumes        []detector.VolumeView
	dedupSize      int
	actorCacheSize int
	alertedMarkets int
	bufferUsed     int
	bufferCap      int
}

// NewMetricsTracker creates a new MetricsTracker.
func NewMetricsTracker() *MetricsTracker {
	return &MetricsTracker{
		startTime:     time.Now(),
		alertsByKind:  make(map[store.EventKind]int64),
		suspectsBySev: make(map[string]int64),
		sinkFailures:  make(map[string]int64),
		recentTrades:  make([]store.Trade, 0, RecentTradesCap),
		apiStatus:     APIStatusStarting,
	}
}

// ObserveCycle folds one finished poll cycle into the tracker.
func (m *MetricsTracker) ObserveCycle(r engine.CycleReport) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum := r.Summary
	m.pollsTotal = sum.Poll
	m.lastSummary = sum
	m.lastPoll = time.Now()

	if sum.Err != nil {
		m.pollErrors++
		m.lastError = sum.Err.Error()
		m.lastErrorAt = m.lastPoll
		m.apiStatus = APIStatusError
		return
	}
	m.apiStatus = APIStatusOK

	m.tradesFetched += int64(sum.Fetched)
	m.tradesNew += int64(sum.New)
	m.statsFailures += int64(sum.StatsFailures)

	for _, ev := range r.Events {
		m.alertsByKind[ev.Kind()]++
		if s, ok := ev.(store.Suspect); ok {
			m.suspectsBySev[s.Severity.String()]++
		}
	}

	m.pushTrades(r.NewTrades)
	m.recordRate(m.lastPoll, sum.New)

	m.clusters = r.Clusters
	m.volumes = rankVolumes(r.Volumes)
	m.dedupSize = r.DedupSize
	m.actorCacheSize = r.CacheSize
	m.alertedMarkets = r.AlertedSpots
}

// pushTrades prepends the batch so the ring stays newest first.
// Must be called with lock held.
func (m *MetricsTracker) pushTrades(batch []store.Trade) {
	if len(batch) == 0 {
		return
	}
	merged := make([]store.Trade, 0, min(len(batch)+len(m.recentTrades), RecentTradesCap))
	for i := len(batch) - 1; i >= 0 && len(merged) < RecentTradesCap; i-- {
		merged = append(merged, batch[i])
	}
	for _, t := range m.recentTrades {
		if len(merged) == RecentTradesCap {
			break
		}
		merged = append(merged, t)
	}
	m.recentTrades = merged
}

// recordRate keeps the last minute of per-cycle counts.
// Must be called with lock held.
func (m *MetricsTracker) recordRate(now time.Time, count int) {
	m.ratePoints = append(m.ratePoints, ratePoint{at: now, count: count})

	cutoff := now.Add(-rateWindow)
	validIdx := 0
	for validIdx < len(m.ratePoints) && !m.ratePoints[validIdx].at.After(cutoff) {
		validIdx++
	}
	if validIdx > 0 {
		m.ratePoints = m.ratePoints[validIdx:]
	}
}

// RecordRateLimit is the ingest client's rate-limit hook.
func (m *MetricsTracker) RecordRateLimit(label string, wait time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimits++
	m.apiStatus = APIStatusRateLimited
}

// RecordDelivery is the dispatcher's delivery hook.
func (m *MetricsTracker) RecordDelivery(sink string, kind store.EventKind, err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinkFailures[sink]++
}

// SetEventBuffer sets the dashboard event channel usage.
func (m *MetricsTracker) SetEventBuffer(used, capacity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bufferUsed = used
	m.bufferCap = capacity
}

// Snapshot returns a point-in-time snapshot of metrics.
func (m *MetricsTracker) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// new trades per second over the last minute
	tradeRate := 0.0
	if len(m.ratePoints) > 0 {
		total := 0
		for _, p := range m.ratePoints {
			total += p.count
		}
		duration := time.Since(m.ratePoints[0].at).Seconds()
		if duration < 1 {
			duration = 1
		}
		tradeRate = float64(total) / duration
	}

	alerts := make(map[store.EventKind]int64, len(m.alertsByKind))
	for k, v := range m.alertsByKind {
		alerts[k] = v
	}
	sev := make(map[string]int64, len(m.suspectsBySev))
	for k, v := range m.suspectsBySev {
		sev[k] = v
	}
	sinks := make(map[string]int64, len(m.sinkFailures))
	for k, v := range m.sinkFailures {
		sinks[k] = v
	}

	return MetricsSnapshot{
		PollsTotal:      m.pollsTotal,
		PollErrors:      m.pollErrors,
		TradesFetched:   m.tradesFetched,
		TradesNew:       m.tradesNew,
		StatsFailures:   m.statsFailures,
		AlertsByKind:    alerts,
		SuspectsBySev:   sev,
		RateLimits:      m.rateLimits,
		SinkFailures:    sinks,
		TradeRate:       tradeRate,
		LastSummary:     m.lastSummary,
		LastPoll:        m.lastPoll,
		LastError:       m.lastError,
		LastErrorAt:     m.lastErrorAt,
		APIStatus:       m.apiStatus,
		RecentTrades:    append([]store.Trade(nil), m.recentTrades...),
		Clusters:        append([]detector.ClusterView(nil), m.clusters...),
		Volumes:         append([]detector.VolumeView(nil), m.volumes...),
		DedupSize:       m.dedupSize,
		ActorCacheSize:  m.actorCacheSize,
		AlertedMarkets:  m.alertedMarkets,
		Uptime:          time.Since(m.startTime),
		EventBufferUsed: m.bufferUsed,
		EventBufferCap:  m.bufferCap,
	}
}

// rankVolumes orders markets by spike ratio, then current volume.
func rankVolumes(views []detector.VolumeView) []detector.VolumeView {
	out := append([]detector.VolumeView(nil), views...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Ratio != out[j].Ratio {
			return out[i].Ratio > out[j].Ratio
		}
		if out[i].CurrentVolume != out[j].CurrentVolume {
			return out[i].CurrentVolume > out[j].CurrentVolume
		}
		return strings.Compare(out[i].MarketID, out[j].MarketID) < 0
	})
	return out
}
