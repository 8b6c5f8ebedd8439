package engine

import (
	"fmt"
	"time"

	"github.com/polyinsider/tracker/internal/detector"
	"github.com/polyinsider/tracker/internal/store"
)

// Summary is the per-cycle outcome, logged once per poll.
type Summary struct {
	Poll            uint64
	Fetched         int
	New             int
	Stages          detector.StageCounts
	StatsFailures   int
	Suspects        int
	Clusters        int
	Spikes          int
	ExpiredClusters int
	MinTradeSizeUSD float64
	Duration        time.Duration
	Err             error
}

// NonExcluded is the count surviving the category exclusion stage.
func (s Summary) NonExcluded() int {
	return max(s.Stages.Survivors(detector.StageExcludedCategory), 0)
}

// Large is the count surviving the size stage.
func (s Summary) Large() int {
	return max(s.Stages.Survivors(detector.StageMinSize), 0)
}

// Aggressive is the count surviving the aggression stage.
func (s Summary) Aggressive() int {
	return max(s.Stages.Survivors(detector.StageAggressive), 0)
}

// Contrarian is the count surviving the final odds stage.
func (s Summary) Contrarian() int {
	return max(s.Stages.Survivors(detector.StageContrarian), 0)
}

func (s Summary) String() string {
	return fmt.Sprintf("[POLL #%d] New: %d | Non-gambling: %d | Large($%.0fk+): %d | Contrarian: %d | INSIDERS: %d | CLUSTERS: %d | SPIKES: %d",
		s.Poll, s.New, s.NonExcluded(), s.MinTradeSizeUSD/1000, s.Large(), s.Contrarian(),
		s.Suspects, s.Clusters, s.Spikes)
}

// CycleReport is an immutable view of one finished cycle, handed to observers
// such as the metrics tracker and the dashboard.
type CycleReport struct {
	Summary      Summary
	At           time.Time
	NewTrades    []store.Trade
	Events       []store.Event
	Clusters     []detector.ClusterView
	Volumes      []detector.VolumeView
	DedupSize    int
	CacheSize    int
	AlertedSpots int
}

// Observer receives a report after every cycle. It must not block.
type Observer interface {
	ObserveCycle(report CycleReport)
}

// Observers fans a report out to several observers.
type Observers []Observer

func (o Observers) ObserveCycle(report CycleReport) {
	for _, obs := range o {
		obs.ObserveCycle(report)
	}
}

// Notifier delivers events asynchronously. Dispatch must not block.
type Notifier interface {
	Dispatch(ev store.Event)
}
