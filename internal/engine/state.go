// Package engine runs the serialized poll cycle that drives every detector.
package engine

import (
	"context"
	"time"

	"github.com/polyinsider/tracker/internal/detector"
	"github.com/polyinsider/tracker/internal/store"
)

// Config holds the knobs the poll cycle needs.
type Config struct {
	TradeLimit       int
	PollInterval     time.Duration
	Filter           detector.FilterConfig
	MaxUniqueMarkets int
	Cluster          detector.ClusterConfig
	SpikeMultiplier  float64
}

// TradeSource fetches the most recent trade batch.
type TradeSource interface {
	FetchRecentTrades(ctx context.Context, limit int) ([]store.Trade, error)
}

// StatsCache resolves wallet stats, refreshing through the network on a miss.
type StatsCache interface {
	StatsFor(ctx context.Context, actor string) (store.ActorStats, error)
	Len() int
}

// State is all mutable detection state. It is created once at startup and
// only touched by Engine.Poll; a restart starts from empty.
type State struct {
	Dedup     *detector.Deduplicator
	Actors    StatsCache
	Clusters  *detector.ClusterTracker
	Spikes    *detector.SpikeTracker
	PollCount uint64
}

// NewState builds empty detection state around an actor stats cache.
func NewState(cfg Config, actors StatsCache) *State {
	return &State{
		Dedup:    detector.NewDeduplicator(detector.DefaultDedupCap),
		Actors:   actors,
		Clusters: detector.NewClusterTracker(cfg.Cluster),
		Spikes:   detector.NewSpikeTracker(cfg.SpikeMultiplier),
	}
}

// ResetAlerts clears both one-shot alert sets.
func (s *State) ResetAlerts() {
	s.Clusters.ResetAlerted()
	s.Spikes.ResetAlerted()
}
