package store

import (
	"fmt"
	"time"
)

// EventKind identifies the shape of an Event.
type EventKind string

const (
	KindSuspect EventKind = "suspect"
	KindCluster EventKind = "cluster"
	KindSpike   EventKind = "spike"
)

// Event is an immutable alert handed to notification sinks.
type Event interface {
	Kind() EventKind
	Headline() string
	MarketKey() string
}

// Suspect is a filtered trade from a fresh wallet.
type Suspect struct {
	Trade    Trade
	Stats    ActorStats
	Reason   string
	Severity Severity
}

func (s Suspect) Kind() EventKind { return KindSuspect }

func (s Suspect) Headline() string {
	return fmt.Sprintf("Insider Alert [%s] %s $%.0f on %s",
		s.Severity, MaskAddress(s.Stats.Address), s.Trade.ValueUSD(), s.Trade.DisplayTitle())
}

func (s Suspect) MarketKey() string { return s.Trade.ConditionID }

// ClusterAlert fires once when enough distinct wallets pile into one market.
type ClusterAlert struct {
	MarketID    string
	Title       string
	MarketURL   string
	WalletCount int
	Wallets     []string
	TotalVolume float64
	AvgPrice    float64
	WindowAge   time.Duration
	LastTrade   Trade
	DetectedAt  time.Time
}

func (c ClusterAlert) Kind() EventKind { return KindCluster }

func (c ClusterAlert) Headline() string {
	return fmt.Sprintf("Cluster Alert: %d wallets, $%.0f on %s", c.WalletCount, c.TotalVolume, c.Title)
}

func (c ClusterAlert) MarketKey() string { return c.MarketID }

// SpikeAlert fires once when a market's current-hour volume jumps above its
// trailing hourly average.
type SpikeAlert struct {
	MarketID       string
	Title          string
	MarketURL      string
	CurrentVolume  float64
	AvgHourly      float64
	Ratio          float64
	Multiplier     float64
	CompletedHours int
	LastTrade      Trade
	DetectedAt     time.Time
}

func (s SpikeAlert) Kind() EventKind { return KindSpike }

func (s SpikeAlert) Headline() string {
	return fmt.Sprintf("Volume Spike: %.1fx ($%.0f vs $%.0f/h) on %s", s.Ratio, s.CurrentVolume, s.AvgHourly, s.Title)
}

func (s SpikeAlert) MarketKey() string { return s.MarketID }
