package detector

import (
	"sort"
	"time"

	"github.com/polyinsider/tracker/internal/store"
)

const (
	// MaxHourlyHistory is how many completed hours a VolumeTracker keeps.
	MaxHourlyHistory = 24
	// MinSpikeBaseline is the average hourly volume below which spikes are ignored.
	MinSpikeBaseline = 100
	// VolumeIdleTTL is how long a market may go without trades before its
	// tracker is dropped.
	VolumeIdleTTL = 25 * time.Hour
)

// VolumeTracker keeps a rolling hourly volume histogram for one market.
type VolumeTracker struct {
	hourly      []float64
	current     float64
	hourStart   time.Time
	lastTradeAt time.Time
}

// NewVolumeTracker starts a tracker whose first hour begins at now.
func NewVolumeTracker(now time.Time) *VolumeTracker {
	return &VolumeTracker{
		hourly:    make([]float64, 0, MaxHourlyHistory),
		hourStart: now,
	}
}

// Add rolls the hour if at least an hour elapsed since it started, then adds
// value to the current hour.
func (v *VolumeTracker) Add(value float64, now time.Time) {
	if now.Sub(v.hourStart) >= time.Hour {
		if len(v.hourly) >= MaxHourlyHistory {
			v.hourly = v.hourly[1:]
		}
		v.hourly = append(v.hourly, v.current)
		v.current = 0
		v.hourStart = now
	}
	v.current += value
	v.lastTradeAt = now
}

// CurrentHourVolume returns the in-progress accumulator.
func (v *VolumeTracker) CurrentHourVolume() float64 {
	return v.current
}

// CompletedHours returns how many completed hours are in the history.
func (v *VolumeTracker) CompletedHours() int {
	return len(v.hourly)
}

// AvgHourlyVolume is the mean of completed hours, 0 if there are none.
func (v *VolumeTracker) AvgHourlyVolume() float64 {
	if len(v.hourly) == 0 {
		return 0
	}
	var sum float64
	for _, h := range v.hourly {
		sum += h
	}
	return sum / float64(len(v.hourly))
}

// IsSpike reports whether the current hour exceeds the average by multiplier.
func (v *VolumeTracker) IsSpike(multiplier float64) bool {
	avg := v.AvgHourlyVolume()
	if avg < MinSpikeBaseline {
		return false
	}
	return v.current > avg*multiplier
}

// SpikeRatio is current hour volume over the average, 0 for a negligible average.
func (v *VolumeTracker) SpikeRatio() float64 {
	avg := v.AvgHourlyVolume()
	if avg < 1 {
		return 0
	}
	return v.current / avg
}

// VolumeView is a read-only copy of a market's volume state.
type VolumeView struct {
	MarketID       string
	Title          string
	CurrentVolume  float64
	AvgHourly      float64
	Ratio          float64
	CompletedHours int
	Alerted        bool
}

// SpikeTracker owns one VolumeTracker per market and fires one-shot spike alerts.
type SpikeTracker struct {
	multiplier float64
	trackers   map[string]*VolumeTracker
	titles     map[string]string
	alerted    *AlertedSet
}

// NewSpikeTracker creates a SpikeTracker alerting at multiplier times the average.
func NewSpikeTracker(multiplier float64) *SpikeTracker {
	return &SpikeTracker{
		multiplier: multiplier,
		trackers:   make(map[string]*VolumeTracker),
		titles:     make(map[string]string),
		alerted:    NewAlertedSet(),
	}
}

// Record adds the trade's value to its market and returns an alert the first
// time that market spikes.
func (s *SpikeTracker) Record(trade store.Trade, now time.Time) (store.SpikeAlert, bool) {
	marketID, ok := trade.MarketID()
	if !ok {
		return store.SpikeAlert{}, false
	}

	tracker, exists := s.trackers[marketID]
	if !exists {
		tracker = NewVolumeTracker(now)
		s.trackers[marketID] = tracker
	}
	tracker.Add(trade.ValueUSD(), now)
	if trade.Title != "" {
		s.titles[marketID] = trade.Title
	}

	if !tracker.IsSpike(s.multiplier) || !s.alerted.TryMark(marketID) {
		return store.SpikeAlert{}, false
	}

	return store.SpikeAlert{
		MarketID:       marketID,
		Title:          trade.DisplayTitle(),
		MarketURL:      trade.MarketURL(),
		CurrentVolume:  tracker.CurrentHourVolume(),
		AvgHourly:      tracker.AvgHourlyVolume(),
		Ratio:          tracker.SpikeRatio(),
		Multiplier:     s.multiplier,
		CompletedHours: tracker.CompletedHours(),
		LastTrade:      trade,
		DetectedAt:     now,
	}, true
}

// Tracker returns the volume tracker for a market.
func (s *SpikeTracker) Tracker(marketID string) (*VolumeTracker, bool) {
	v, ok := s.trackers[marketID]
	return v, ok
}

// Prune drops trackers idle longer than VolumeIdleTTL.
func (s *SpikeTracker) Prune(now time.Time) int {
	removed := 0
	for id, v := range s.trackers {
		if now.Sub(v.lastTradeAt) > VolumeIdleTTL {
			delete(s.trackers, id)
			delete(s.titles, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked markets.
func (s *SpikeTracker) Len() int {
	return len(s.trackers)
}

// AlertedCount returns the number of markets that already fired.
func (s *SpikeTracker) AlertedCount() int {
	return s.alerted.Len()
}

// ResetAlerted forgets which markets fired.
func (s *SpikeTracker) ResetAlerted() {
	s.alerted.Reset()
}

// Snapshot copies the per-market volume state, highest ratio first.
func (s *SpikeTracker) Snapshot() []VolumeView {
	views := make([]VolumeView, 0, len(s.trackers))
	for id, v := range s.trackers {
		title := s.titles[id]
		if title == "" {
			title = id
		}
		views = append(views, VolumeView{
			MarketID:       id,
			Title:          title,
			CurrentVolume:  v.CurrentHourVolume(),
			AvgHourly:      v.AvgHourlyVolume(),
			Ratio:          v.SpikeRatio(),
			CompletedHours: v.CompletedHours(),
			Alerted:        s.alerted.Has(id),
		})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Ratio != views[j].Ratio {
			return views[i].Ratio > views[j].Ratio
		}
		return views[i].CurrentVolume > views[j].CurrentVolume
	})
	return views
}
