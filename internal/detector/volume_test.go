package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyinsider/tracker/internal/store"
)

func TestVolumeTrackerNoRollWithinHour(t *testing.T) {
	v := NewVolumeTracker(t0)
	for i := 0; i < 60; i++ {
		v.Add(10, t0.Add(time.Duration(i)*59*time.Second))
	}
	assert.Zero(t, v.CompletedHours())
	assert.Equal(t, 600.0, v.CurrentHourVolume())
	assert.Zero(t, v.AvgHourlyVolume())
}

func TestVolumeTrackerRollsOneHour(t *testing.T) {
	v := NewVolumeTracker(t0)
	v.Add(500, t0)
	v.Add(50, t0.Add(3601*time.Second))

	assert.Equal(t, 1, v.CompletedHours())
	assert.Equal(t, 500.0, v.AvgHourlyVolume())
	assert.Equal(t, 50.0, v.CurrentHourVolume())
}

func TestVolumeTrackerRollsAtExactlyOneHour(t *testing.T) {
	v := NewVolumeTracker(t0)
	v.Add(1, t0)
	v.Add(1, t0.Add(time.Hour))
	assert.Equal(t, 1, v.CompletedHours())
}

func TestVolumeTrackerHistoryBounded(t *testing.T) {
	v := NewVolumeTracker(t0)
	now := t0
	for i := 0; i < 30; i++ {
		v.Add(float64(i), now)
		now = now.Add(time.Hour)
	}
	assert.Equal(t, MaxHourlyHistory, v.CompletedHours())
	// hours 5..28 remain completed
	assert.InDelta(t, (5.0+28.0)/2, v.AvgHourlyVolume(), 1e-9)
}

func TestIsSpikeBaselineFloor(t *testing.T) {
	v := NewVolumeTracker(t0)
	v.Add(99, t0)
	v.Add(1_000_000, t0.Add(time.Hour))

	assert.Equal(t, 99.0, v.AvgHourlyVolume())
	assert.False(t, v.IsSpike(3), "baseline below 100 never spikes")
	assert.InDelta(t, 1_000_000/99.0, v.SpikeRatio(), 1e-9)
}

func TestIsSpike(t *testing.T) {
	v := NewVolumeTracker(t0)
	v.Add(200, t0)
	v.Add(600, t0.Add(time.Hour))
	assert.False(t, v.IsSpike(3), "equal to avg*multiplier is not a spike")

	v.Add(1, t0.Add(time.Hour+time.Minute))
	assert.True(t, v.IsSpike(3))
	assert.InDelta(t, 601.0/200.0, v.SpikeRatio(), 1e-9)
}

func TestSpikeRatioSmallAverage(t *testing.T) {
	v := NewVolumeTracker(t0)
	v.Add(0.5, t0)
	v.Add(100, t0.Add(time.Hour))
	assert.Zero(t, v.SpikeRatio())
}

func spikeTrade(value float64) store.Trade {
	return store.Trade{ProxyWallet: "w", Side: "SELL", ConditionID: "0xm", Title: "Fed decision", Size: value, Price: 1}
}

func TestSpikeTrackerOneShot(t *testing.T) {
	s := NewSpikeTracker(3)

	_, ok := s.Record(spikeTrade(200), t0)
	assert.False(t, ok)

	_, ok = s.Record(spikeTrade(500), t0.Add(time.Hour))
	assert.False(t, ok, "500 is not above 3x200")

	alert, ok := s.Record(spikeTrade(200), t0.Add(time.Hour+time.Minute))
	require.True(t, ok)
	assert.Equal(t, "0xm", alert.MarketID)
	assert.Equal(t, 700.0, alert.CurrentVolume)
	assert.Equal(t, 200.0, alert.AvgHourly)
	assert.Equal(t, 3.5, alert.Ratio)
	assert.Equal(t, 1, alert.CompletedHours)

	_, ok = s.Record(spikeTrade(5000), t0.Add(time.Hour+2*time.Minute))
	assert.False(t, ok, "already alerted")

	s.ResetAlerted()
	_, ok = s.Record(spikeTrade(1), t0.Add(time.Hour+3*time.Minute))
	assert.True(t, ok)
}

func TestSpikeTrackerIgnoresMissingMarket(t *testing.T) {
	s := NewSpikeTracker(3)
	trade := spikeTrade(100)
	trade.ConditionID = ""
	_, ok := s.Record(trade, t0)
	assert.False(t, ok)
	assert.Zero(t, s.Len())
}

func TestSpikeTrackerPrune(t *testing.T) {
	s := NewSpikeTracker(3)
	s.Record(spikeTrade(100), t0)

	assert.Zero(t, s.Prune(t0.Add(24*time.Hour)))
	assert.Equal(t, 1, s.Prune(t0.Add(26*time.Hour)))
	assert.Zero(t, s.Len())
}

func TestSpikeTrackerSnapshot(t *testing.T) {
	s := NewSpikeTracker(3)
	s.Record(spikeTrade(100), t0)
	views := s.Snapshot()
	require.Len(t, views, 1)
	assert.Equal(t, "Fed decision", views[0].Title)
	assert.Equal(t, 100.0, views[0].CurrentVolume)
}
