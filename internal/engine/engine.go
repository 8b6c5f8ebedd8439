package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polyinsider/tracker/internal/detector"
	"github.com/polyinsider/tracker/internal/store"
)

// Engine owns the detection state and runs one poll cycle at a time.
type Engine struct {
	cfg        Config
	trades     TradeSource
	state      *State
	pipeline   *detector.Pipeline
	classifier *detector.Classifier
	notifier   Notifier
	observer   Observer
	now        func() time.Time
	resets     chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers an observer for cycle reports.
func WithObserver(obs Observer) Option {
	return func(e *Engine) {
		e.observer = obs
	}
}

// WithClock replaces time.Now as the cycle's wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an Engine. notifier may be nil when nothing consumes events.
func New(cfg Config, trades TradeSource, state *State, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{
		cfg:        cfg,
		trades:     trades,
		state:      state,
		pipeline:   detector.NewPipeline(cfg.Filter),
		classifier: detector.NewClassifier(cfg.MaxUniqueMarkets),
		notifier:   notifier,
		now:        time.Now,
		resets:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State exposes the engine's detection state. Only safe to read between cycles.
func (e *Engine) State() *State {
	return e.state
}

// ResetAlerts asks the loop to clear the one-shot alert sets before its next
// cycle. Safe to call from any goroutine.
func (e *Engine) ResetAlerts() {
	select {
	case e.resets <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled. Cancellation is checked between cycles
// and interrupts the interval sleep, never an in-flight cycle.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine_started",
		"poll_interval", e.cfg.PollInterval,
		"trade_limit", e.cfg.TradeLimit,
		"min_trade_usd", e.cfg.Filter.MinTradeSizeUSD,
		"max_price", e.cfg.Filter.MaxPriceThreshold,
		"max_unique_markets", e.cfg.MaxUniqueMarkets,
	)

	for {
		if ctx.Err() != nil {
			slog.Info("engine_stopped", "polls", e.state.PollCount)
			return nil
		}

		e.applyResets()
		if _, err := e.Poll(context.WithoutCancel(ctx)); err != nil {
			slog.Error("poll_failed", "poll", e.state.PollCount, "error", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("engine_stopped", "polls", e.state.PollCount)
			return nil
		case <-time.After(e.cfg.PollInterval):
		}
	}
}

func (e *Engine) applyResets() {
	select {
	case <-e.resets:
		e.state.ResetAlerts()
		slog.Info("alerts_reset")
	default:
	}
}

// Poll runs one full cycle: expire stale windows, fetch, deduplicate, update
// the market trackers, filter, enrich and classify. A fetch failure ends the
// cycle early; the summary is still logged and observed.
func (e *Engine) Poll(ctx context.Context) (Summary, error) {
	start := time.Now()
	now := e.now()
	st := e.state

	st.PollCount++
	sum := Summary{
		Poll:            st.PollCount,
		MinTradeSizeUSD: e.cfg.Filter.MinTradeSizeUSD,
	}

	sum.ExpiredClusters = st.Clusters.Expire(now)
	if pruned := st.Spikes.Prune(now); pruned > 0 {
		slog.Debug("volume_trackers_pruned", "count", pruned)
	}

	batch, err := e.trades.FetchRecentTrades(ctx, e.cfg.TradeLimit)
	if err != nil {
		sum.Err = fmt.Errorf("fetch trades: %w", err)
		sum.Duration = time.Since(start)
		e.finish(sum, now, nil, nil)
		return sum, sum.Err
	}
	sum.Fetched = len(batch)

	fresh := make([]store.Trade, 0, len(batch))
	for _, trade := range batch {
		key := trade.DedupKey()
		if st.Dedup.Seen(key) {
			continue
		}
		if evicted := st.Dedup.MarkSeen(key); evicted > 0 {
			slog.Debug("dedup_trimmed", "evicted", evicted, "size", st.Dedup.Len())
		}
		fresh = append(fresh, trade)
	}
	sum.New = len(fresh)

	var events []store.Event
	for _, trade := range fresh {
		if alert, ok := st.Clusters.Record(trade, now); ok {
			events = append(events, alert)
			sum.Clusters++
		}
		if alert, ok := st.Spikes.Record(trade, now); ok {
			events = append(events, alert)
			sum.Spikes++
		}
	}

	survivors, counts := e.pipeline.Run(fresh)
	sum.Stages = counts

	for _, trade := range survivors {
		stats, err := st.Actors.StatsFor(ctx, trade.ProxyWallet)
		if err != nil {
			sum.StatsFailures++
			slog.Error("actor_stats_failed",
				"wallet", store.MaskAddress(trade.ProxyWallet),
				"market", trade.DisplayTitle(),
				"error", err,
			)
			continue
		}

		if suspect, ok := e.classifier.Classify(trade, stats); ok {
			events = append(events, suspect)
			sum.Suspects++
		}
	}

	sum.Duration = time.Since(start)
	e.finish(sum, now, fresh, events)

	if e.notifier != nil {
		for _, ev := range events {
			e.notifier.Dispatch(ev)
		}
	}
	return sum, nil
}

// finish logs the cycle summary and hands the report to the observer.
func (e *Engine) finish(sum Summary, now time.Time, fresh []store.Trade, events []store.Event) {
	slog.Info("poll_summary",
		"poll", sum.Poll,
		"fetched", sum.Fetched,
		"new", sum.New,
		"non_excluded", sum.NonExcluded(),
		"large", sum.Large(),
		"aggressive", sum.Aggressive(),
		"contrarian", sum.Contrarian(),
		"insiders", sum.Suspects,
		"clusters", sum.Clusters,
		"spikes", sum.Spikes,
		"duration", sum.Duration,
	)
	slog.Debug("poll_line", "line", sum.String())

	if e.observer == nil {
		return
	}

	st := e.state
	e.observer.ObserveCycle(CycleReport{
		Summary:      sum,
		At:           now,
		NewTrades:    fresh,
		Events:       events,
		Clusters:     st.Clusters.Snapshot(now),
		Volumes:      st.Spikes.Snapshot(),
		DedupSize:    st.Dedup.Len(),
		CacheSize:    st.Actors.Len(),
		AlertedSpots: st.Clusters.AlertedCount() + st.Spikes.AlertedCount(),
	})
}
