package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polyinsider/tracker/internal/engine"
	"github.com/polyinsider/tracker/internal/store"
)

const namespace = "polyinsider"

// Exporter publishes engine metrics in Prometheus format.
type Exporter struct {
	registry *prometheus.Registry

	PollsTotal      prometheus.Counter
	PollErrors      prometheus.Counter
	PollDuration    prometheus.Histogram
	TradesFetched   prometheus.Counter
	TradesNew       prometheus.Counter
	StageSurvivors  *prometheus.CounterVec
	AlertsTotal     *prometheus.CounterVec
	SuspectsTotal   *prometheus.CounterVec
	StatsFailures   prometheus.Counter
	RateLimited     *prometheus.CounterVec
	Deliveries      *prometheus.CounterVec
	DedupEntries    prometheus.Gauge
	ActorCacheSize  prometheus.Gauge
	ActiveClusters  prometheus.Gauge
	TrackedMarkets  prometheus.Gauge
	AlertedMarkets  prometheus.Gauge
	LastSuccessPoll prometheus.Gauge
}

// NewExporter creates an Exporter with its own registry.
func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Exporter{
		registry: reg,
		PollsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "polls_total",
			Help:      "Total number of poll cycles run",
		}),
		PollErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "poll_errors_total",
			Help:      "Poll cycles that failed to fetch trades",
		}),
		PollDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "poll_duration_seconds",
			Help:      "Duration of a full poll cycle",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		TradesFetched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "trades_fetched_total",
			Help:      "Trades returned by the data API",
		}),
		TradesNew: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "trades_new_total",
			Help:      "Trades not seen in earlier polls",
		}),
		StageSurvivors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "stage_survivors_total",
			Help:      "Trades surviving each filter stage",
		}, []string{"stage"}),
		AlertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "alerts_total",
			Help:      "Alerts raised by kind",
		}, []string{"kind"}),
		SuspectsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "suspects_total",
			Help:      "Suspect trades by severity",
		}, []string{"severity"}),
		StatsFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "stats_failures_total",
			Help:      "Wallet stats refreshes that failed",
		}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rate_limited_total",
			Help:      "HTTP 429 responses by call",
		}, []string{"call"}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Alert deliveries by sink and result",
		}, []string{"sink", "result"}),
		DedupEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "dedup_entries",
			Help:      "Trade ids held by the deduplicator",
		}),
		ActorCacheSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "actor_cache_entries",
			Help:      "Wallets held in the stats cache",
		}),
		ActiveClusters: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "active_clusters",
			Help:      "Markets with an open cluster window",
		}),
		TrackedMarkets: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "volume_tracked_markets",
			Help:      "Markets with an hourly volume tracker",
		}),
		AlertedMarkets: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "alerted_markets",
			Help:      "Markets already alerted for clusters or spikes",
		}),
		LastSuccessPoll: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful poll",
		}),
	}
}

// ObserveCycle records one poll cycle.
func (e *Exporter) ObserveCycle(r engine.CycleReport) {
	sum := r.Summary
	e.PollsTotal.Inc()
	e.PollDuration.Observe(sum.Duration.Seconds())

	if sum.Err != nil {
		e.PollErrors.Inc()
		return
	}
	e.LastSuccessPoll.Set(float64(r.At.Unix()))

	e.TradesFetched.Add(float64(sum.Fetched))
	e.TradesNew.Add(float64(sum.New))
	e.StatsFailures.Add(float64(sum.StatsFailures))
	for _, stage := range sum.Stages.Stages {
		e.StageSurvivors.WithLabelValues(stage.Name).Add(float64(stage.Survivors))
	}
	for _, ev := range r.Events {
		e.AlertsTotal.WithLabelValues(string(ev.Kind())).Inc()
		if s, ok := ev.(store.Suspect); ok {
			e.SuspectsTotal.WithLabelValues(s.Severity.String()).Inc()
		}
	}

	e.DedupEntries.Set(float64(r.DedupSize))
	e.ActorCacheSize.Set(float64(r.CacheSize))
	e.ActiveClusters.Set(float64(len(r.Clusters)))
	e.TrackedMarkets.Set(float64(len(r.Volumes)))
	e.AlertedMarkets.Set(float64(r.AlertedSpots))
}

// RecordRateLimit is the ingest client's rate-limit hook. Labels like
// "activity(0x12...ab)" collapse to their call name.
func (e *Exporter) RecordRateLimit(label string, _ time.Duration) {
	if i := strings.IndexByte(label, '('); i > 0 {
		label = label[:i]
	}
	e.RateLimited.WithLabelValues(label).Inc()
}

// RecordDelivery is the dispatcher's delivery hook.
func (e *Exporter) RecordDelivery(sink string, _ store.EventKind, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	e.Deliveries.WithLabelValues(sink, result).Inc()
}

// Handler serves the exporter's registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

// Serve exposes /metrics on port until ctx is cancelled.
func (e *Exporter) Serve(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics_listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
