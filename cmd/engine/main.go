// Package main is the entry point for the Polymarket insider tracker.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/polyinsider/tracker/internal/config"
	"github.com/polyinsider/tracker/internal/detector"
	"github.com/polyinsider/tracker/internal/engine"
	"github.com/polyinsider/tracker/internal/enrich"
	"github.com/polyinsider/tracker/internal/ingest"
	"github.com/polyinsider/tracker/internal/metrics"
	"github.com/polyinsider/tracker/internal/notify"
	"github.com/polyinsider/tracker/internal/store"
	"github.com/polyinsider/tracker/internal/ui"
)

const (
	// EventChannelBuffer is the size of the dashboard's alert channel
	EventChannelBuffer = 100
	// ShutdownDrainTimeout bounds how long in-flight alerts may finish on exit
	ShutdownDrainTimeout = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// The dashboard owns stdout, so logs go to a file while it runs.
	logOut := io.Writer(os.Stdout)
	if cfg.EnableTUI {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	slog.SetDefault(setupLogger(cfg.LogLevel, logOut))

	slog.Info("polyinsider starting", "version", "1.0.0")
	slog.Info("config_loaded",
		"data_api_url", cfg.DataAPIURL,
		"poll_interval", cfg.PollInterval,
		"trade_fetch_limit", cfg.TradeFetchLimit,
		"min_trade_size_usd", cfg.MinTradeSizeUSD,
		"max_price_threshold", cfg.MaxPriceThreshold,
		"max_unique_markets", cfg.MaxUniqueMarkets,
		"excluded_keywords", len(cfg.ExcludedKeywords),
		"cluster_window", cfg.ClusterWindow,
		"cluster_min_wallets", cfg.ClusterMinWallets,
		"cluster_min_trade_usd", cfg.ClusterMinTradeUSD,
		"volume_spike_multiplier", cfg.VolumeSpikeMultiplier,
		"discord_webhook", cfg.MaskedDiscordWebhook(),
		"telegram_token", cfg.MaskedTelegramToken(),
		"redis_addr", cfg.RedisAddr,
		"alert_hub_addr", cfg.AlertHubAddr,
		"db_path", cfg.DBPath,
		"prometheus_port", cfg.PrometheusPort,
		"enable_tui", cfg.EnableTUI,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker := metrics.NewMetricsTracker()
	var exporter *metrics.Exporter
	if cfg.PrometheusPort > 0 {
		exporter = metrics.NewExporter()
		go func() {
			if err := exporter.Serve(ctx, cfg.PrometheusPort); err != nil {
				slog.Error("metrics_server_failed", "error", err)
			}
		}()
	}

	client := ingest.NewClient(cfg.DataAPIURL,
		ingest.WithTimeout(cfg.HTTPTimeout),
		ingest.WithRateLimitHook(func(label string, wait time.Duration) {
			tracker.RecordRateLimit(label, wait)
			if exporter != nil {
				exporter.RecordRateLimit(label, wait)
			}
		}),
	)

	var uiEvents chan store.Event
	if cfg.EnableTUI {
		uiEvents = make(chan store.Event, EventChannelBuffer)
	}

	sinks, closers, err := buildSinks(ctx, cfg, uiEvents)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	dispatcher := notify.NewDispatcher(sinks,
		notify.WithDeliveryHook(func(sink string, kind store.EventKind, err error) {
			tracker.RecordDelivery(sink, kind, err)
			if exporter != nil {
				exporter.RecordDelivery(sink, kind, err)
			}
		}),
	)
	slog.Info("sinks_configured", "sinks", strings.Join(dispatcher.Sinks(), ","))

	engineCfg := engine.Config{
		TradeLimit:   cfg.TradeFetchLimit,
		PollInterval: cfg.PollInterval,
		Filter: detector.FilterConfig{
			Excluded:          detector.KeywordFilter(cfg.ExcludedKeywords),
			MinTradeSizeUSD:   cfg.MinTradeSizeUSD,
			MaxPriceThreshold: cfg.MaxPriceThreshold,
		},
		MaxUniqueMarkets: cfg.MaxUniqueMarkets,
		Cluster: detector.ClusterConfig{
			Window:      cfg.ClusterWindow,
			MinWallets:  cfg.ClusterMinWallets,
			MinTradeUSD: cfg.ClusterMinTradeUSD,
		},
		SpikeMultiplier: cfg.VolumeSpikeMultiplier,
	}

	observers := engine.Observers{tracker}
	if exporter != nil {
		observers = append(observers, exporter)
	}

	state := engine.NewState(engineCfg, enrich.NewActorCache(client))
	eng := engine.New(engineCfg, client, state, dispatcher, engine.WithObserver(observers))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigChan:
				if sig == syscall.SIGHUP {
					slog.Info("alert_reset_requested", "signal", sig.String())
					eng.ResetAlerts()
					continue
				}
				slog.Info("shutdown_signal_received", "signal", sig.String())
				cancel()
				return
			}
		}
	}()

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- eng.Run(ctx)
	}()

	if cfg.EnableTUI {
		slog.Info("starting_tui")
		app := ui.NewApp(uiEvents, tracker, cfg.UIRefreshRate, eng.ResetAlerts)
		if err := app.Run(ctx); err != nil {
			slog.Error("tui_error", "error", err)
		}
		// quitting the dashboard stops the engine
		cancel()
	}

	if err := <-engineDone; err != nil {
		slog.Error("engine_error", "error", err)
	}

	slog.Info("shutting_down", "status", "draining alerts")
	if !dispatcher.Wait(ShutdownDrainTimeout) {
		slog.Warn("alerts_not_drained", "timeout", ShutdownDrainTimeout)
	}

	slog.Info("shutdown_complete", "polls", state.PollCount)
	return nil
}

// buildSinks assembles the configured alert sinks. Optional sinks that fail
// to initialize are logged and skipped.
func buildSinks(ctx context.Context, cfg *config.Config, uiEvents chan store.Event) ([]notify.Sink, []func(), error) {
	var sinks []notify.Sink
	var closers []func()

	if uiEvents != nil {
		sinks = append(sinks, notify.NewChannelSink("tui", uiEvents))
	} else {
		sinks = append(sinks, notify.NewConsoleSink(slog.Default()))
	}

	if cfg.DiscordWebhookURL != "" {
		sinks = append(sinks, notify.NewDiscordSink(cfg.DiscordWebhookURL, nil))
	}

	if cfg.TelegramEnabled() {
		tg := notify.NewTelegramSink(cfg.TelegramBotToken, cfg.TelegramChatID)
		testCtx, cancel := context.WithTimeout(ctx, notify.DefaultDeliveryTimeout)
		if err := tg.SendTest(testCtx, cfg.MinTradeSizeUSD, cfg.MaxPriceThreshold); err != nil {
			slog.Error("telegram_test_failed", "error", err)
		} else {
			slog.Info("telegram_test_sent")
		}
		cancel()
		sinks = append(sinks, tg)
	}

	if cfg.RedisAddr != "" {
		rs, err := notify.NewRedisSink(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisChannel)
		if err != nil {
			slog.Warn("redis_sink_disabled", "error", err)
		} else {
			sinks = append(sinks, rs)
			closers = append(closers, func() { rs.Close() })
		}
	}

	if cfg.AlertHubAddr != "" {
		hub := notify.NewHubSink()
		go func() {
			if err := hub.Serve(ctx, cfg.AlertHubAddr); err != nil {
				slog.Error("hub_server_failed", "error", err)
			}
		}()
		sinks = append(sinks, hub)
	}

	if cfg.DBPath != "" {
		alertLog, err := store.OpenAlertLog(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open alert archive: %w", err)
		}
		sinks = append(sinks, notify.NewArchiveSink(alertLog))
		closers = append(closers, func() { alertLog.Close() })
	}

	return sinks, closers, nil
}

// setupLogger creates a structured logger with the specified level.
// Format: time=2025-01-04 14:32:01 level=INFO msg=message key=value
func setupLogger(levelStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format("2006-01-02 15:04:05"))
				}
			}
			return a
		},
	}

	return slog.New(slog.NewTextHandler(w, opts))
}
