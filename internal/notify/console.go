package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/polyinsider/tracker/internal/store"
)

// ConsoleSink writes alerts to the structured log.
type ConsoleSink struct {
	logger *slog.Logger
}

// NewConsoleSink creates a ConsoleSink. A nil logger means slog.Default().
func NewConsoleSink(logger *slog.Logger) *ConsoleSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleSink{logger: logger}
}

func (c *ConsoleSink) Name() string { return "console" }

func (c *ConsoleSink) Notify(ctx context.Context, ev store.Event) error {
	switch e := ev.(type) {
	case store.Suspect:
		t := e.Trade
		c.logger.WarnContext(ctx, "insider_alert",
			"severity", e.Severity.String(),
			"wallet", store.MaskAddress(e.Stats.Address),
			"market", t.DisplayTitle(),
			"outcome", t.DisplayOutcome(),
			"value_usd", t.ValueUSD(),
			"price_pct", t.Price*100,
			"lifetime_markets", e.Stats.UniqueMarkets,
			"reason", e.Reason,
			"time", t.Time().UTC().Format("15:04:05 UTC"),
			"tx", orNA(t.TransactionHash),
			"url", t.MarketURL(),
		)
	case store.ClusterAlert:
		c.logger.WarnContext(ctx, "cluster_alert",
			"market", e.Title,
			"wallets", e.WalletCount,
			"volume_usd", e.TotalVolume,
			"avg_price", e.AvgPrice,
			"window_age", e.WindowAge.Round(time.Second),
			"url", e.MarketURL,
		)
	case store.SpikeAlert:
		c.logger.WarnContext(ctx, "volume_spike",
			"market", e.Title,
			"ratio", e.Ratio,
			"current_usd", e.CurrentVolume,
			"avg_hourly_usd", e.AvgHourly,
			"completed_hours", e.CompletedHours,
			"url", e.MarketURL,
		)
	default:
		c.logger.WarnContext(ctx, "alert", "kind", ev.Kind(), "headline", ev.Headline())
	}
	return nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
