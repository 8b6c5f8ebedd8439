package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/polyinsider/tracker/internal/store"
)

// Embed colors.
const (
	ColorHigh    = 0xFF0000
	ColorMedium  = 0xFFA500
	ColorLow     = 0x00FF00
	ColorCluster = 0x9B59B6
	ColorSpike   = 0x3498DB
)

const discordFooter = "Polymarket Insider Tracker"

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	URL       string         `json:"url,omitempty"`
	Fields    []discordField `json:"fields"`
	Footer    map[string]any `json:"footer,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// DiscordSink posts embeds to a Discord webhook.
type DiscordSink struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSink creates a sink for webhookURL.
func NewDiscordSink(webhookURL string, client *http.Client) *DiscordSink {
	if client == nil {
		client = &http.Client{Timeout: DefaultDeliveryTimeout}
	}
	return &DiscordSink{webhookURL: webhookURL, client: client}
}

func (d *DiscordSink) Name() string { return "discord" }

func (d *DiscordSink) Notify(ctx context.Context, ev store.Event) error {
	data, err := json.Marshal(discordPayload{Embeds: []discordEmbed{buildEmbed(ev)}})
	if err != nil {
		return fmt.Errorf("marshal embed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord returned status: %d", resp.StatusCode)
	}
	return nil
}

// SeverityColor maps severity to its embed color.
func SeverityColor(s store.Severity) int {
	switch s {
	case store.SeverityHigh:
		return ColorHigh
	case store.SeverityMedium:
		return ColorMedium
	default:
		return ColorLow
	}
}

func buildEmbed(ev store.Event) discordEmbed {
	embed := discordEmbed{
		Footer:    map[string]any{"text": discordFooter},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	switch e := ev.(type) {
	case store.Suspect:
		t := e.Trade
		icon := "⚠️"
		if e.Severity == store.SeverityHigh {
			icon = "🚨"
		}
		embed.Title = fmt.Sprintf("%s Insider Alert [%s]", icon, e.Severity)
		embed.Color = SeverityColor(e.Severity)
		embed.Fields = []discordField{
			{Name: "📈 Market", Value: t.DisplayTitle()},
			{Name: "🎯 Outcome", Value: t.DisplayOutcome(), Inline: true},
			{Name: "💰 Value", Value: fmt.Sprintf("$%.2f", t.ValueUSD()), Inline: true},
			{Name: "👛 Wallet", Value: store.MaskAddress(e.Stats.Address), Inline: true},
			{Name: "📊 Lifetime Markets", Value: strconv.Itoa(e.Stats.UniqueMarkets), Inline: true},
			{Name: "🔍 Reason", Value: e.Reason},
			{Name: "🛒 Buy Link", Value: t.MarketURL()},
		}
	case store.ClusterAlert:
		embed.Title = "👥 Cluster Alert"
		embed.Color = ColorCluster
		embed.URL = e.MarketURL
		embed.Fields = []discordField{
			{Name: "📈 Market", Value: e.Title},
			{Name: "👛 Wallets", Value: strconv.Itoa(e.WalletCount), Inline: true},
			{Name: "💰 Volume", Value: fmt.Sprintf("$%.2f", e.TotalVolume), Inline: true},
			{Name: "📊 Avg Price", Value: fmt.Sprintf("%.1f%%", e.AvgPrice*100), Inline: true},
			{Name: "⏱ Window", Value: e.WindowAge.Round(time.Second).String(), Inline: true},
			{Name: "🛒 Market Link", Value: e.MarketURL},
		}
	case store.SpikeAlert:
		embed.Title = "📈 Volume Spike"
		embed.Color = ColorSpike
		embed.URL = e.MarketURL
		embed.Fields = []discordField{
			{Name: "📈 Market", Value: e.Title},
			{Name: "🔥 Ratio", Value: fmt.Sprintf("%.1fx", e.Ratio), Inline: true},
			{Name: "💰 This Hour", Value: fmt.Sprintf("$%.2f", e.CurrentVolume), Inline: true},
			{Name: "📊 Hourly Avg", Value: fmt.Sprintf("$%.2f", e.AvgHourly), Inline: true},
			{Name: "🛒 Market Link", Value: e.MarketURL},
		}
	default:
		embed.Title = ev.Headline()
		embed.Color = ColorLow
	}
	return embed
}
