package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/polyinsider/tracker/internal/store"
)

// TelegramAPIBaseURL is the Bot API endpoint.
const TelegramAPIBaseURL = "https://api.telegram.org"

const telegramTestMessage = `🎯 <b>Polymarket Insider Tracker</b>

✅ Bot connected!

Monitoring for:
• Fresh wallets (few prior markets)
• Large trades (&gt;$%.0f)
• Contrarian bets (&lt;%.0f%% odds)
• Wallet clusters and volume spikes

Alerts will appear here.`

// TelegramSink sends HTML-formatted messages through the Bot API.
type TelegramSink struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

// TelegramOption configures a TelegramSink.
type TelegramOption func(*TelegramSink)

// WithTelegramBaseURL overrides TelegramAPIBaseURL.
func WithTelegramBaseURL(u string) TelegramOption {
	return func(t *TelegramSink) {
		t.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTelegramHTTPClient overrides the HTTP client.
func WithTelegramHTTPClient(c *http.Client) TelegramOption {
	return func(t *TelegramSink) {
		t.client = c
	}
}

// NewTelegramSink creates a sink for the given bot token and chat.
func NewTelegramSink(token, chatID string, opts ...TelegramOption) *TelegramSink {
	t := &TelegramSink{
		baseURL: TelegramAPIBaseURL,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: DefaultDeliveryTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *TelegramSink) Name() string { return "telegram" }

func (t *TelegramSink) Notify(ctx context.Context, ev store.Event) error {
	return t.send(ctx, FormatTelegram(ev), false)
}

// SendTest posts the startup connectivity message.
func (t *TelegramSink) SendTest(ctx context.Context, minTradeUSD, maxPrice float64) error {
	return t.send(ctx, fmt.Sprintf(telegramTestMessage, minTradeUSD, maxPrice*100), true)
}

func (t *TelegramSink) send(ctx context.Context, text string, disablePreview bool) error {
	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": disablePreview,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The URL embeds the bot token; keep it out of logs.
		return fmt.Errorf("telegram request failed: %w", redactToken(err, t.token))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// FormatTelegram renders ev as Telegram HTML. Free text is escaped.
func FormatTelegram(ev store.Event) string {
	switch e := ev.(type) {
	case store.Suspect:
		t := e.Trade
		emoji := "📊"
		switch e.Severity {
		case store.SeverityHigh:
			emoji = "🚨"
		case store.SeverityMedium:
			emoji = "⚠️"
		}
		return fmt.Sprintf(`%s <b>INSIDER ALERT [%s]</b> %s

📈 <b>Market:</b> %s
🎯 <b>Outcome:</b> %s
💰 <b>Value:</b> $%.2f
📊 <b>Price:</b> %.1f%%
👛 <b>Wallet:</b> <code>%s</code>
🔍 <b>Reason:</b> %s
⏰ <b>Time:</b> %s

🛒 <a href="%s">BUY NOW</a>`,
			emoji, e.Severity, emoji,
			escapeHTML(t.DisplayTitle()),
			escapeHTML(t.DisplayOutcome()),
			t.ValueUSD(),
			t.Price*100,
			escapeHTML(e.Stats.Address),
			escapeHTML(e.Reason),
			t.Time().UTC().Format("15:04:05 UTC"),
			t.MarketURL(),
		)
	case store.ClusterAlert:
		return fmt.Sprintf(`👥 <b>CLUSTER ALERT</b>

📈 <b>Market:</b> %s
👛 <b>Wallets:</b> %d
💰 <b>Volume:</b> $%.2f
📊 <b>Avg Price:</b> %.1f%%

🛒 <a href="%s">VIEW MARKET</a>`,
			escapeHTML(e.Title), e.WalletCount, e.TotalVolume, e.AvgPrice*100, e.MarketURL)
	case store.SpikeAlert:
		return fmt.Sprintf(`📈 <b>VOLUME SPIKE</b> %.1fx

📈 <b>Market:</b> %s
💰 <b>This Hour:</b> $%.2f
📊 <b>Hourly Avg:</b> $%.2f

🛒 <a href="%s">VIEW MARKET</a>`,
			e.Ratio, escapeHTML(e.Title), e.CurrentVolume, e.AvgHourly, e.MarketURL)
	default:
		return escapeHTML(ev.Headline())
	}
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escapeHTML escapes &, < and > for Telegram's HTML parse mode.
func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

type redactedError struct {
	msg string
	err error
}

func (r *redactedError) Error() string { return r.msg }
func (r *redactedError) Unwrap() error { return r.err }

func redactToken(err error, token string) error {
	if token == "" {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), token, "***"), err: err}
}
