// Package ingest provides the Polymarket Data API client.
package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/polyinsider/tracker/internal/store"
)

const (
	// DataAPIBaseURL is the Polymarket Data API endpoint
	DataAPIBaseURL = "https://data-api.polymarket.com"

	// DefaultTimeout bounds a single HTTP request
	DefaultTimeout = 10 * time.Second

	// Rate-limit backoff
	InitialBackoff = 1 * time.Second
	MaxBackoff     = 60 * time.Second
	BackoffFactor  = 2

	// DefaultTradeLimit is the batch size for the trades endpoint
	DefaultTradeLimit = 100
	// ActivityLimit is how many history records are fetched per wallet
	ActivityLimit = 500
)

// Client issues GET requests against the Data API. It retries indefinitely on
// HTTP 429 with a per-client exponential backoff; every other failure is
// returned to the caller.
type Client struct {
	baseURL string
	client  *http.Client

	mu             sync.Mutex
	initialBackoff time.Duration
	maxBackoff     time.Duration
	backoff        time.Duration

	onRateLimit func(label string, wait time.Duration)
	sleep       func(ctx context.Context, d time.Duration) error
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithBackoff overrides the initial and maximum rate-limit backoff.
func WithBackoff(initial, max time.Duration) ClientOption {
	return func(c *Client) {
		c.initialBackoff = initial
		c.maxBackoff = max
	}
}

// WithRateLimitHook registers a callback invoked before each backoff sleep.
func WithRateLimitHook(fn func(label string, wait time.Duration)) ClientOption {
	return func(c *Client) {
		c.onRateLimit = fn
	}
}

// WithSleep replaces the backoff sleep.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		c.sleep = fn
	}
}

// NewClient creates a new Data API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DataAPIBaseURL
	}

	c := &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		client:         &http.Client{Timeout: DefaultTimeout},
		initialBackoff: InitialBackoff,
		maxBackoff:     MaxBackoff,
		sleep:          sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.backoff = c.initialBackoff
	return c
}

// Fetch performs a GET on endpoint and decodes the JSON body into T. label
// identifies the call in errors and logs.
func Fetch[T any](ctx context.Context, c *Client, endpoint, label string) (T, error) {
	var out T

	body, err := c.get(ctx, endpoint, label)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal(body, &out); err != nil {
		return out, &DecodeError{Label: label, Preview: preview(body), Err: err}
	}
	return out, nil
}

// FetchRecentTrades fetches the most recent trades across all markets.
func (c *Client) FetchRecentTrades(ctx context.Context, limit int) ([]store.Trade, error) {
	if limit <= 0 {
		limit = DefaultTradeLimit
	}
	endpoint := "/trades?limit=" + strconv.Itoa(limit)
	return Fetch[[]store.Trade](ctx, c, endpoint, "fetch_recent_trades")
}

// FetchActivity fetches a wallet's most recent activity records.
func (c *Client) FetchActivity(ctx context.Context, user string) ([]store.Activity, error) {
	q := url.Values{}
	q.Set("user", user)
	q.Set("limit", strconv.Itoa(ActivityLimit))
	label := "activity(" + store.MaskAddress(user) + ")"
	return Fetch[[]store.Activity](ctx, c, "/activity?"+q.Encode(), label)
}

// get performs the request loop and returns the raw body of the first
// non-rate-limited response.
func (c *Client) get(ctx context.Context, endpoint, label string) ([]byte, error) {
	target := c.baseURL + endpoint

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, &RequestError{Label: label, Err: err}
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, &RequestError{Label: label, Err: err}
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			wait := c.nextBackoff()
			slog.Warn("fetch_rate_limited", "call", label, "backoff", wait)
			if c.onRateLimit != nil {
				c.onRateLimit(label, wait)
			}
			if err := c.sleep(ctx, wait); err != nil {
				return nil, &RequestError{Label: label, Err: err}
			}
			continue
		}

		c.resetBackoff()

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &RequestError{Label: label, Err: err}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{Label: label, Code: resp.StatusCode, Preview: preview(body)}
		}

		return body, nil
	}
}

// nextBackoff returns the current wait and doubles it for the next attempt.
func (c *Client) nextBackoff() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	wait := c.backoff
	c.backoff *= BackoffFactor
	if c.backoff > c.maxBackoff {
		c.backoff = c.maxBackoff
	}
	return wait
}

func (c *Client) resetBackoff() {
	c.mu.Lock()
	c.backoff = c.initialBackoff
	c.mu.Unlock()
}

// CurrentBackoff returns the wait the next rate-limited attempt would use.
func (c *Client) CurrentBackoff() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backoff
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
