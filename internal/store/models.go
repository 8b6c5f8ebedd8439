// Package store provides data models and the alert archive.
package store

import (
	"fmt"
	"strings"
	"time"
)

// MarketBaseURL is the public Polymarket site used to build market links.
const MarketBaseURL = "https://polymarket.com"

// Trade represents a single trade event from the Polymarket Data API.
type Trade struct {
	// ProxyWallet is the wallet that placed the trade
	ProxyWallet string `json:"proxyWallet"`

	// Side is BUY or SELL
	Side string `json:"side"`

	// Asset is the outcome token ID
	Asset string `json:"asset,omitempty"`

	// ConditionID is the market identifier (may be missing)
	ConditionID string `json:"conditionId,omitempty"`

	// Size is the number of shares
	Size float64 `json:"size"`

	// Price is the price per share (0-1 range for prediction markets, not enforced)
	Price float64 `json:"price"`

	// Timestamp is the unix time in seconds
	Timestamp int64 `json:"timestamp"`

	// Display metadata, opaque to the detectors
	Title                 string `json:"title,omitempty"`
	Slug                  string `json:"slug,omitempty"`
	Icon                  string `json:"icon,omitempty"`
	EventSlug             string `json:"eventSlug,omitempty"`
	Outcome               string `json:"outcome,omitempty"`
	OutcomeIndex          *int   `json:"outcomeIndex,omitempty"`
	Name                  string `json:"name,omitempty"`
	Pseudonym             string `json:"pseudonym,omitempty"`
	Bio                   string `json:"bio,omitempty"`
	ProfileImage          string `json:"profileImage,omitempty"`
	ProfileImageOptimized string `json:"profileImageOptimized,omitempty"`
	TransactionHash       string `json:"transactionHash,omitempty"`
}

// ValueUSD is the notional value of the trade.
func (t Trade) ValueUSD() float64 {
	return t.Price * t.Size
}

// IsAggressiveBuy reports whether the trade is a taker BUY.
func (t Trade) IsAggressiveBuy() bool {
	return strings.EqualFold(t.Side, "BUY")
}

// DedupKey identifies the trade for deduplication. Two trades by the same
// wallet in the same second with equal size share a key.
func (t Trade) DedupKey() string {
	return fmt.Sprintf("%s-%d-%v", t.ProxyWallet, t.Timestamp, t.Size)
}

// MarketID returns the condition ID and whether the trade carries one.
func (t Trade) MarketID() (string, bool) {
	return t.ConditionID, t.ConditionID != ""
}

// Time converts the unix timestamp.
func (t Trade) Time() time.Time {
	return time.Unix(t.Timestamp, 0)
}

// MarketURL returns the Polymarket event page for this trade.
func (t Trade) MarketURL() string {
	switch {
	case t.EventSlug != "":
		return MarketBaseURL + "/event/" + t.EventSlug
	case t.Slug != "":
		return MarketBaseURL + "/event/" + t.Slug
	default:
		return MarketBaseURL
	}
}

// DisplayTitle returns the market title or a placeholder.
func (t Trade) DisplayTitle() string {
	if t.Title == "" {
		return "Unknown Market"
	}
	return t.Title
}

// DisplayOutcome returns the outcome, falling back to the side.
func (t Trade) DisplayOutcome() string {
	if t.Outcome == "" {
		return t.Side
	}
	return t.Outcome
}

// Activity is one record of a wallet's activity history.
type Activity struct {
	ProxyWallet  *string  `json:"proxyWallet,omitempty"`
	Side         *string  `json:"side,omitempty"`
	Asset        *string  `json:"asset,omitempty"`
	ConditionID  *string  `json:"conditionId,omitempty"`
	Size         *float64 `json:"size,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	Timestamp    *int64   `json:"timestamp,omitempty"`
	Title        *string  `json:"title,omitempty"`
	Slug         *string  `json:"slug,omitempty"`
	Outcome      *string  `json:"outcome,omitempty"`
	ActivityType *string  `json:"type,omitempty"`
}

// ActorStats summarises a wallet's recent activity history. UniqueMarkets is
// a lower bound because only the most recent records are fetched.
type ActorStats struct {
	Address       string
	UniqueMarkets int
	TotalTrades   int
	FirstActivity *int64
}

// Severity ranks suspect trades.
type Severity int

const (
	SeverityHigh Severity = iota
	SeverityMedium
	SeverityLow
)

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "HIGH"
	case SeverityMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// MaskAddress shortens a wallet address for display (0x31a2...9f1c).
func MaskAddress(address string) string {
	if len(address) < 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
