package detector

import (
	"fmt"
	"strings"

	"github.com/polyinsider/tracker/internal/store"
)

// LargePositionUSD is the value above which a fresh wallet's bet is HIGH severity.
const LargePositionUSD = 5000

// Classifier turns a filtered trade and its wallet stats into a Suspect.
type Classifier struct {
	maxUniqueMarkets int
}

// NewClassifier creates a Classifier that treats wallets with at most
// maxUniqueMarkets lifetime markets as fresh.
func NewClassifier(maxUniqueMarkets int) *Classifier {
	return &Classifier{maxUniqueMarkets: maxUniqueMarkets}
}

// Classify returns a Suspect if the wallet is fresh.
func (c *Classifier) Classify(trade store.Trade, stats store.ActorStats) (store.Suspect, bool) {
	if stats.UniqueMarkets > c.maxUniqueMarkets {
		return store.Suspect{}, false
	}

	plural := "s"
	if stats.UniqueMarkets == 1 {
		plural = ""
	}
	reasons := []string{
		fmt.Sprintf("Fresh Wallet (%d lifetime market%s)", stats.UniqueMarkets, plural),
		"Taker BUY (aggressive)",
	}

	value := trade.ValueUSD()
	var severity store.Severity

	// Precedence matters: a large bet from a 0-2 market wallet wins over brand new.
	switch {
	case stats.UniqueMarkets <= 2 && value >= LargePositionUSD:
		reasons = append(reasons, fmt.Sprintf("Large Position ($%.0f)", value))
		severity = store.SeverityHigh
	case stats.UniqueMarkets <= 1:
		reasons = append(reasons, "Brand New Wallet")
		severity = store.SeverityHigh
	case stats.UniqueMarkets <= 3:
		severity = store.SeverityMedium
	default:
		severity = store.SeverityLow
	}

	return store.Suspect{
		Trade:    trade,
		Stats:    stats,
		Reason:   strings.Join(reasons, " | "),
		Severity: severity,
	}, true
}
