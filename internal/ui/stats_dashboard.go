package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/polyinsider/tracker/internal/metrics"
	"github.com/polyinsider/tracker/internal/store"
)

// StatsDashboardView displays poll health and detection counters.
type StatsDashboardView struct {
	textView *tview.TextView
}

// NewStatsDashboardView creates a new stats dashboard view.
func NewStatsDashboardView() *StatsDashboardView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)

	textView.SetTitle(" Poll Stats ").SetBorder(true)

	return &StatsDashboardView{
		textView: textView,
	}
}

// Widget returns the tview primitive.
func (v *StatsDashboardView) Widget() tview.Primitive {
	return v.textView
}

// Update refreshes the stats display.
func (v *StatsDashboardView) Update(snapshot metrics.MetricsSnapshot) {
	v.textView.Clear()
	fmt.Fprint(v.textView, renderStats(snapshot))
}

func renderStats(snapshot metrics.MetricsSnapshot) string {
	apiColor := "green"
	switch snapshot.APIStatus {
	case metrics.APIStatusRateLimited:
		apiColor = "yellow"
	case metrics.APIStatusError:
		apiColor = "red"
	case metrics.APIStatusStarting:
		apiColor = "gray"
	}

	lastError := "none"
	if snapshot.LastError != "" {
		lastError = fmt.Sprintf("%s (%s)", truncate(snapshot.LastError, 40), formatTimeAgo(snapshot.LastErrorAt))
	}

	bufferPct := 0.0
	if snapshot.EventBufferCap > 0 {
		bufferPct = (float64(snapshot.EventBufferUsed) / float64(snapshot.EventBufferCap)) * 100
	}

	return fmt.Sprintf(`[yellow]System Status[-]
Uptime: %s
Data API: [%s]%s[-]  Last poll: %s
Rate limits: %d  Last error: %s

[yellow]Last Cycle[-]
%s

[yellow]Totals[-]
Polls: %d (%d failed)  New trades: %d (%.2f/s)
Insiders: %d (H %d / M %d / L %d)
Clusters: %d  Spikes: %d  Stats failures: %d

[yellow]State[-]
Dedup: %d  Wallet cache: %d  Alerted: %d
Alert buffer: %d/%d (%.1f%%)
`,
		formatDuration(snapshot.Uptime),
		apiColor, snapshot.APIStatus, formatTimeAgo(snapshot.LastPoll),
		snapshot.RateLimits, lastError,
		tview.Escape(snapshot.LastSummary.String()),
		snapshot.PollsTotal, snapshot.PollErrors, snapshot.TradesNew, snapshot.TradeRate,
		snapshot.AlertsByKind[store.KindSuspect],
		snapshot.SuspectsBySev[store.SeverityHigh.String()],
		snapshot.SuspectsBySev[store.SeverityMedium.String()],
		snapshot.SuspectsBySev[store.SeverityLow.String()],
		snapshot.AlertsByKind[store.KindCluster],
		snapshot.AlertsByKind[store.KindSpike],
		snapshot.StatsFailures,
		snapshot.DedupSize, snapshot.ActorCacheSize, snapshot.AlertedMarkets,
		snapshot.EventBufferUsed, snapshot.EventBufferCap, bufferPct,
	)
}

// formatDuration formats a duration in human-readable form.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// formatTimeAgo formats a time as "X ago".
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	elapsed := time.Since(t)

	if elapsed < time.Minute {
		return fmt.Sprintf("%.0fs ago", elapsed.Seconds())
	}
	if elapsed < time.Hour {
		return fmt.Sprintf("%.0fm ago", elapsed.Minutes())
	}
	if elapsed < 24*time.Hour {
		return fmt.Sprintf("%.0fh ago", elapsed.Hours())
	}
	return fmt.Sprintf("%.0fd ago", elapsed.Hours()/24)
}
