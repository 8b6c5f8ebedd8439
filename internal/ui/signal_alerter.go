package ui

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyinsider/tracker/internal/store"
)

const maxAlertItems = 50

// SignalAlerterView lists suspects, clusters and spikes, newest first.
type SignalAlerterView struct {
	list     *tview.List
	events   []alertItem
	maxItems int
}

type alertItem struct {
	event    store.Event
	received time.Time
}

// NewSignalAlerterView creates a new alert feed view.
func NewSignalAlerterView() *SignalAlerterView {
	list := tview.NewList().
		ShowSecondaryText(true)

	list.SetTitle(" 🚨 Alerts ").SetBorder(true)
	list.SetMainTextColor(tcell.ColorWhite)

	v := &SignalAlerterView{
		list:     list,
		events:   make([]alertItem, 0, maxAlertItems),
		maxItems: maxAlertItems,
	}
	v.rebuildList()
	return v
}

// Widget returns the tview primitive.
func (v *SignalAlerterView) Widget() tview.Primitive {
	return v.list
}

// AddEvent adds an alert to the front of the feed.
func (v *SignalAlerterView) AddEvent(ev store.Event) {
	v.events = append([]alertItem{{event: ev, received: time.Now()}}, v.events...)
	if len(v.events) > v.maxItems {
		v.events = v.events[:v.maxItems]
	}
	v.rebuildList()
}

// Len returns the number of alerts shown.
func (v *SignalAlerterView) Len() int {
	return len(v.events)
}

// Refresh redraws the list.
func (v *SignalAlerterView) Refresh() {
	v.rebuildList()
}

func (v *SignalAlerterView) rebuildList() {
	v.list.Clear()

	if len(v.events) == 0 {
		v.list.AddItem("No alerts yet", "", 0, nil)
		v.list.SetTitle(" 🚨 Alerts ")
		return
	}

	for _, item := range v.events {
		main, secondary := formatEvent(item.event, item.received)
		v.list.AddItem(main, secondary, 0, nil)
	}
	v.list.SetTitle(fmt.Sprintf(" 🚨 Alerts (%d) ", len(v.events)))
}

// formatEvent renders one alert as list main/secondary text with color markup.
func formatEvent(ev store.Event, received time.Time) (string, string) {
	ts := received.Format("15:04:05")

	switch e := ev.(type) {
	case store.Suspect:
		icon, color := severityStyle(e.Severity)
		main := fmt.Sprintf("%s %s [%s]INSIDER %s[-] %s", ts, icon, color, e.Severity, tview.Escape(truncate(e.Trade.DisplayTitle(), 40)))
		secondary := fmt.Sprintf("Wallet: %s | $%.0f @ %.1f%% | %s",
			store.MaskAddress(e.Stats.Address), e.Trade.ValueUSD(), e.Trade.Price*100, tview.Escape(e.Reason))
		return main, secondary
	case store.ClusterAlert:
		main := fmt.Sprintf("%s 👥 [fuchsia]CLUSTER[-] %s", ts, tview.Escape(truncate(e.Title, 40)))
		secondary := fmt.Sprintf("%d wallets | $%.0f | avg %.1f%% | window %s",
			e.WalletCount, e.TotalVolume, e.AvgPrice*100, formatDuration(e.WindowAge))
		return main, secondary
	case store.SpikeAlert:
		main := fmt.Sprintf("%s 📈 [aqua]SPIKE %.1fx[-] %s", ts, e.Ratio, tview.Escape(truncate(e.Title, 40)))
		secondary := fmt.Sprintf("$%.0f this hour vs $%.0f/h over %dh", e.CurrentVolume, e.AvgHourly, e.CompletedHours)
		return main, secondary
	default:
		return fmt.Sprintf("%s ❓ %s", ts, ev.Headline()), ""
	}
}

func severityStyle(s store.Severity) (string, string) {
	switch s {
	case store.SeverityHigh:
		return "🔴", "red"
	case store.SeverityMedium:
		return "🟠", "orange"
	default:
		return "🟢", "green"
	}
}
