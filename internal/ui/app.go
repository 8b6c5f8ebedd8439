// Package ui provides terminal user interface components.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyinsider/tracker/internal/metrics"
	"github.com/polyinsider/tracker/internal/store"
)

// DefaultRefreshRate is how often snapshot-driven views redraw.
const DefaultRefreshRate = 500 * time.Millisecond

// App is the main TUI application.
type App struct {
	app    *tview.Application
	layout *tview.Flex

	// Views
	clusterBoard   *MarketOverviewView
	alertFeed      *SignalAlerterView
	liveTrades     *LiveTradesView
	statsDashboard *StatsDashboardView
	topMovers      *TopMoversView

	// Data sources
	eventChan      <-chan store.Event
	eventCap       int
	metricsTracker *metrics.MetricsTracker
	refreshRate    time.Duration
	onReset        func()

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates a new TUI application. onReset is bound to the 'x' key and
// may be nil.
func NewApp(events chan store.Event, tracker *metrics.MetricsTracker, refreshRate time.Duration, onReset func()) *App {
	if refreshRate <= 0 {
		refreshRate = DefaultRefreshRate
	}
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		app:            tview.NewApplication(),
		eventChan:      events,
		eventCap:       cap(events),
		metricsTracker: tracker,
		refreshRate:    refreshRate,
		onReset:        onReset,
		ctx:            ctx,
		cancel:         cancel,
	}

	app.clusterBoard = NewMarketOverviewView()
	app.alertFeed = NewSignalAlerterView()
	app.liveTrades = NewLiveTradesView()
	app.statsDashboard = NewStatsDashboardView()
	app.topMovers = NewTopMoversView()

	app.setupLayout()
	app.setupKeyboard()

	return app
}

// setupLayout creates the 5-panel layout.
func (a *App) setupLayout() {
	// Top row: Active Clusters (left) | Alerts (right)
	topRow := tview.NewFlex().
		AddItem(a.clusterBoard.Widget(), 0, 1, false).
		AddItem(a.alertFeed.Widget(), 0, 2, false)

	middleRow := a.liveTrades.Widget()

	// Bottom row: Poll Stats (left) | Volume Leaders (right)
	bottomRow := tview.NewFlex().
		AddItem(a.statsDashboard.Widget(), 0, 1, false).
		AddItem(a.topMovers.Widget(), 0, 1, false)

	a.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 2, false).
		AddItem(middleRow, 0, 3, false).
		AddItem(bottomRow, 0, 2, false)

	a.app.SetRoot(a.layout, true)
}

// setupKeyboard configures keyboard shortcuts.
func (a *App) setupKeyboard() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			a.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q', 'Q':
				a.Stop()
				return nil
			case 'r', 'R':
				a.refresh()
				return nil
			case 'x', 'X':
				if a.onReset != nil {
					a.onReset()
				}
				return nil
			}
		}
		return event
	})
}

// Run starts the TUI application and blocks until the user quits or ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			a.Stop()
		case <-a.ctx.Done():
		}
	}()
	go a.processEvents()
	go a.updateLoop()

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("app run failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the application.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// processEvents reads alerts from the dispatcher's channel sink.
func (a *App) processEvents() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case ev, ok := <-a.eventChan:
			if !ok {
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.alertFeed.AddEvent(ev)
			})
		}
	}
}

// updateLoop periodically refreshes views with metrics data.
func (a *App) updateLoop() {
	ticker := time.NewTicker(a.refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.metricsTracker.SetEventBuffer(len(a.eventChan), a.eventCap)
			snapshot := a.metricsTracker.Snapshot()

			a.app.QueueUpdateDraw(func() {
				a.update(snapshot)
			})
		}
	}
}

func (a *App) update(snapshot metrics.MetricsSnapshot) {
	a.clusterBoard.Update(snapshot)
	a.liveTrades.Update(snapshot)
	a.statsDashboard.Update(snapshot)
	a.topMovers.Update(snapshot)
}

// refresh manually refreshes all views.
func (a *App) refresh() {
	snapshot := a.metricsTracker.Snapshot()

	a.app.QueueUpdateDraw(func() {
		a.update(snapshot)
		a.alertFeed.Refresh()
	})
}

// setHeader writes a secondary-colored header row.
func setHeader(table *tview.Table, headers []string) {
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false).
			SetExpansion(1)
		table.SetCell(0, col, cell)
	}
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
