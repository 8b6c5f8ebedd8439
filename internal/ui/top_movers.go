package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyinsider/tracker/internal/metrics"
)

var moverHeaders = []string{"Market", "Ratio", "This Hour", "Avg/h", "Hours"}

// TopMoversView ranks markets by current-hour volume against their average.
type TopMoversView struct {
	table *tview.Table
}

// NewTopMoversView creates a new volume leaders view.
func NewTopMoversView() *TopMoversView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Volume Leaders ").SetBorder(true)
	setHeader(table, moverHeaders)

	return &TopMoversView{
		table: table,
	}
}

// Widget returns the tview primitive.
func (v *TopMoversView) Widget() tview.Primitive {
	return v.table
}

// Update refreshes the display. Volumes arrive already ranked.
func (v *TopMoversView) Update(snapshot metrics.MetricsSnapshot) {
	v.table.Clear()
	setHeader(v.table, moverHeaders)

	volumes := snapshot.Volumes
	limit := min(len(volumes), 10)

	if limit == 0 {
		v.table.SetCell(1, 0, tview.NewTableCell("No data yet...").
			SetAlign(tview.AlignCenter).
			SetExpansion(1))
		return
	}

	for i, vol := range volumes[:limit] {
		row := i + 1

		ratio := "-"
		ratioColor := tcell.ColorWhite
		if vol.CompletedHours > 0 {
			ratio = fmt.Sprintf("%.1fx", vol.Ratio)
			switch {
			case vol.Alerted:
				ratioColor = tcell.ColorRed
			case vol.Ratio > 1:
				ratioColor = tcell.ColorGreen
			}
		}

		v.table.SetCell(row, 0, tview.NewTableCell(truncate(vol.Title, 25)).SetAlign(tview.AlignLeft))
		v.table.SetCell(row, 1, tview.NewTableCell(ratio).SetAlign(tview.AlignRight).SetTextColor(ratioColor))
		v.table.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("$%.0f", vol.CurrentVolume)).SetAlign(tview.AlignRight))
		v.table.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("$%.0f", vol.AvgHourly)).SetAlign(tview.AlignRight))
		v.table.SetCell(row, 4, tview.NewTableCell(fmt.Sprintf("%d", vol.CompletedHours)).SetAlign(tview.AlignRight))
	}

	v.table.SetTitle(fmt.Sprintf(" Volume Leaders (%d markets) ", len(volumes)))
}
