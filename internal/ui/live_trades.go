package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyinsider/tracker/internal/metrics"
	"github.com/polyinsider/tracker/internal/store"
)

const maxTradeRows = 100

var liveTradeHeaders = []string{"Time", "Market", "Outcome", "Side", "Price", "Value", "Wallet"}

// LiveTradesView displays the most recent new trades.
type LiveTradesView struct {
	table   *tview.Table
	maxRows int
}

// NewLiveTradesView creates a new live trades view.
func NewLiveTradesView() *LiveTradesView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Live Trades ").SetBorder(true)
	setHeader(table, liveTradeHeaders)

	return &LiveTradesView{
		table:   table,
		maxRows: maxTradeRows,
	}
}

// Widget returns the tview primitive.
func (v *LiveTradesView) Widget() tview.Primitive {
	return v.table
}

// Update redraws the table from the snapshot's recent trades.
func (v *LiveTradesView) Update(snapshot metrics.MetricsSnapshot) {
	v.table.Clear()
	setHeader(v.table, liveTradeHeaders)

	trades := snapshot.RecentTrades
	if len(trades) > v.maxRows {
		trades = trades[:v.maxRows]
	}

	for i, trade := range trades {
		for col, cell := range tradeCells(trade) {
			v.table.SetCell(i+1, col, cell)
		}
	}

	v.table.SetTitle(fmt.Sprintf(" Live Trades (%d new, %.2f/s) ", snapshot.TradesNew, snapshot.TradeRate))
}

func tradeCells(trade store.Trade) []*tview.TableCell {
	side := trade.Side
	if side == "" {
		side = "?"
	}
	sideColor := tcell.ColorRed
	if trade.IsAggressiveBuy() {
		sideColor = tcell.ColorGreen
	}

	valueColor := tcell.ColorWhite
	if trade.ValueUSD() >= 5000 {
		valueColor = tcell.ColorYellow
	}

	return []*tview.TableCell{
		tview.NewTableCell(trade.Time().Format("15:04:05")),
		tview.NewTableCell(truncate(trade.DisplayTitle(), 36)).SetExpansion(1),
		tview.NewTableCell(truncate(trade.DisplayOutcome(), 12)),
		tview.NewTableCell(side).SetTextColor(sideColor),
		tview.NewTableCell(fmt.Sprintf("%.3f", trade.Price)).SetAlign(tview.AlignRight),
		tview.NewTableCell(fmt.Sprintf("$%.0f", trade.ValueUSD())).SetAlign(tview.AlignRight).SetTextColor(valueColor),
		tview.NewTableCell(store.MaskAddress(trade.ProxyWallet)),
	}
}
