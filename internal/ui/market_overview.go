package ui

import (
	"fmt"
	"sort"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyinsider/tracker/internal/detector"
	"github.com/polyinsider/tracker/internal/metrics"
)

var clusterHeaders = []string{"Market", "Wallets", "Volume", "Avg", "Age"}

// MarketOverviewView shows markets with an open cluster window.
type MarketOverviewView struct {
	table *tview.Table
}

// NewMarketOverviewView creates a new cluster board.
func NewMarketOverviewView() *MarketOverviewView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Active Clusters ").SetBorder(true)
	setHeader(table, clusterHeaders)

	return &MarketOverviewView{
		table: table,
	}
}

// Widget returns the tview primitive.
func (v *MarketOverviewView) Widget() tview.Primitive {
	return v.table
}

// Update refreshes the view with the snapshot's clusters.
func (v *MarketOverviewView) Update(snapshot metrics.MetricsSnapshot) {
	v.table.Clear()
	setHeader(v.table, clusterHeaders)

	clusters := sortClusters(snapshot.Clusters)
	limit := min(len(clusters), 10)

	for i, c := range clusters[:limit] {
		row := i + 1
		color := tcell.ColorWhite
		if c.Alerted {
			color = tcell.ColorFuchsia
		}

		cells := []string{
			truncate(c.Title, 30),
			fmt.Sprintf("%d", c.WalletCount),
			fmt.Sprintf("$%.0f", c.Volume),
			fmt.Sprintf("%.3f", c.AvgPrice),
			formatDuration(c.Age),
		}
		for col, text := range cells {
			v.table.SetCell(row, col, tview.NewTableCell(text).
				SetAlign(tview.AlignLeft).
				SetTextColor(color).
				SetExpansion(1))
		}
	}

	v.table.SetTitle(fmt.Sprintf(" Active Clusters (%d, %d alerted markets) ", len(clusters), snapshot.AlertedMarkets))
}

// sortClusters orders clusters by wallet count, then volume.
func sortClusters(views []detector.ClusterView) []detector.ClusterView {
	out := append([]detector.ClusterView(nil), views...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WalletCount != out[j].WalletCount {
			return out[i].WalletCount > out[j].WalletCount
		}
		return out[i].Volume > out[j].Volume
	})
	return out
}
