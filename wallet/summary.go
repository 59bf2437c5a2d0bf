package wallet

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/raykavin/papertrade/core"
	"github.com/raykavin/papertrade/metric"
)

// AssetSummary aggregates the trade history of a single asset
type AssetSummary struct {
	AssetID     string
	Symbol      string
	TradeCount  int
	BuyCount    int
	SellCount   int
	VolumeUsd   float64
	FeesUsd     float64
	RealizedPnl []float64
}

// Profit returns the total realized profit of the asset
func (a AssetSummary) Profit() float64 {
	return lo.Sum(a.RealizedPnl)
}

// Summary is a performance report over a wallet and its trade history
type Summary struct {
	UserID      string
	BalanceUsd  float64
	EquityUsd   float64
	VolumeUsd   float64
	FeesUsd     float64
	RealizedPnl []float64
	Assets      []AssetSummary
}

// NewSummary builds the report from a wallet snapshot and its trade history
func NewSummary(wallet *core.Wallet, trades []*core.Trade, equityUsd float64) *Summary {
	summary := &Summary{
		UserID:     wallet.UserID,
		BalanceUsd: wallet.BalanceUsd,
		EquityUsd:  equityUsd,
	}

	byAsset := make(map[string]*AssetSummary)
	for _, trade := range trades {
		asset, ok := byAsset[trade.AssetID]
		if !ok {
			asset = &AssetSummary{AssetID: trade.AssetID, Symbol: trade.Symbol}
			byAsset[trade.AssetID] = asset
		}

		asset.TradeCount++
		if trade.IsBuy() {
			asset.BuyCount++
		} else {
			asset.SellCount++
		}

		asset.VolumeUsd += trade.GetValue()
		asset.FeesUsd += trade.FeeUsd

		if trade.RealizedPnlUsd != nil {
			asset.RealizedPnl = append(asset.RealizedPnl, *trade.RealizedPnlUsd)
			summary.RealizedPnl = append(summary.RealizedPnl, *trade.RealizedPnlUsd)
		}

		summary.VolumeUsd += trade.GetValue()
		summary.FeesUsd += trade.FeeUsd
	}

	summary.Assets = lo.Map(lo.Values(byAsset), func(asset *AssetSummary, _ int) AssetSummary {
		return *asset
	})
	sort.Slice(summary.Assets, func(i, j int) bool {
		return summary.Assets[i].AssetID < summary.Assets[j].AssetID
	})

	return summary
}

// Profit returns the total realized profit across all assets
func (s Summary) Profit() float64 {
	return lo.Sum(s.RealizedPnl)
}

// WinRate returns the fraction of closed trades with non-negative profit
func (s Summary) WinRate() float64 {
	return metric.WinRate(s.RealizedPnl)
}

// Payoff returns the average win to average loss ratio of closed trades
func (s Summary) Payoff() float64 {
	return metric.Payoff(s.RealizedPnl)
}

// ProfitFactor returns the gross win to gross loss ratio of closed trades
func (s Summary) ProfitFactor() float64 {
	return metric.ProfitFactor(s.RealizedPnl)
}

// String renders the report as text tables
func (s Summary) String() string {
	buffer := bytes.NewBuffer(nil)

	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Asset", "Trades", "Buys", "Sells", "Volume $", "Fees $", "Profit $"})
	for _, asset := range s.Assets {
		table.Append([]string{
			asset.Symbol,
			strconv.Itoa(asset.TradeCount),
			strconv.Itoa(asset.BuyCount),
			strconv.Itoa(asset.SellCount),
			fmt.Sprintf("%.2f", asset.VolumeUsd),
			fmt.Sprintf("%.4f", asset.FeesUsd),
			fmt.Sprintf("%.2f", asset.Profit()),
		})
	}
	table.SetFooter([]string{
		"TOTAL", "", "", "",
		fmt.Sprintf("%.2f", s.VolumeUsd),
		fmt.Sprintf("%.4f", s.FeesUsd),
		fmt.Sprintf("%.2f", s.Profit()),
	})
	table.Render()

	totals := tablewriter.NewWriter(buffer)
	totals.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	totals.AppendBulk([][]string{
		{"BALANCE $", fmt.Sprintf("%.2f", s.BalanceUsd)},
		{"EQUITY $", fmt.Sprintf("%.2f", s.EquityUsd)},
		{"CLOSED TRADES", strconv.Itoa(len(s.RealizedPnl))},
		{"WIN RATE", fmt.Sprintf("%.1f %%", s.WinRate()*100)},
		{"PAYOFF", fmt.Sprintf("%.3f", s.Payoff())},
		{"PROFIT FACTOR", fmt.Sprintf("%.3f", s.ProfitFactor())},
	})
	totals.Render()

	return buffer.String()
}

// PrintPnlHistogram writes a histogram of realized trade profits
func (s Summary) PrintPnlHistogram() string {
	// A histogram over fewer than two points has no bucket width
	if len(s.RealizedPnl) < 2 {
		return ""
	}

	buffer := bytes.NewBuffer(nil)
	hist := histogram.Hist(15, s.RealizedPnl)
	if err := histogram.Fprint(buffer, hist, histogram.Linear(10)); err != nil {
		return fmt.Sprintf("failed to render histogram: %v", err)
	}

	return buffer.String()
}
