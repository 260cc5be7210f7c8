// Package analytics derives trading-performance statistics from a list of
// journaled trades. Everything here is a pure function of its input.
package analytics

import (
	"math"

	"github.com/shopspring/decimal"

	"mentor-desk/internal/models"
)

// UnknownGroup is the group key used when a trade has no value for the
// grouped field.
const UnknownGroup = "Unknown"

// GroupStats aggregates the trades sharing one strategy, time frame or pair.
type GroupStats struct {
	Total     int     `json:"total"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	Breakeven int     `json:"breakeven"`
	PnL       float64 `json:"pnl"`
}

// WinRate returns the group's win rate as a rounded percentage. Like the
// summary win rate, breakeven trades are left out of the denominator.
func (g GroupStats) WinRate() int {
	return percent(g.Wins, g.Wins+g.Losses)
}

// PerformanceSummary is recomputed from scratch on every call and never stored.
type PerformanceSummary struct {
	Total        int          `json:"total"`
	Wins         int          `json:"wins"`
	Losses       int          `json:"losses"`
	Breakeven    int          `json:"breakeven"`
	ClosedTrades int          `json:"closedTrades"`
	WinRate      int          `json:"winRate"`
	TotalPnL     float64      `json:"totalPnL"`
	AvgPnL       float64      `json:"avgPnL"`
	LargestWin   float64      `json:"largestWin"`
	LargestLoss  float64      `json:"largestLoss"`
	ProfitFactor ProfitFactor `json:"profitFactor"`

	StrategyStats  map[string]GroupStats `json:"strategyStats"`
	TimeFrameStats map[string]GroupStats `json:"timeFrameStats"`
	PairStats      map[string]GroupStats `json:"pairStats"`
}

// groupAcc accumulates a group with an exact decimal pnl sum.
type groupAcc struct {
	stats GroupStats
	pnl   decimal.Decimal
}

type groups map[string]*groupAcc

func (g groups) add(key string, t models.TradeEntry, pnl decimal.Decimal) {
	if key == "" {
		key = UnknownGroup
	}
	acc, ok := g[key]
	if !ok {
		acc = &groupAcc{}
		g[key] = acc
	}
	acc.stats.Total++
	switch classify(t) {
	case models.StatusWin:
		acc.stats.Wins++
	case models.StatusLoss:
		acc.stats.Losses++
	case models.StatusBreakeven:
		acc.stats.Breakeven++
	}
	acc.pnl = acc.pnl.Add(pnl)
}

func (g groups) result() map[string]GroupStats {
	out := make(map[string]GroupStats, len(g))
	for key, acc := range g {
		s := acc.stats
		s.PnL = acc.pnl.InexactFloat64()
		out[key] = s
	}
	return out
}

// classify returns the outcome a trade counts toward. Trades without a pnl
// are not classified whatever their status.
func classify(t models.TradeEntry) models.TradeStatus {
	if t.PnL == nil {
		return models.StatusPending
	}
	return t.Status
}

// Summarize computes a PerformanceSummary in a single pass.
//
// Trades are classified by status; pending trades only count towards Total.
// WinRate is wins over decided trades (wins+losses); breakevens count as
// closed for AvgPnL but neither win nor lose.
// A missing pnl adds 0 to sums, never qualifies as a largest win or loss,
// and leaves the trade out of win, loss and breakeven counts.
// P&L sums are exact decimal sums, so the result does not depend on the
// order of trades.
func Summarize(trades []models.TradeEntry) PerformanceSummary {
	var (
		sum                     PerformanceSummary
		total, winSum, lossSum  decimal.Decimal
		largestWin, largestLoss float64
	)
	strategy, timeFrame, pair := groups{}, groups{}, groups{}

	for _, t := range trades {
		sum.Total++

		pnl := decimal.Zero
		if t.PnL != nil && !math.IsNaN(*t.PnL) && !math.IsInf(*t.PnL, 0) {
			pnl = decimal.NewFromFloat(*t.PnL)
			if *t.PnL > largestWin {
				largestWin = *t.PnL
			}
			if *t.PnL < largestLoss {
				largestLoss = *t.PnL
			}
		}
		total = total.Add(pnl)

		switch classify(t) {
		case models.StatusWin:
			sum.Wins++
			winSum = winSum.Add(pnl)
		case models.StatusLoss:
			sum.Losses++
			lossSum = lossSum.Add(pnl)
		case models.StatusBreakeven:
			sum.Breakeven++
		}

		strategy.add(t.Strategy, t, pnl)
		timeFrame.add(t.TimeFrame, t, pnl)
		pair.add(t.Pair, t, pnl)
	}

	sum.ClosedTrades = sum.Wins + sum.Losses + sum.Breakeven
	sum.WinRate = percent(sum.Wins, sum.Wins+sum.Losses)
	sum.TotalPnL = total.InexactFloat64()
	if sum.ClosedTrades > 0 {
		sum.AvgPnL = total.Div(decimal.NewFromInt(int64(sum.ClosedTrades))).Round(2).InexactFloat64()
	}
	sum.LargestWin = largestWin
	sum.LargestLoss = largestLoss

	if lossSum.IsZero() {
		sum.ProfitFactor = UndefinedProfitFactor()
	} else {
		sum.ProfitFactor = DefinedProfitFactor(winSum.Div(lossSum.Abs()).Round(2).InexactFloat64())
	}

	sum.StrategyStats = strategy.result()
	sum.TimeFrameStats = timeFrame.result()
	sum.PairStats = pair.result()
	return sum
}

// percent returns round(part/whole*100), or 0 for an empty whole.
func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}
