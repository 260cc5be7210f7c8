package analytics

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"mentor-desk/internal/models"
)

var (
	testStatuses   = []models.TradeStatus{models.StatusWin, models.StatusLoss, models.StatusBreakeven, models.StatusPending}
	testStrategies = []string{"", "Breakout", "Reversal", "Trend"}
	testPairs      = []string{"", "EURUSD", "GBPJPY", "XAUUSD"}
)

// buildTrades turns generated codes and cents into trades. A negative cent
// value stands for a missing pnl.
func buildTrades(codes []int, cents []int64) []models.TradeEntry {
	trades := make([]models.TradeEntry, len(codes))
	for i, code := range codes {
		t := models.TradeEntry{
			Status:    testStatuses[code%len(testStatuses)],
			Strategy:  testStrategies[(code/4)%len(testStrategies)],
			Pair:      testPairs[(code/16)%len(testPairs)],
			TimeFrame: testPairs[(code/8)%len(testPairs)],
		}
		if i < len(cents) && cents[i] >= 0 {
			pnl := float64(cents[i]-50000) / 100
			t.PnL = &pnl
		}
		trades[i] = t
	}
	return trades
}

func propertyParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())
	return parameters
}

// Property: permuting the trade list never changes the summary.
func TestProperty_SummarizeOrderIndependent(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("summary is invariant under permutation", prop.ForAll(
		func(codes []int, cents []int64, seed int64) bool {
			trades := buildTrades(codes, cents)
			shuffled := append([]models.TradeEntry(nil), trades...)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			return reflect.DeepEqual(Summarize(trades), Summarize(shuffled))
		},
		gen.SliceOf(gen.IntRange(0, 63)),
		gen.SliceOf(gen.Int64Range(-1, 100000)),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// Property: summaries are idempotent and internally consistent.
func TestProperty_SummarizeInvariants(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("counts and extremes are consistent", prop.ForAll(
		func(codes []int, cents []int64) bool {
			trades := buildTrades(codes, cents)
			s := Summarize(trades)
			if !reflect.DeepEqual(s, Summarize(trades)) {
				return false
			}
			if s.Total != len(trades) || s.ClosedTrades != s.Wins+s.Losses+s.Breakeven {
				return false
			}
			if s.WinRate < 0 || s.WinRate > 100 {
				return false
			}
			if s.LargestWin < 0 || s.LargestLoss > 0 {
				return false
			}
			if v, ok := s.ProfitFactor.Value(); ok && (math.IsNaN(v) || math.IsInf(v, 0) || v < 0) {
				return false
			}
			if math.IsNaN(s.AvgPnL) || math.IsInf(s.AvgPnL, 0) {
				return false
			}

			withPnL := 0
			for _, tr := range trades {
				if tr.PnL != nil && tr.Status != models.StatusPending {
					withPnL++
				}
			}
			if s.ClosedTrades != withPnL {
				return false
			}

			groupTotal := 0
			for _, g := range s.StrategyStats {
				groupTotal += g.Total
			}
			return groupTotal == s.Total
		},
		gen.SliceOf(gen.IntRange(0, 63)),
		gen.SliceOf(gen.Int64Range(-1, 100000)),
	))

	properties.TestingRun(t)
}
