package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"mentor-desk/internal/models"
	"mentor-desk/internal/store"
)

// Property: with status derivation on, a closed trade's status always
// follows the sign of its pnl, whatever status the caller asked for.
func TestProperty_DerivedStatusFollowsPnL(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	ds, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "mentor.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer ds.Close()
	svc := New(ds).Trades
	ctx := context.Background()

	statuses := []models.TradeStatus{"", models.StatusWin, models.StatusLoss, models.StatusBreakeven, models.StatusPending}

	properties.Property("status matches pnl sign", prop.ForAll(
		func(pnl float64, statusIdx int) bool {
			trade, err := svc.Log(ctx, TradeInput{Pair: "EURUSD", Type: models.DirectionBuy, EntryPrice: 1.1})
			if err != nil {
				return false
			}
			closed, err := svc.Close(ctx, trade.ID, CloseInput{PnL: pnl, Status: statuses[statusIdx]})
			if err != nil {
				return false
			}
			stored, err := svc.Get(ctx, trade.ID)
			if err != nil {
				return false
			}
			want := models.StatusFromPnL(pnl)
			return closed.Status == want && stored.Status == want && stored.IsClosed()
		},
		gen.Float64Range(-1000, 1000),
		gen.IntRange(0, len(statuses)-1),
	))

	properties.TestingRun(t)
}

// Property: the summary classifies every logged trade by its derived status.
func TestProperty_SummaryMatchesLoggedTrades(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("summary counts every logged trade", prop.ForAll(
		func(pnls []float64) bool {
			ds, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "mentor.db"))
			if err != nil {
				return false
			}
			defer ds.Close()
			svc := New(ds).Trades
			ctx := context.Background()

			wins, losses := 0, 0
			for _, p := range pnls {
				if _, err := svc.Log(ctx, TradeInput{
					Pair: "GBPUSD", Type: models.DirectionSell, EntryPrice: 1.3, PnL: models.Float(p),
				}); err != nil {
					return false
				}
				switch models.StatusFromPnL(p) {
				case models.StatusWin:
					wins++
				case models.StatusLoss:
					losses++
				}
			}

			summary, err := svc.Summary(ctx, store.TradeFilter{})
			if err != nil {
				return false
			}
			return summary.Total == len(pnls) &&
				summary.ClosedTrades == len(pnls) &&
				summary.Wins == wins &&
				summary.Losses == losses &&
				summary.ProfitFactor.Defined() == (losses > 0)
		},
		gen.SliceOfN(10, gen.Float64Range(-500, 500)),
	))

	properties.TestingRun(t)
}
