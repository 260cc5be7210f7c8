package cli

import (
	"context"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"mentor-desk/internal/analytics"
	"mentor-desk/internal/journal"
)

// addStatsCommands adds the performance report command.
func addStatsCommands(rootCmd *cobra.Command, app *App) {
	var filters tradeFilterFlags
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Performance summary of journaled trades",
		Long: `Summarize journaled trades: win rate, P&L, profit factor and breakdowns
by strategy, time frame and pair.

Win rate counts wins against wins plus losses; breakeven and pending trades
are left out. The profit factor is undefined when there are no losing trades.`,
		Args: cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, j *journal.Journal, output *Output, args []string) error {
			filter, err := filters.filter()
			if err != nil {
				return err
			}
			summary, err := j.Trades.Summary(ctx, filter)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(summary)
			}
			renderSummary(output, summary)
			return nil
		}),
	}
	filters.bind(cmd.Flags())
	rootCmd.AddCommand(cmd)
}

func renderSummary(output *Output, s analytics.PerformanceSummary) {
	f := output.Formatter()

	output.Bold("Performance")
	if s.Total == 0 {
		output.Info("No trades match.")
		return
	}
	output.Printf("  Trades:         %d (%d closed, %d pending)\n", s.Total, s.ClosedTrades, s.Total-s.ClosedTrades)
	output.Printf("  Wins/Losses:    %s / %s / %d breakeven\n",
		output.Green(strconv.Itoa(s.Wins)), output.Red(strconv.Itoa(s.Losses)), s.Breakeven)
	output.Printf("  Win rate:       %s\n", FormatWinRate(s.WinRate))
	output.Printf("  Total P&L:      %s\n", output.FormatPnL(s.TotalPnL))
	output.Printf("  Average P&L:    %s\n", output.FormatPnL(s.AvgPnL))
	output.Printf("  Largest win:    %s\n", f.Currency(s.LargestWin))
	output.Printf("  Largest loss:   %s\n", f.Currency(s.LargestLoss))
	output.Printf("  Profit factor:  %s\n", FormatProfitFactor(s.ProfitFactor))

	renderGroups(output, "By strategy", "Strategy", s.StrategyStats)
	renderGroups(output, "By time frame", "Time frame", s.TimeFrameStats)
	renderGroups(output, "By pair", "Pair", s.PairStats)
}

func renderGroups(output *Output, title, label string, stats map[string]analytics.GroupStats) {
	if len(stats) == 0 {
		return
	}
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		// Unknown last, otherwise by pnl descending.
		if (keys[i] == analytics.UnknownGroup) != (keys[j] == analytics.UnknownGroup) {
			return keys[j] == analytics.UnknownGroup
		}
		if stats[keys[i]].PnL != stats[keys[j]].PnL {
			return stats[keys[i]].PnL > stats[keys[j]].PnL
		}
		return keys[i] < keys[j]
	})

	output.Println()
	output.Bold(title)
	table := NewTable(output, label, "Trades", "W", "L", "BE", "Win rate", "P&L")
	for _, k := range keys {
		g := stats[k]
		table.AddRow(
			k,
			strconv.Itoa(g.Total),
			strconv.Itoa(g.Wins),
			strconv.Itoa(g.Losses),
			strconv.Itoa(g.Breakeven),
			FormatWinRate(g.WinRate()),
			output.FormatPnL(g.PnL),
		)
	}
	table.Render()
}
