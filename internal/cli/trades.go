package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mentor-desk/internal/journal"
	"mentor-desk/internal/models"
	"mentor-desk/internal/store"
)

const dateLayout = "2006-01-02"

// addTradesCommands adds trade journal commands.
func addTradesCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "trades",
		Aliases: []string{"journal"},
		Short:   "Trade journal",
		Long:    "Log, close, review and validate journaled trades.",
	}

	cmd.AddCommand(newTradesAddCmd(app))
	cmd.AddCommand(newTradesListCmd(app))
	cmd.AddCommand(newTradesShowCmd(app))
	cmd.AddCommand(newTradesCloseCmd(app))
	cmd.AddCommand(newTradesEditCmd(app))
	cmd.AddCommand(newTradesDeleteCmd(app))
	cmd.AddCommand(newTradesReviewCmd(app))
	cmd.AddCommand(newTradesValidateCmd(app))

	rootCmd.AddCommand(cmd)
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD or RFC 3339)", s)
	}
	return t.UTC(), nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// ============================================================================
// Filters
// ============================================================================

// tradeFilterFlags binds the trade filter flags shared by list and stats.
type tradeFilterFlags struct {
	pair     string
	side     string
	status   string
	source   string
	strategy string
	mentor   string
	from     string
	to       string
	search   string
	limit    int
}

func (f *tradeFilterFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.pair, "pair", "", "filter by pair")
	fs.StringVar(&f.side, "type", "", "filter by side (buy or sell)")
	fs.StringVar(&f.status, "status", "", "filter by status (win, loss, breakeven, pending)")
	fs.StringVar(&f.source, "source", "", "filter by source (demo, live, paper)")
	fs.StringVar(&f.strategy, "strategy", "", "filter by strategy")
	fs.StringVar(&f.mentor, "mentor", "", "filter by reviewing mentor")
	fs.StringVar(&f.from, "from", "", "first date (YYYY-MM-DD)")
	fs.StringVar(&f.to, "to", "", "last date, inclusive (YYYY-MM-DD)")
	fs.StringVar(&f.search, "search", "", "search pair, notes, strategy and tags")
}

func (f *tradeFilterFlags) filter() (store.TradeFilter, error) {
	filter := store.TradeFilter{
		Pair:     f.pair,
		Strategy: f.strategy,
		MentorID: f.mentor,
		Search:   f.search,
		Limit:    f.limit,
	}
	if f.side != "" {
		d, err := parseDirectionArg(f.side)
		if err != nil {
			return filter, err
		}
		filter.Type = d
	}
	if f.status != "" {
		st, err := models.ParseTradeStatus(f.status)
		if err != nil {
			return filter, err
		}
		filter.Status = st
	}
	if f.source != "" {
		src, err := models.ParseTradeSource(f.source)
		if err != nil {
			return filter, err
		}
		filter.Source = src
	}
	if f.from != "" {
		t, err := parseDate(f.from)
		if err != nil {
			return filter, err
		}
		filter.StartDate = t
	}
	if f.to != "" {
		t, err := parseDate(f.to)
		if err != nil {
			return filter, err
		}
		if len(f.to) == len(dateLayout) {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		filter.EndDate = t
	}
	return filter, nil
}

// ============================================================================
// Trade fields
// ============================================================================

// tradeFlags binds the editable trade fields shared by add and edit.
type tradeFlags struct {
	pair       string
	side       string
	entry      float64
	stopLoss   float64
	takeProfit float64
	exit       float64
	pnl        float64
	status     string
	date       string

	notes      string
	emotions   string
	strategy   string
	timeFrame  string
	market     string
	confidence int
	risk       float64
	size       float64
	duration   string
	tags       string
	source     string
	session    string
}

func (f *tradeFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.pair, "pair", "", "instrument, e.g. EURUSD or BTC/USDT")
	fs.StringVar(&f.side, "type", "", "buy or sell")
	fs.Float64Var(&f.entry, "entry", 0, "entry price")
	fs.Float64Var(&f.stopLoss, "sl", 0, "stop loss")
	fs.Float64Var(&f.takeProfit, "tp", 0, "take profit")
	fs.Float64Var(&f.exit, "exit", 0, "exit price")
	fs.Float64Var(&f.pnl, "pnl", 0, "realized P&L")
	fs.StringVar(&f.status, "status", "", "win, loss, breakeven or pending")
	fs.StringVar(&f.date, "date", "", "trade date (YYYY-MM-DD or RFC 3339)")
	fs.StringVar(&f.notes, "notes", "", "trade notes, checked by validate")
	fs.StringVar(&f.emotions, "emotions", "", "comma-separated emotions")
	fs.StringVar(&f.strategy, "strategy", "", "strategy name")
	fs.StringVar(&f.timeFrame, "timeframe", "", "chart time frame, e.g. M15")
	fs.StringVar(&f.market, "market", "", "market condition")
	fs.IntVar(&f.confidence, "confidence", 0, "confidence level 1-10")
	fs.Float64Var(&f.risk, "risk", 0, "amount risked")
	fs.Float64Var(&f.size, "size", 0, "position size")
	fs.StringVar(&f.duration, "duration", "", "trade duration, e.g. 2h")
	fs.StringVar(&f.tags, "tags", "", "comma-separated tags")
	fs.StringVar(&f.source, "source", "", "demo, live or paper")
	fs.StringVar(&f.session, "session", "", "session id")
}

func (f *tradeFlags) input(fs *pflag.FlagSet) (journal.TradeInput, error) {
	in := journal.TradeInput{
		Pair:            f.pair,
		Type:            models.Direction(strings.ToLower(f.side)),
		EntryPrice:      f.entry,
		StopLoss:        f.stopLoss,
		TakeProfit:      f.takeProfit,
		Status:          models.TradeStatus(strings.ToLower(f.status)),
		Notes:           f.notes,
		Emotions:        splitList(f.emotions),
		Strategy:        f.strategy,
		TimeFrame:       f.timeFrame,
		MarketCondition: f.market,
		ConfidenceLevel: f.confidence,
		RiskAmount:      f.risk,
		PositionSize:    f.size,
		TradeDuration:   f.duration,
		Tags:            splitList(f.tags),
		TradeSource:     models.TradeSource(strings.ToLower(f.source)),
		SessionID:       f.session,
	}
	if fs.Changed("exit") {
		in.ExitPrice = models.Float(f.exit)
	}
	if fs.Changed("pnl") {
		in.PnL = models.Float(f.pnl)
	}
	if f.date != "" {
		t, err := parseDate(f.date)
		if err != nil {
			return in, err
		}
		in.Date = t
	}
	return in, nil
}

func (f *tradeFlags) patch(fs *pflag.FlagSet) (journal.TradePatch, error) {
	var p journal.TradePatch
	str := func(name string, v string) *string {
		if fs.Changed(name) {
			return &v
		}
		return nil
	}
	num := func(name string, v float64) *float64 {
		if fs.Changed(name) {
			return &v
		}
		return nil
	}

	p.Pair = str("pair", f.pair)
	p.EntryPrice = num("entry", f.entry)
	p.StopLoss = num("sl", f.stopLoss)
	p.TakeProfit = num("tp", f.takeProfit)
	p.ExitPrice = num("exit", f.exit)
	p.PnL = num("pnl", f.pnl)
	p.Notes = str("notes", f.notes)
	p.Strategy = str("strategy", f.strategy)
	p.TimeFrame = str("timeframe", f.timeFrame)
	p.MarketCondition = str("market", f.market)
	p.TradeDuration = str("duration", f.duration)
	p.RiskAmount = num("risk", f.risk)
	p.PositionSize = num("size", f.size)

	if fs.Changed("type") {
		d := models.Direction(strings.ToLower(f.side))
		p.Type = &d
	}
	if fs.Changed("status") {
		st := models.TradeStatus(strings.ToLower(f.status))
		p.Status = &st
	}
	if fs.Changed("source") {
		src := models.TradeSource(strings.ToLower(f.source))
		p.TradeSource = &src
	}
	if fs.Changed("confidence") {
		p.ConfidenceLevel = &f.confidence
	}
	if fs.Changed("emotions") {
		list := splitList(f.emotions)
		p.Emotions = &list
	}
	if fs.Changed("tags") {
		list := splitList(f.tags)
		p.Tags = &list
	}
	if fs.Changed("date") {
		t, err := parseDate(f.date)
		if err != nil {
			return p, err
		}
		p.Date = &t
	}
	return p, nil
}

// ============================================================================
// Commands
// ============================================================================

func newTradesAddCmd(app *App) *cobra.Command {
	var flags tradeFlags
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Log a trade",
		Example: `  mentor trades add --pair EURUSD --type buy --entry 1.0850 --sl 1.0820 --notes "Liquidity sweep of Asia low"`,
		Args:    cobra.NoArgs,
	}
	cmd.RunE = app.run(func(ctx context.Context, j *journal.Journal, output *Output, args []string) error {
		in, err := flags.input(cmd.Flags())
		if err != nil {
			return err
		}
		trade, err := j.Trades.Log(ctx, in)
		if err != nil {
			return err
		}
		if output.IsJSON() {
			return output.JSON(trade)
		}
		output.Success("✓ Logged %s %s @ %s (%s)", strings.ToUpper(string(trade.Type)), trade.Pair, FormatPrice(trade.EntryPrice), trade.ID)
		return nil
	})
	flags.bind(cmd.Flags())
	_ = cmd.MarkFlagRequired("pair")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("entry")
	return cmd
}

func newTradesListCmd(app *App) *cobra.Command {
	var filters tradeFilterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journaled trades, newest first",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, j *journal.Journal, output *Output, args []string) error {
			filter, err := filters.filter()
			if err != nil {
				return err
			}
			trades, err := j.Trades.List(ctx, filter)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Info("No trades match.")
				return nil
			}
			renderTrades(output, trades)
			return nil
		}),
	}
	filters.bind(cmd.Flags())
	cmd.Flags().IntVar(&filters.limit, "limit", 50, "maximum trades to show (0 for all)")
	return cmd
}

func renderTrades(output *Output, trades []models.TradeEntry) {
	f := output.Formatter()
	table := NewTable(output, "Date", "Pair", "Side", "Entry", "Exit", "P&L", "Status", "Check", "Review", "ID")
	for _, t := range trades {
		table.AddRow(
			f.Date(t.Date),
			t.Pair,
			strings.ToUpper(string(t.Type)),
			FormatPrice(t.EntryPrice),
			FormatOptionalPrice(t.ExitPrice),
			pnlCell(output, t.PnL),
			output.Status(string(t.Status)),
			output.Status(string(t.ValidationResult)),
			output.Status(string(t.AdminReviewStatus)),
			t.ID,
		)
	}
	table.Render()
}

func pnlCell(output *Output, pnl *float64) string {
	if pnl == nil {
		return "-"
	}
	return output.FormatPnL(*pnl)
}

func newTradesShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one trade",
		Args:  cobra.ExactArgs(1),
		RunE: app.run(func(ctx context.Context, j *journal.Journal, output *Output, args []string) error {
			trade, err := j.Trades.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(trade)
			}
			renderTrade(output, trade)
			return nil
		}),
	}
}

func renderTrade(output *Output, t models.TradeEntry) {
	f := output.Formatter()
	output.Bold("%s %s  %s", strings.ToUpper(string(t.Type)), t.Pair, f.Date(t.Date))
	output.Printf("  Entry:       %s   SL: %s   TP: %s\n", FormatPrice(t.EntryPrice), FormatPrice(t.StopLoss), FormatPrice(t.TakeProfit))
	output.Printf("  Exit:        %s\n", FormatOptionalPrice(t.ExitPrice))
	output.Printf("  P&L:         %s\n", pnlCell(output, t.PnL))
	output.Printf("  Status:      %s\n", output.Status(string(t.Status)))
	output.Printf("  Source:      %s\n", t.TradeSource)
	if t.Strategy != "" || t.TimeFrame != "" {
		output.Printf("  Strategy:    %s %s\n", t.Strategy, t.TimeFrame)
	}
	if t.ConfidenceLevel > 0 {
		output.Printf("  Confidence:  %d/10\n", t.ConfidenceLevel)
	}
	if len(t.Tags) > 0 {
		output.Printf("  Tags:        %s\n", strings.Join(t.Tags, ", "))
	}
	if len(t.Emotions) > 0 {
		output.Printf("  Emotions:    %s\n", strings.Join(t.Emotions, ", "))
	}
	if t.Notes != "" {
		output.Printf("  Notes:       %s\n", t.Notes)
	}
	output.Printf("  Checklist:   %s\n", output.Status(string(t.ValidationResult)))
	output.Printf("  Review:      %s", output.Status(string(t.AdminReviewStatus)))
	if t.MentorID != "" {
		output.Printf(" by %s", t.MentorID)
	}
	if t.ReviewTimestamp != nil {
		output.Printf(" on %s", f.Date(*t.ReviewTimestamp))
	}
	output.Println()
	if t.AdminNotes != "" {
		output.Printf("  Mentor:      %s\n", t.AdminNotes)
	}
}

func newTradesCloseCmd(app *App) *cobra.Command {
	var (
		exit   float64
		pnl    float64
		status string
	)
	cmd := &cobra.Command{
		Use:     "close <id>",
		Short:   "Record the exit of an open trade",
		Example: `  mentor trades close 3f2c... --exit 1.0900 --pnl 50`,
		Args:    cobra.ExactArgs(1),
	}
	cmd.RunE = app.run(func(ctx context.Context, j *journal.Journal, output *Output, args []string) error {
		in := journal.CloseInput{
			PnL:    pnl,
			Status: models.TradeStatus(strings.ToLower(status)),
		}
		if cmd.Flags().Changed("exit") {
			in.ExitPrice = models.Float(exit)
		}
		trade, err := j.Trades.Close(ctx, args[0], in)
		if err != nil {
			return err
		}
		if output.IsJSON() {
			return output.JSON(trade)
		}
		output.Success("✓ Closed %s %s: %s (%s)", trade.Pair, trade.ID, output.FormatPnL(trade.PnLValue()), trade.Status)
		return nil
	})
	cmd.Flags().Float64Var(&exit, "exit", 0, "exit price")
	cmd.Flags().Float64Var(&pnl, "pnl", 0, "realized P&L")
	cmd.Flags().StringVar(&status, "status", "", "explicit status when status derivation is off")
	_ = cmd.MarkFlagRequired("pnl")
	return cmd
}

func newTradesEditCmd(app *App) *cobra.Command {
	var flags tradeFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a trade's fields",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = app.run(func(ctx context.Context, j *journal.Journal, output *Output, args []string) error {
		patch, err := flags.patch(cmd.Flags())
		if err != nil {
			return err
		}
		trade, err := j.Trades.Update(ctx, args[0], patch)
		if err != nil {
			return err
		}
		if output.IsJSON() {
			return output.JSON(trade)
		}
		output.Success("✓ Updated trade %s", trade.ID)
		return nil
	})
	flags.bind(cmd.Flags())
	return cmd
}

func newTradesDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a trade",
		Args:  cobra.ExactArgs(1),
		RunE: app.run(func(ctx context.Context, j *journal.Journal, output *Output, args []string) error {
			if err := j.Trades.Delete(ctx, args[0]); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"deleted": args[0]})
			}
			output.Success("✓ Deleted trade %s", args[0])
			return nil
		}),
	}
}

func newTradesReviewCmd(app *App) *cobra.Command {
	var (
		status string
		notes  string
		mentor string
	)
	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Record a mentor review",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = app.run(func(ctx context.Context, j *journal.Journal, output *Output, args []string) error {
		in := journal.ReviewInput{
			Status:   models.ReviewStatus(strings.ToLower(status)),
			MentorID: mentor,
		}
		if cmd.Flags().Changed("notes") {
			in.Notes = &notes
		}
		trade, err := j.Trades.Review(ctx, args[0], in)
		if err != nil {
			return err
		}
		if output.IsJSON() {
			return output.JSON(trade)
		}
		output.Success("✓ Trade %s marked %s", trade.ID, trade.AdminReviewStatus)
		return nil
	})
	cmd.Flags().StringVar(&status, "status", string(models.ReviewReviewed), "reviewed, flagged or pending")
	cmd.Flags().StringVar(&notes, "notes", "", "mentor notes")
	cmd.Flags().StringVar(&mentor, "mentor", "", "reviewing mentor id (default from config)")
	return cmd
}

func newTradesValidateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <id>",
		Short: "Check a trade's notes against its checklist",
		Args:  cobra.ExactArgs(1),
		RunE: app.run(func(ctx context.Context, j *journal.Journal, output *Output, args []string) error {
			trade, report, err := j.Trades.Validate(ctx, args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"trade":  trade,
					"report": report,
				})
			}
			renderReport(output, report)
			output.Println()
			output.Printf("Validation result for %s: %s\n", trade.ID, output.Status(string(trade.ValidationResult)))
			return nil
		}),
	}
}
