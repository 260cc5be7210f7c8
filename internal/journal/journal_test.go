package journal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentor-desk/internal/analytics"
	apperrors "mentor-desk/internal/errors"
	"mentor-desk/internal/models"
	"mentor-desk/internal/rules"
	"mentor-desk/internal/security"
	"mentor-desk/internal/store"
	"mentor-desk/internal/stream"
)

var testNow = time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)

// recordingFeed captures published changes synchronously.
type recordingFeed struct {
	mu      sync.Mutex
	changes []store.Change
}

func (f *recordingFeed) Publish(c store.Change) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, c)
}

func (f *recordingFeed) Subscribe(topic string, handler store.ChangeHandler) store.Subscription {
	return store.NopFeed{}.Subscribe(topic, handler)
}

func (f *recordingFeed) kinds(topic string) []store.ChangeKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.ChangeKind
	for _, c := range f.changes {
		if c.Topic == topic {
			out = append(out, c.Kind)
		}
	}
	return out
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func newTestJournal(t *testing.T, opts ...Option) (*Journal, *store.SQLiteStore) {
	t.Helper()
	ds, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "mentor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })

	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(sequentialIDs("id")),
	}
	return New(ds, append(base, opts...)...), ds
}

// ============================================================================
// Rules
// ============================================================================

func TestRuleServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	feed := &recordingFeed{}
	j, _ := newTestJournal(t, WithFeed(feed))

	sweep, err := j.Rules.Add(ctx, models.DirectionBuy, "Wait for liquidity sweep", true)
	require.NoError(t, err)
	bos, err := j.Rules.Add(ctx, models.DirectionBuy, "Confirmed break of structure", false)
	require.NoError(t, err)
	_, err = j.Rules.Add(ctx, models.DirectionSell, "Bearish order block", true)
	require.NoError(t, err)

	assert.Equal(t, 1, sweep.OrderNumber)
	assert.Equal(t, 2, bos.OrderNumber)

	buys, err := j.Rules.List(ctx, models.DirectionBuy)
	require.NoError(t, err)
	require.Len(t, buys, 2)
	assert.Equal(t, sweep.ID, buys[0].ID)

	text := "Wait for a sweep of the Asian low"
	updated, err := j.Rules.Update(ctx, sweep.ID, rules.RuleUpdate{Text: &text})
	require.NoError(t, err)
	assert.Equal(t, text, updated.Text)
	stored, err := j.Rules.Get(ctx, sweep.ID)
	require.NoError(t, err)
	assert.Equal(t, text, stored.Text)

	reordered, err := j.Rules.Reorder(ctx, models.DirectionBuy, []string{bos.ID, sweep.ID})
	require.NoError(t, err)
	assert.Equal(t, bos.ID, reordered[0].ID)
	assert.Equal(t, 1, reordered[0].OrderNumber)
	assert.Equal(t, 2, reordered[1].OrderNumber)

	require.NoError(t, j.Rules.Delete(ctx, bos.ID))
	buys, err = j.Rules.List(ctx, models.DirectionBuy)
	require.NoError(t, err)
	require.Len(t, buys, 1)
	assert.Equal(t, 2, buys[0].OrderNumber)

	all, err := j.Rules.Export(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.DirectionBuy, all[0].Direction)
	assert.Equal(t, models.DirectionSell, all[1].Direction)

	assert.Equal(t, []store.ChangeKind{
		store.ChangeCreated, store.ChangeCreated, store.ChangeCreated,
		store.ChangeUpdated, store.ChangeReordered, store.ChangeDeleted,
	}, feed.kinds(store.TopicRules))
}

func TestRuleServiceErrors(t *testing.T) {
	ctx := context.Background()
	j, _ := newTestJournal(t)

	_, err := j.Rules.Add(ctx, "hold", "Anything", true)
	assert.True(t, apperrors.IsValidation(err))

	_, err = j.Rules.Add(ctx, models.DirectionBuy, "   ", true)
	assert.True(t, apperrors.IsValidation(err))

	_, err = j.Rules.Add(ctx, models.DirectionBuy, strings.Repeat("x", security.MaxRuleTextLength+1), true)
	assert.True(t, apperrors.IsValidation(err))

	err = j.Rules.Delete(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = j.Rules.Reorder(ctx, models.DirectionSell, []string{"missing"})
	assert.True(t, apperrors.IsNotFound(err))

	_, err = j.Rules.Evaluate(ctx, "hold", "scenario")
	assert.True(t, apperrors.IsValidation(err))
}

func TestRuleServiceEvaluateAndCheck(t *testing.T) {
	ctx := context.Background()
	j, _ := newTestJournal(t)

	result, err := j.Rules.Evaluate(ctx, models.DirectionBuy, "anything at all")
	require.NoError(t, err)
	assert.True(t, result.Approved())
	assert.Empty(t, result.EvaluatedAgainst)

	_, err = j.Rules.Add(ctx, models.DirectionBuy, "Wait for liquidity sweep", true)
	require.NoError(t, err)
	_, err = j.Rules.Add(ctx, models.DirectionBuy, "Bullish divergence on RSI", false)
	require.NoError(t, err)

	result, err = j.Rules.Evaluate(ctx, models.DirectionBuy, "Price swept the lows, clear LIQUIDITY grab")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApproved, result.Outcome)
	assert.Len(t, result.EvaluatedAgainst, 1)

	result, err = j.Rules.Evaluate(ctx, models.DirectionBuy, "Entered on a gut feeling")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRejected, result.Outcome)

	report, err := j.Rules.Check(ctx, models.DirectionBuy, "liquidity taken")
	require.NoError(t, err)
	require.Len(t, report.Checks, 2)
	assert.True(t, report.Checks[0].Satisfied)
	assert.Equal(t, []string{"liquidity"}, report.Checks[0].Matched)
	assert.False(t, report.Checks[1].Satisfied)
	assert.Equal(t, models.ValidationWarning, report.Validation())
}

func TestRuleServiceImport(t *testing.T) {
	ctx := context.Background()
	j, _ := newTestJournal(t)

	_, err := j.Rules.Add(ctx, models.DirectionBuy, "Existing buy rule", true)
	require.NoError(t, err)

	added, err := j.Rules.Import(ctx, []models.Rule{
		{Text: "Second imported", Direction: models.DirectionBuy, OrderNumber: 2},
		{Text: "First imported", Direction: models.DirectionBuy, Required: true, OrderNumber: 1},
		{Text: "Sell imported", Direction: models.DirectionSell},
	}, false)
	require.NoError(t, err)
	require.Len(t, added, 3)

	buys, err := j.Rules.List(ctx, models.DirectionBuy)
	require.NoError(t, err)
	require.Len(t, buys, 3)
	assert.Equal(t, "Existing buy rule", buys[0].Text)
	assert.Equal(t, "First imported", buys[1].Text)
	assert.Equal(t, 2, buys[1].OrderNumber)
	assert.Equal(t, "Second imported", buys[2].Text)

	_, err = j.Rules.Import(ctx, []models.Rule{
		{Text: "Valid", Direction: models.DirectionSell},
		{Text: "", Direction: models.DirectionSell},
	}, true)
	require.Error(t, err)
	all, err := j.Rules.Export(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	replaced, err := j.Rules.Import(ctx, []models.Rule{
		{Text: "Only rule", Direction: models.DirectionSell, Required: true},
	}, true)
	require.NoError(t, err)
	all, err = j.Rules.Export(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, replaced[0].ID, all[0].ID)
	assert.Equal(t, 1, all[0].OrderNumber)
}

// failingWrites fails every bulk rule write.
type failingWrites struct {
	*store.SQLiteStore
	err error
}

func (f failingWrites) SaveRules(ctx context.Context, batch []models.Rule) error {
	return f.err
}

func (f failingWrites) ReplaceRules(ctx context.Context, deleteIDs []string, batch []models.Rule) error {
	return f.err
}

func TestRuleServiceImportReplaceFailureKeepsRules(t *testing.T) {
	ctx := context.Background()
	ds, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "mentor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })

	seeded := New(ds, WithIDGenerator(sequentialIDs("id")))
	_, err = seeded.Rules.Add(ctx, models.DirectionBuy, "Wait for liquidity sweep", true)
	require.NoError(t, err)
	_, err = seeded.Rules.Add(ctx, models.DirectionSell, "Bearish divergence on RSI", true)
	require.NoError(t, err)

	j := New(failingWrites{SQLiteStore: ds, err: errors.New("disk full")}, WithIDGenerator(sequentialIDs("new")))
	_, err = j.Rules.Import(ctx, []models.Rule{
		{Text: "Only rule", Direction: models.DirectionBuy, Required: true},
	}, true)
	require.EqualError(t, err, "disk full")

	remaining, err := ds.ListRules(ctx, store.RuleFilter{})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestReadOnlyModeRejectsMutations(t *testing.T) {
	ctx := context.Background()
	ac := security.NewAccessController(false, nil)
	j, _ := newTestJournal(t, WithAccessController(ac))

	rule, err := j.Rules.Add(ctx, models.DirectionBuy, "Wait for liquidity sweep", true)
	require.NoError(t, err)
	trade, err := j.Trades.Log(ctx, TradeInput{Pair: "eurusd", Type: models.DirectionBuy, EntryPrice: 1.08})
	require.NoError(t, err)

	ac.SetReadOnly(true)

	_, err = j.Rules.Add(ctx, models.DirectionBuy, "Another", true)
	assert.ErrorIs(t, err, apperrors.ErrReadOnlyMode)
	assert.ErrorIs(t, j.Rules.Delete(ctx, rule.ID), apperrors.ErrReadOnlyMode)
	_, err = j.Trades.Close(ctx, trade.ID, CloseInput{PnL: 10})
	assert.ErrorIs(t, err, apperrors.ErrReadOnlyMode)
	_, err = j.Trades.Review(ctx, trade.ID, ReviewInput{})
	assert.ErrorIs(t, err, apperrors.ErrReadOnlyMode)

	rs, err := j.Rules.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, rs, 1)
	got, err := j.Trades.Get(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

// ============================================================================
// Trades
// ============================================================================

func TestTradeLogDefaults(t *testing.T) {
	ctx := context.Background()
	feed := &recordingFeed{}
	j, _ := newTestJournal(t, WithFeed(feed), WithDefaultSource(models.SourcePaper))

	trade, err := j.Trades.Log(ctx, TradeInput{
		Pair:       " gbpusd ",
		Type:       models.DirectionSell,
		EntryPrice: 1.2650,
		StopLoss:   1.2700,
		Tags:       []string{"london", "London", " "},
		Notes:      "Rejected the weekly high\x07",
	})
	require.NoError(t, err)

	assert.Equal(t, "id-1", trade.ID)
	assert.Equal(t, "GBPUSD", trade.Pair)
	assert.Equal(t, testNow, trade.Date)
	assert.Equal(t, models.SourcePaper, trade.TradeSource)
	assert.Equal(t, models.StatusPending, trade.Status)
	assert.Equal(t, models.ValidationNone, trade.ValidationResult)
	assert.Equal(t, models.ReviewPending, trade.AdminReviewStatus)
	assert.Equal(t, []string{"london"}, trade.Tags)
	assert.Equal(t, "Rejected the weekly high", trade.Notes)
	assert.Nil(t, trade.PnL)

	stored, err := j.Trades.Get(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.Pair, stored.Pair)
	assert.Equal(t, []store.ChangeKind{store.ChangeCreated}, feed.kinds(store.TopicTrades))
}

func TestTradeLogValidation(t *testing.T) {
	ctx := context.Background()
	j, ds := newTestJournal(t)

	cases := map[string]TradeInput{
		"pair":       {Pair: "EUR-USD", Type: models.DirectionBuy, EntryPrice: 1},
		"type":       {Pair: "EURUSD", Type: "long", EntryPrice: 1},
		"entry":      {Pair: "EURUSD", Type: models.DirectionBuy, EntryPrice: 0},
		"confidence": {Pair: "EURUSD", Type: models.DirectionBuy, EntryPrice: 1, ConfidenceLevel: 11},
		"source":     {Pair: "EURUSD", Type: models.DirectionBuy, EntryPrice: 1, TradeSource: "sim"},
		"status":     {Pair: "EURUSD", Type: models.DirectionBuy, EntryPrice: 1, Status: "open"},
		"risk":       {Pair: "EURUSD", Type: models.DirectionBuy, EntryPrice: 1, RiskAmount: -5},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := j.Trades.Log(ctx, in)
			assert.True(t, apperrors.IsValidation(err), "got %v", err)
		})
	}

	trades, err := ds.GetTrades(ctx, store.TradeFilter{})
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestTradeStatusPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("derive", func(t *testing.T) {
		j, _ := newTestJournal(t)
		trade, err := j.Trades.Log(ctx, TradeInput{
			Pair: "XAUUSD", Type: models.DirectionBuy, EntryPrice: 2300,
			Status: models.StatusWin, PnL: models.Float(-25),
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusLoss, trade.Status)
	})

	t.Run("explicit", func(t *testing.T) {
		var logs bytes.Buffer
		j, _ := newTestJournal(t,
			WithStatusDerivation(false),
			WithLogger(zerolog.New(&logs)),
		)
		trade, err := j.Trades.Log(ctx, TradeInput{
			Pair: "XAUUSD", Type: models.DirectionBuy, EntryPrice: 2300,
			Status: models.StatusWin, PnL: models.Float(-25),
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusWin, trade.Status)
		assert.Contains(t, logs.String(), "disagrees with pnl")

		derived, err := j.Trades.Log(ctx, TradeInput{
			Pair: "XAUUSD", Type: models.DirectionBuy, EntryPrice: 2300,
			PnL: models.Float(0),
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusBreakeven, derived.Status)
	})
}

func TestTradeCloseUpdateDelete(t *testing.T) {
	ctx := context.Background()
	j, _ := newTestJournal(t)

	trade, err := j.Trades.Log(ctx, TradeInput{Pair: "EURUSD", Type: models.DirectionBuy, EntryPrice: 1.0800})
	require.NoError(t, err)

	closed, err := j.Trades.Close(ctx, trade.ID, CloseInput{ExitPrice: models.Float(1.0850), PnL: 50})
	require.NoError(t, err)
	assert.Equal(t, models.StatusWin, closed.Status)
	require.NotNil(t, closed.ExitPrice)
	assert.Equal(t, 1.0850, *closed.ExitPrice)
	assert.Equal(t, 50.0, closed.PnLValue())

	_, err = j.Trades.Close(ctx, trade.ID, CloseInput{PnL: 10})
	assert.True(t, apperrors.IsValidation(err))

	pnl := -20.0
	strategy := "Breakout"
	updated, err := j.Trades.Update(ctx, trade.ID, TradePatch{PnL: &pnl, Strategy: &strategy})
	require.NoError(t, err)
	assert.Equal(t, models.StatusLoss, updated.Status)
	assert.Equal(t, "Breakout", updated.Strategy)

	bad := -1.0
	_, err = j.Trades.Update(ctx, trade.ID, TradePatch{EntryPrice: &bad})
	assert.True(t, apperrors.IsValidation(err))

	require.NoError(t, j.Trades.Delete(ctx, trade.ID))
	_, err = j.Trades.Get(ctx, trade.ID)
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(j.Trades.Delete(ctx, trade.ID)))

	_, err = j.Trades.Close(ctx, "missing", CloseInput{PnL: 1})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestTradeReview(t *testing.T) {
	ctx := context.Background()
	j, _ := newTestJournal(t, WithDefaultMentorID("coach"))

	trade, err := j.Trades.Log(ctx, TradeInput{Pair: "US30", Type: models.DirectionSell, EntryPrice: 39000})
	require.NoError(t, err)

	notes := "Good patience at the open"
	reviewed, err := j.Trades.Review(ctx, trade.ID, ReviewInput{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewReviewed, reviewed.AdminReviewStatus)
	assert.Equal(t, notes, reviewed.AdminNotes)
	assert.Equal(t, "coach", reviewed.MentorID)
	require.NotNil(t, reviewed.ReviewTimestamp)
	assert.True(t, reviewed.ReviewTimestamp.Equal(testNow))

	flagged, err := j.Trades.Review(ctx, trade.ID, ReviewInput{Status: models.ReviewFlagged, MentorID: "lead"})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewFlagged, flagged.AdminReviewStatus)
	assert.Equal(t, notes, flagged.AdminNotes)

	mine, err := j.Trades.List(ctx, store.TradeFilter{MentorID: "lead"})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = j.Trades.Review(ctx, trade.ID, ReviewInput{Status: "approved"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestTradeValidate(t *testing.T) {
	ctx := context.Background()
	j, _ := newTestJournal(t)

	_, err := j.Rules.Add(ctx, models.DirectionBuy, "Wait for liquidity sweep", true)
	require.NoError(t, err)
	_, err = j.Rules.Add(ctx, models.DirectionBuy, "Bullish divergence", false)
	require.NoError(t, err)

	cases := []struct {
		notes string
		want  models.ValidationResult
	}{
		{"Liquidity sweep then bullish divergence on M15", models.ValidationApproved},
		{"Liquidity sweep of Asia", models.ValidationWarning},
		{"FOMO entry", models.ValidationRejected},
	}
	for _, tc := range cases {
		trade, err := j.Trades.Log(ctx, TradeInput{Pair: "EURUSD", Type: models.DirectionBuy, EntryPrice: 1.1, Notes: tc.notes})
		require.NoError(t, err)

		validated, report, err := j.Trades.Validate(ctx, trade.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.want, validated.ValidationResult, tc.notes)
		assert.Equal(t, models.DirectionBuy, report.Direction)

		stored, err := j.Trades.Get(ctx, trade.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.want, stored.ValidationResult)
	}

	sell, err := j.Trades.Log(ctx, TradeInput{Pair: "EURUSD", Type: models.DirectionSell, EntryPrice: 1.1})
	require.NoError(t, err)
	validated, _, err := j.Trades.Validate(ctx, sell.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ValidationApproved, validated.ValidationResult)
}

func TestTradeSummary(t *testing.T) {
	ctx := context.Background()
	j, _ := newTestJournal(t)

	inputs := []TradeInput{
		{Pair: "EURUSD", Type: models.DirectionBuy, EntryPrice: 1.1, PnL: models.Float(100), Strategy: "Breakout"},
		{Pair: "EURUSD", Type: models.DirectionSell, EntryPrice: 1.1, PnL: models.Float(-40), Strategy: "Breakout"},
		{Pair: "GBPUSD", Type: models.DirectionBuy, EntryPrice: 1.3, PnL: models.Float(0)},
		{Pair: "GBPUSD", Type: models.DirectionBuy, EntryPrice: 1.3},
	}
	for _, in := range inputs {
		_, err := j.Trades.Log(ctx, in)
		require.NoError(t, err)
	}

	summary, err := j.Trades.Summary(ctx, store.TradeFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 3, summary.ClosedTrades)
	assert.Equal(t, 50, summary.WinRate)
	assert.Equal(t, 60.0, summary.TotalPnL)
	assert.Equal(t, 20.0, summary.AvgPnL)
	assert.Equal(t, analytics.DefinedProfitFactor(2.5), summary.ProfitFactor)
	assert.Equal(t, 2, summary.StrategyStats[analytics.UnknownGroup].Total)

	filtered, err := j.Trades.Summary(ctx, store.TradeFilter{Pair: "gbpusd"})
	require.NoError(t, err)
	assert.Equal(t, 2, filtered.Total)
	assert.False(t, filtered.ProfitFactor.Defined())
}

func TestTradeSummaryIgnoresStatusWithoutPnL(t *testing.T) {
	ctx := context.Background()
	j, _ := newTestJournal(t)

	_, err := j.Trades.Log(ctx, TradeInput{Pair: "EURUSD", Type: models.DirectionBuy, EntryPrice: 1.1, Status: models.StatusWin})
	require.NoError(t, err)
	_, err = j.Trades.Log(ctx, TradeInput{Pair: "EURUSD", Type: models.DirectionBuy, EntryPrice: 1.1, PnL: models.Float(-40)})
	require.NoError(t, err)

	summary, err := j.Trades.Summary(ctx, store.TradeFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 0, summary.Wins)
	assert.Equal(t, 1, summary.ClosedTrades)
	assert.Equal(t, -40.0, summary.AvgPnL)
}

// ============================================================================
// Change feed wiring
// ============================================================================

func TestJournalChangesReachAuditLog(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := stream.NewHub()
	require.NoError(t, hub.Start(ctx))

	dir := t.TempDir()
	audit, err := security.NewAuditLogger(security.AuditConfig{LogDir: dir, MaxSize: 1})
	require.NoError(t, err)
	defer audit.Close()
	audit.Attach(hub)

	j, _ := newTestJournal(t, WithFeed(hub))
	rule, err := j.Rules.Add(ctx, models.DirectionBuy, "Wait for liquidity sweep", true)
	require.NoError(t, err)
	trade, err := j.Trades.Log(ctx, TradeInput{Pair: "EURUSD", Type: models.DirectionBuy, EntryPrice: 1.1})
	require.NoError(t, err)
	require.NoError(t, j.Trades.Delete(ctx, trade.ID))

	hub.Stop()

	data, err := os.ReadFile(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	out := string(data)
	assert.Equal(t, 3, strings.Count(out, "\n"))
	assert.Contains(t, out, rule.ID)
	assert.Contains(t, out, string(security.AuditTradeDeleted))
}

func TestRejectedInputReachesAuditLog(t *testing.T) {
	dir := t.TempDir()
	audit, err := security.NewAuditLogger(security.AuditConfig{LogDir: dir, MaxSize: 1})
	require.NoError(t, err)
	defer audit.Close()

	j, _ := newTestJournal(t, WithAccessController(security.NewAccessController(false, audit)))
	ctx := context.Background()

	_, err = j.Trades.Log(ctx, TradeInput{Pair: "EURUSD", Type: models.DirectionBuy, EntryPrice: -1})
	require.Error(t, err)
	_, err = j.Rules.Add(ctx, models.DirectionBuy, "   ", true)
	require.Error(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	out := string(data)
	assert.Equal(t, 2, strings.Count(out, string(security.AuditInputValidation)))
}
