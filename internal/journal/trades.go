package journal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"mentor-desk/internal/analytics"
	apperrors "mentor-desk/internal/errors"
	"mentor-desk/internal/logging"
	"mentor-desk/internal/models"
	"mentor-desk/internal/rules"
	"mentor-desk/internal/security"
	"mentor-desk/internal/store"
)

// TradeInput is the caller-supplied part of a new journal entry. Zero values
// take defaults: a fresh id, the current date, the configured source and a
// pending status.
type TradeInput struct {
	Pair       string
	Type       models.Direction
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	ExitPrice  *float64
	Status     models.TradeStatus
	PnL        *float64
	Date       time.Time

	Notes           string
	Emotions        []string
	Strategy        string
	TimeFrame       string
	MarketCondition string
	ConfidenceLevel int
	RiskAmount      float64
	PositionSize    float64
	TradeDuration   string
	Tags            []string
	TradeSource     models.TradeSource
	SessionID       string
}

// CloseInput records the exit of an open trade.
type CloseInput struct {
	ExitPrice *float64
	PnL       float64
	// Status is only honoured when status derivation is disabled.
	Status models.TradeStatus
}

// TradePatch lists the trade fields to change. Nil fields are left alone.
type TradePatch struct {
	Pair            *string
	Type            *models.Direction
	EntryPrice      *float64
	StopLoss        *float64
	TakeProfit      *float64
	ExitPrice       *float64
	Status          *models.TradeStatus
	PnL             *float64
	Date            *time.Time
	Notes           *string
	Emotions        *[]string
	Strategy        *string
	TimeFrame       *string
	MarketCondition *string
	ConfidenceLevel *int
	RiskAmount      *float64
	PositionSize    *float64
	TradeDuration   *string
	Tags            *[]string
	TradeSource     *models.TradeSource
}

// ReviewInput is a mentor's verdict on a trade.
type ReviewInput struct {
	Status   models.ReviewStatus
	Notes    *string
	MentorID string
}

// TradeService is the trade journal: logging, closing, editing, mentor
// review, checklist validation and performance summaries.
type TradeService struct {
	store store.DataStore
	rules *RuleService
	opts  options
	mu    sync.Mutex
}

// NewTradeService creates a trade service over ds. ruleSvc supplies the
// checklists used by Validate.
func NewTradeService(ds store.DataStore, ruleSvc *RuleService, opts ...Option) *TradeService {
	return &TradeService{store: ds, rules: ruleSvc, opts: buildOptions(opts)}
}

// ============================================================================
// Journal entries
// ============================================================================

// Log validates and stores a new trade.
func (s *TradeService) Log(ctx context.Context, in TradeInput) (models.TradeEntry, error) {
	if err := s.opts.access.CheckPermission(ctx, security.OpLogTrade); err != nil {
		return models.TradeEntry{}, err
	}
	if err := checkStatus(in.Status); err != nil {
		return models.TradeEntry{}, err
	}

	trade := models.TradeEntry{
		ID:                s.opts.newID(),
		Pair:              security.NormalizePair(in.Pair),
		Type:              in.Type,
		EntryPrice:        in.EntryPrice,
		StopLoss:          in.StopLoss,
		TakeProfit:        in.TakeProfit,
		ExitPrice:         in.ExitPrice,
		Status:            in.Status,
		PnL:               in.PnL,
		Date:              in.Date,
		Notes:             security.SanitizeText(in.Notes),
		Emotions:          security.SanitizeLabels(in.Emotions),
		Strategy:          strings.TrimSpace(in.Strategy),
		TimeFrame:         strings.TrimSpace(in.TimeFrame),
		MarketCondition:   strings.TrimSpace(in.MarketCondition),
		ConfidenceLevel:   in.ConfidenceLevel,
		RiskAmount:        in.RiskAmount,
		PositionSize:      in.PositionSize,
		TradeDuration:     strings.TrimSpace(in.TradeDuration),
		Tags:              security.SanitizeLabels(in.Tags),
		TradeSource:       in.TradeSource,
		ValidationResult:  models.ValidationNone,
		AdminReviewStatus: models.ReviewPending,
		SessionID:         in.SessionID,
	}
	if trade.Date.IsZero() {
		trade.Date = s.opts.now()
	}
	if trade.TradeSource == "" {
		trade.TradeSource = s.opts.defaultSource
	}
	s.applyStatusPolicy(&trade, in.Status != "")

	if err := s.validate(&trade); err != nil {
		return models.TradeEntry{}, s.opts.rejected(ctx, err)
	}
	if err := s.store.LogTrade(ctx, &trade); err != nil {
		return models.TradeEntry{}, err
	}

	s.opts.publish(store.TopicTrades, store.ChangeCreated, trade.ID)
	logging.LogTradeChange(s.opts.log(ctx), string(store.ChangeCreated), trade.ID, trade.Pair, string(trade.Status))
	return trade, nil
}

// Close records the exit fill and realized pnl of an open trade.
func (s *TradeService) Close(ctx context.Context, id string, in CloseInput) (models.TradeEntry, error) {
	if err := s.opts.access.CheckPermission(ctx, security.OpCloseTrade); err != nil {
		return models.TradeEntry{}, err
	}
	if err := checkStatus(in.Status); err != nil {
		return models.TradeEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trade, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return models.TradeEntry{}, err
	}
	if trade.IsClosed() {
		return models.TradeEntry{}, apperrors.NewValidationError("status", trade.Status,
			"trade is already closed; use edit to change it")
	}

	if in.ExitPrice != nil {
		trade.ExitPrice = in.ExitPrice
	}
	trade.PnL = models.Float(in.PnL)
	trade.Status = in.Status
	if trade.Status == models.StatusPending {
		trade.Status = ""
	}
	s.applyStatusPolicy(trade, trade.Status != "")

	if err := s.validate(trade); err != nil {
		return models.TradeEntry{}, s.opts.rejected(ctx, err)
	}
	if err := s.store.UpdateTrade(ctx, trade); err != nil {
		return models.TradeEntry{}, err
	}

	s.opts.publish(store.TopicTrades, store.ChangeUpdated, trade.ID)
	logging.LogTradeChange(s.opts.log(ctx), "closed", trade.ID, trade.Pair, string(trade.Status))
	return *trade, nil
}

// Update applies patch to a stored trade.
func (s *TradeService) Update(ctx context.Context, id string, patch TradePatch) (models.TradeEntry, error) {
	if err := s.opts.access.CheckPermission(ctx, security.OpEditTrade); err != nil {
		return models.TradeEntry{}, err
	}
	if patch.Status != nil {
		if err := checkStatus(*patch.Status); err != nil {
			return models.TradeEntry{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trade, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return models.TradeEntry{}, err
	}
	patch.apply(trade)
	s.applyStatusPolicy(trade, patch.Status != nil)

	if err := s.validate(trade); err != nil {
		return models.TradeEntry{}, s.opts.rejected(ctx, err)
	}
	if err := s.store.UpdateTrade(ctx, trade); err != nil {
		return models.TradeEntry{}, err
	}

	s.opts.publish(store.TopicTrades, store.ChangeUpdated, trade.ID)
	logging.LogTradeChange(s.opts.log(ctx), string(store.ChangeUpdated), trade.ID, trade.Pair, string(trade.Status))
	return *trade, nil
}

// Delete removes a trade from the journal.
func (s *TradeService) Delete(ctx context.Context, id string) error {
	if err := s.opts.access.CheckPermission(ctx, security.OpDeleteTrade); err != nil {
		return err
	}
	if err := s.store.DeleteTrade(ctx, id); err != nil {
		return err
	}

	s.opts.publish(store.TopicTrades, store.ChangeDeleted, id)
	logging.LogTradeChange(s.opts.log(ctx), string(store.ChangeDeleted), id, "", "")
	return nil
}

// Get returns a trade by id.
func (s *TradeService) Get(ctx context.Context, id string) (models.TradeEntry, error) {
	trade, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return models.TradeEntry{}, err
	}
	return *trade, nil
}

// List returns the trades matching filter, newest first.
func (s *TradeService) List(ctx context.Context, filter store.TradeFilter) ([]models.TradeEntry, error) {
	if filter.Pair != "" {
		filter.Pair = security.NormalizePair(filter.Pair)
	}
	trades, err := s.store.GetTrades(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

// ============================================================================
// Mentor workflow
// ============================================================================

// Review records a mentor's review of a trade.
func (s *TradeService) Review(ctx context.Context, id string, in ReviewInput) (models.TradeEntry, error) {
	if err := s.opts.access.CheckPermission(ctx, security.OpReviewTrade); err != nil {
		return models.TradeEntry{}, err
	}

	status := in.Status
	if status == "" {
		status = models.ReviewReviewed
	}
	if _, err := models.ParseReviewStatus(string(status)); err != nil {
		return models.TradeEntry{}, apperrors.NewValidationError("adminReviewStatus", in.Status, "must be pending, reviewed or flagged")
	}
	if in.Notes != nil {
		if err := s.opts.validator.ValidateText("adminNotes", *in.Notes, security.MaxNotesLength); err != nil {
			return models.TradeEntry{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trade, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return models.TradeEntry{}, err
	}

	trade.AdminReviewStatus = status
	if in.Notes != nil {
		trade.AdminNotes = security.SanitizeText(*in.Notes)
	}
	trade.MentorID = strings.TrimSpace(in.MentorID)
	if trade.MentorID == "" {
		trade.MentorID = s.opts.defaultMentorID
	}
	reviewed := s.opts.now()
	trade.ReviewTimestamp = &reviewed

	if err := s.store.UpdateTrade(ctx, trade); err != nil {
		return models.TradeEntry{}, err
	}

	s.opts.publish(store.TopicTrades, store.ChangeUpdated, trade.ID)
	logging.LogTradeChange(s.opts.log(ctx), "reviewed", trade.ID, trade.Pair, string(trade.AdminReviewStatus))
	return *trade, nil
}

// Validate checks a trade's notes against its direction's checklist and
// stores the verdict in validationResult.
func (s *TradeService) Validate(ctx context.Context, id string) (models.TradeEntry, rules.Report, error) {
	if err := s.opts.access.CheckPermission(ctx, security.OpValidateTrade); err != nil {
		return models.TradeEntry{}, rules.Report{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trade, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return models.TradeEntry{}, rules.Report{}, err
	}
	report, err := s.rules.Check(ctx, trade.Type, trade.Notes)
	if err != nil {
		return models.TradeEntry{}, rules.Report{}, err
	}

	trade.ValidationResult = report.Validation()
	if err := s.store.UpdateTrade(ctx, trade); err != nil {
		return models.TradeEntry{}, rules.Report{}, err
	}

	s.opts.publish(store.TopicTrades, store.ChangeUpdated, trade.ID)
	logging.LogTradeChange(s.opts.log(ctx), "validated", trade.ID, trade.Pair, string(trade.ValidationResult))
	return *trade, report, nil
}

// Summary computes performance statistics over the trades matching filter.
func (s *TradeService) Summary(ctx context.Context, filter store.TradeFilter) (analytics.PerformanceSummary, error) {
	trades, err := s.List(ctx, filter)
	if err != nil {
		return analytics.PerformanceSummary{}, err
	}
	return analytics.Summarize(trades), nil
}

// ============================================================================
// Helpers
// ============================================================================

// applyStatusPolicy settles a trade's status after its pnl or status changed.
// explicit reports whether the caller supplied the status.
func (s *TradeService) applyStatusPolicy(t *models.TradeEntry, explicit bool) {
	if t.PnL == nil {
		if t.Status == "" {
			t.Status = models.StatusPending
		}
		return
	}
	if s.opts.deriveStatus || !explicit || t.Status == "" {
		t.ReconcileStatus()
		return
	}
	if !t.StatusConsistent() {
		s.opts.logger.Warn().
			Str("trade_id", t.ID).
			Str("status", string(t.Status)).
			Float64("pnl", *t.PnL).
			Msg("Trade status disagrees with pnl sign")
	}
}

func checkStatus(st models.TradeStatus) error {
	if st == "" {
		return nil
	}
	if _, err := models.ParseTradeStatus(string(st)); err != nil {
		return apperrors.NewValidationError("status", st, "must be win, loss, breakeven or pending")
	}
	return nil
}

func (s *TradeService) validate(t *models.TradeEntry) error {
	v := s.opts.validator

	if err := v.ValidatePair(t.Pair); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return apperrors.NewValidationError("type", t.Type, "must be buy or sell")
	}
	if err := checkStatus(t.Status); err != nil {
		return err
	}
	if _, err := models.ParseTradeSource(string(t.TradeSource)); err != nil {
		return apperrors.NewValidationError("tradeSource", t.TradeSource, "must be demo, live or paper")
	}

	if err := v.ValidatePrice("entryPrice", t.EntryPrice); err != nil {
		return err
	}
	if err := v.ValidateOptionalPrice("stopLoss", t.StopLoss); err != nil {
		return err
	}
	if err := v.ValidateOptionalPrice("takeProfit", t.TakeProfit); err != nil {
		return err
	}
	if t.ExitPrice != nil {
		if err := v.ValidatePrice("exitPrice", *t.ExitPrice); err != nil {
			return err
		}
	}
	if t.PnL != nil {
		if err := v.ValidatePnL(*t.PnL); err != nil {
			return err
		}
	}
	if err := v.ValidateConfidence(t.ConfidenceLevel); err != nil {
		return err
	}
	if err := v.ValidateAmount("riskAmount", t.RiskAmount); err != nil {
		return err
	}
	if err := v.ValidateAmount("positionSize", t.PositionSize); err != nil {
		return err
	}

	if err := v.ValidateText("notes", t.Notes, security.MaxNotesLength); err != nil {
		return err
	}
	labels := map[string]string{
		"strategy":        t.Strategy,
		"timeFrame":       t.TimeFrame,
		"marketCondition": t.MarketCondition,
		"tradeDuration":   t.TradeDuration,
	}
	for field, value := range labels {
		if err := v.ValidateText(field, value, security.MaxLabelLength); err != nil {
			return err
		}
	}
	if err := v.ValidateLabels("emotions", t.Emotions); err != nil {
		return err
	}
	return v.ValidateLabels("tags", t.Tags)
}

func (p TradePatch) apply(t *models.TradeEntry) {
	if p.Pair != nil {
		t.Pair = security.NormalizePair(*p.Pair)
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.EntryPrice != nil {
		t.EntryPrice = *p.EntryPrice
	}
	if p.StopLoss != nil {
		t.StopLoss = *p.StopLoss
	}
	if p.TakeProfit != nil {
		t.TakeProfit = *p.TakeProfit
	}
	if p.ExitPrice != nil {
		t.ExitPrice = models.Float(*p.ExitPrice)
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.PnL != nil {
		t.PnL = models.Float(*p.PnL)
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Notes != nil {
		t.Notes = security.SanitizeText(*p.Notes)
	}
	if p.Emotions != nil {
		t.Emotions = security.SanitizeLabels(*p.Emotions)
	}
	if p.Strategy != nil {
		t.Strategy = strings.TrimSpace(*p.Strategy)
	}
	if p.TimeFrame != nil {
		t.TimeFrame = strings.TrimSpace(*p.TimeFrame)
	}
	if p.MarketCondition != nil {
		t.MarketCondition = strings.TrimSpace(*p.MarketCondition)
	}
	if p.ConfidenceLevel != nil {
		t.ConfidenceLevel = *p.ConfidenceLevel
	}
	if p.RiskAmount != nil {
		t.RiskAmount = *p.RiskAmount
	}
	if p.PositionSize != nil {
		t.PositionSize = *p.PositionSize
	}
	if p.TradeDuration != nil {
		t.TradeDuration = strings.TrimSpace(*p.TradeDuration)
	}
	if p.Tags != nil {
		t.Tags = security.SanitizeLabels(*p.Tags)
	}
	if p.TradeSource != nil {
		t.TradeSource = *p.TradeSource
	}
}
