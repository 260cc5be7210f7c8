package models

import (
	"fmt"
	"strings"
	"time"
)

// TradeStatus is the outcome of a journaled trade.
type TradeStatus string

const (
	StatusWin       TradeStatus = "win"
	StatusLoss      TradeStatus = "loss"
	StatusBreakeven TradeStatus = "breakeven"
	StatusPending   TradeStatus = "pending"
)

// ParseTradeStatus parses a trade status.
func ParseTradeStatus(s string) (TradeStatus, error) {
	st := TradeStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusWin, StatusLoss, StatusBreakeven, StatusPending:
		return st, nil
	}
	return "", fmt.Errorf("unknown trade status %q", s)
}

// TradeSource is the account type a trade was taken on.
type TradeSource string

const (
	SourceDemo  TradeSource = "demo"
	SourceLive  TradeSource = "live"
	SourcePaper TradeSource = "paper"
)

// ParseTradeSource parses a trade source. Values are stored lower-cased.
func ParseTradeSource(s string) (TradeSource, error) {
	src := TradeSource(strings.ToLower(strings.TrimSpace(s)))
	switch src {
	case SourceDemo, SourceLive, SourcePaper:
		return src, nil
	}
	return "", fmt.Errorf("unknown trade source %q (must be demo, live or paper)", s)
}

// ValidationResult records how a trade fared against the rule checklist.
type ValidationResult string

const (
	ValidationNone     ValidationResult = "none"
	ValidationApproved ValidationResult = "approved"
	ValidationWarning  ValidationResult = "warning"
	ValidationRejected ValidationResult = "rejected"
)

// ParseValidationResult parses a validation result.
func ParseValidationResult(s string) (ValidationResult, error) {
	v := ValidationResult(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case ValidationNone, ValidationApproved, ValidationWarning, ValidationRejected:
		return v, nil
	}
	return "", fmt.Errorf("unknown validation result %q", s)
}

// ReviewStatus is the mentor review state of a trade.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewReviewed ReviewStatus = "reviewed"
	ReviewFlagged  ReviewStatus = "flagged"
)

// ParseReviewStatus parses a review status.
func ParseReviewStatus(s string) (ReviewStatus, error) {
	r := ReviewStatus(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case ReviewPending, ReviewReviewed, ReviewFlagged:
		return r, nil
	}
	return "", fmt.Errorf("unknown review status %q", s)
}

// TradeEntry is a single journaled trade.
type TradeEntry struct {
	ID   string    `json:"id"`
	Pair string    `json:"pair"`
	Type Direction `json:"type"`

	EntryPrice float64  `json:"entryPrice"`
	StopLoss   float64  `json:"stopLoss"`
	TakeProfit float64  `json:"takeProfit"`
	ExitPrice  *float64 `json:"exitPrice,omitempty"`

	Status TradeStatus `json:"status"`
	PnL    *float64    `json:"pnl,omitempty"`

	Date            time.Time   `json:"date"`
	Notes           string      `json:"notes"`
	Emotions        []string    `json:"emotions"`
	Strategy        string      `json:"strategy"`
	TimeFrame       string      `json:"timeFrame"`
	MarketCondition string      `json:"marketCondition"`
	ConfidenceLevel int         `json:"confidenceLevel"`
	RiskAmount      float64     `json:"riskAmount"`
	PositionSize    float64     `json:"positionSize"`
	TradeDuration   string      `json:"tradeDuration"`
	Tags            []string    `json:"tags"`
	TradeSource     TradeSource `json:"tradeSource"`

	ValidationResult  ValidationResult `json:"validationResult"`
	AdminNotes        string           `json:"adminNotes"`
	AdminReviewStatus ReviewStatus     `json:"adminReviewStatus"`
	ReviewTimestamp   *time.Time       `json:"reviewTimestamp,omitempty"`
	MentorID          string           `json:"mentorId"`
	SessionID         string           `json:"sessionId"`
}

// IsClosed reports whether the trade has a win, loss or breakeven status.
func (t TradeEntry) IsClosed() bool {
	switch t.Status {
	case StatusWin, StatusLoss, StatusBreakeven:
		return true
	}
	return false
}

// PnLValue returns the realized P&L, treating a missing value as 0.
func (t TradeEntry) PnLValue() float64 {
	if t.PnL == nil {
		return 0
	}
	return *t.PnL
}

// StatusFromPnL maps the sign of a realized P&L to a status.
func StatusFromPnL(pnl float64) TradeStatus {
	switch {
	case pnl > 0:
		return StatusWin
	case pnl < 0:
		return StatusLoss
	default:
		return StatusBreakeven
	}
}

// StatusConsistent reports whether status agrees with the pnl sign.
// Trades without a pnl are always consistent.
func (t TradeEntry) StatusConsistent() bool {
	if t.PnL == nil {
		return true
	}
	return t.Status == StatusFromPnL(*t.PnL)
}

// ReconcileStatus recomputes Status from PnL when PnL is present.
// It returns true if the status changed.
func (t *TradeEntry) ReconcileStatus() bool {
	if t.PnL == nil {
		return false
	}
	next := StatusFromPnL(*t.PnL)
	if t.Status == next {
		return false
	}
	t.Status = next
	return true
}

// Float returns a pointer to v. Used for the optional numeric fields.
func Float(v float64) *float64 {
	return &v
}
