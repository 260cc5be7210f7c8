package models

import (
	"fmt"
	"strings"
	"time"
)

// Direction is the trade side a rule or trade applies to.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Directions lists every direction in display order.
var Directions = []Direction{DirectionBuy, DirectionSell}

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// ParseDirection parses a direction, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown direction %q (must be buy or sell)", s)
	}
	return d, nil
}

// Rule is a single checklist criterion for one trade direction.
type Rule struct {
	ID          string    `json:"id" yaml:"id,omitempty"`
	Text        string    `json:"text" yaml:"text"`
	Direction   Direction `json:"direction" yaml:"direction"`
	Required    bool      `json:"required" yaml:"required"`
	OrderNumber int       `json:"orderNumber" yaml:"orderNumber,omitempty"`
	CreatedAt   time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"-"`
}

// Kind returns "required" or "advisory".
func (r Rule) Kind() string {
	if r.Required {
		return "required"
	}
	return "advisory"
}

// Outcome is the result of evaluating a scenario against a rule set.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// RuleEvaluationResult is derived, never persisted.
type RuleEvaluationResult struct {
	Outcome          Outcome `json:"outcome"`
	EvaluatedAgainst []Rule  `json:"evaluatedAgainst"`
}

// Approved reports whether the outcome is approved.
func (r RuleEvaluationResult) Approved() bool {
	return r.Outcome == OutcomeApproved
}
