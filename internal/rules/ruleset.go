// Package rules holds the buy/sell checklist engine: an ordered,
// direction-partitioned rule set and an evaluator that checks free-text trade
// scenarios against its required rules.
package rules

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "mentor-desk/internal/errors"
	"mentor-desk/internal/models"
)

// RuleUpdate carries the fields to change on a rule. Nil fields are left alone.
type RuleUpdate struct {
	Text      *string
	Direction *models.Direction
	Required  *bool
}

// RuleSet is an ordered collection of rules partitioned by direction.
// Rules keep their insertion order, which breaks ties between equal
// order numbers. All returned rules are copies.
type RuleSet struct {
	mu      sync.RWMutex
	rules   []models.Rule
	matcher Matcher
	now     func() time.Time
	newID   func() string
}

// Option configures a RuleSet.
type Option func(*RuleSet)

// WithMatcher replaces the default token-overlap matcher.
func WithMatcher(m Matcher) Option {
	return func(s *RuleSet) {
		if m != nil {
			s.matcher = m
		}
	}
}

// WithClock sets the time source used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *RuleSet) {
		s.now = now
	}
}

// WithIDGenerator sets the id source for new rules.
func WithIDGenerator(newID func() string) Option {
	return func(s *RuleSet) {
		s.newID = newID
	}
}

// NewRuleSet creates a rule set seeded with rules, in the given insertion order.
func NewRuleSet(rules []models.Rule, opts ...Option) *RuleSet {
	s := &RuleSet{
		rules:   append([]models.Rule(nil), rules...),
		matcher: NewTokenOverlapMatcher(DefaultMinTokenLength),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Matcher returns the matcher used by Evaluate.
func (s *RuleSet) Matcher() Matcher {
	return s.matcher
}

// Len returns the number of rules across both directions.
func (s *RuleSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// All returns every rule in insertion order.
func (s *RuleSet) All() []models.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Rule(nil), s.rules...)
}

// Get returns the rule with the given id.
func (s *RuleSet) Get(id string) (models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.Rule{}, apperrors.NewNotFoundError("rule", id, "")
	}
	return s.rules[i], nil
}

// ListByDirection returns the rules of a direction sorted ascending by order
// number, ties in insertion order.
func (s *RuleSet) ListByDirection(d models.Direction) []models.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listByDirection(d)
}

func (s *RuleSet) listByDirection(d models.Direction) []models.Rule {
	out := make([]models.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Direction == d {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderNumber < out[j].OrderNumber
	})
	return out
}

// Required returns the required rules of a direction in evaluation order.
func (s *RuleSet) Required(d models.Direction) []models.Rule {
	out := []models.Rule{}
	for _, r := range s.ListByDirection(d) {
		if r.Required {
			out = append(out, r)
		}
	}
	return out
}

// AddRule appends a rule at the end of its direction.
func (s *RuleSet) AddRule(d models.Direction, text string, required bool) (models.Rule, error) {
	if !d.Valid() {
		return models.Rule{}, apperrors.NewValidationError("direction", d, "must be buy or sell")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Rule{}, apperrors.NewValidationError("text", text, "rule text cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, seen := 1, false
	for _, r := range s.rules {
		if r.Direction != d {
			continue
		}
		if !seen || r.OrderNumber >= next {
			next = r.OrderNumber + 1
			seen = true
		}
	}

	now := s.now()
	rule := models.Rule{
		ID:          s.newID(),
		Text:        text,
		Direction:   d,
		Required:    required,
		OrderNumber: next,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.rules = append(s.rules, rule)
	return rule, nil
}

// UpdateRule changes a rule in place. A direction change keeps the rule's
// order number, so it may collide with a rule already in the new group.
func (s *RuleSet) UpdateRule(id string, upd RuleUpdate) (models.Rule, error) {
	var text string
	if upd.Text != nil {
		text = strings.TrimSpace(*upd.Text)
		if text == "" {
			return models.Rule{}, apperrors.NewValidationError("text", *upd.Text, "rule text cannot be empty")
		}
	}
	if upd.Direction != nil && !upd.Direction.Valid() {
		return models.Rule{}, apperrors.NewValidationError("direction", *upd.Direction, "must be buy or sell")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.Rule{}, apperrors.NewNotFoundError("rule", id, "")
	}

	rule := s.rules[i]
	if upd.Text != nil {
		rule.Text = text
	}
	if upd.Direction != nil {
		rule.Direction = *upd.Direction
	}
	if upd.Required != nil {
		rule.Required = *upd.Required
	}
	rule.UpdatedAt = s.now()
	s.rules[i] = rule
	return rule, nil
}

// DeleteRule removes a rule. Remaining order numbers are not compacted.
func (s *RuleSet) DeleteRule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return apperrors.NewNotFoundError("rule", id, "")
	}
	s.rules = append(s.rules[:i], s.rules[i+1:]...)
	return nil
}

// Reorder renumbers a direction 1..n in the order of orderedIDs, which must
// name exactly the direction's current members. On any mismatch nothing
// changes.
func (s *RuleSet) Reorder(d models.Direction, orderedIDs []string) error {
	if !d.Valid() {
		return apperrors.NewValidationError("direction", d, "must be buy or sell")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	members := make(map[string]int)
	for i, r := range s.rules {
		if r.Direction == d {
			members[r.ID] = i
		}
	}
	if len(orderedIDs) != len(members) {
		return apperrors.NewNotFoundError("rule", string(d),
			"reorder ids do not match the direction's rules")
	}

	seen := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, ok := members[id]; !ok {
			return apperrors.NewNotFoundError("rule", id, "not a "+string(d)+" rule")
		}
		if seen[id] {
			return apperrors.NewNotFoundError("rule", id, "listed more than once")
		}
		seen[id] = true
	}

	now := s.now()
	for pos, id := range orderedIDs {
		i := members[id]
		if s.rules[i].OrderNumber != pos+1 {
			s.rules[i].OrderNumber = pos + 1
			s.rules[i].UpdatedAt = now
		}
	}
	return nil
}

// Evaluate checks scenario against the required rules of direction d. The
// outcome is approved iff every required rule is satisfied, which holds
// vacuously when there are none.
func (s *RuleSet) Evaluate(d models.Direction, scenario string) models.RuleEvaluationResult {
	required := s.Required(d)
	result := models.RuleEvaluationResult{
		Outcome:          models.OutcomeApproved,
		EvaluatedAgainst: required,
	}
	for _, r := range required {
		if !s.matcher.Match(r.Text, scenario).Satisfied {
			result.Outcome = models.OutcomeRejected
			break
		}
	}
	return result
}

func (s *RuleSet) indexOf(id string) int {
	for i, r := range s.rules {
		if r.ID == id {
			return i
		}
	}
	return -1
}
