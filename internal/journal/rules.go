package journal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "mentor-desk/internal/errors"
	"mentor-desk/internal/logging"
	"mentor-desk/internal/models"
	"mentor-desk/internal/rules"
	"mentor-desk/internal/security"
	"mentor-desk/internal/store"
)

// RuleService manages the persisted buy/sell checklists. Every mutation loads
// the stored rules into a rules.RuleSet, applies the change there and writes
// back only the rules it touched.
type RuleService struct {
	store store.DataStore
	opts  options
	mu    sync.Mutex
}

// NewRuleService creates a rule service over ds.
func NewRuleService(ds store.DataStore, opts ...Option) *RuleService {
	return &RuleService{store: ds, opts: buildOptions(opts)}
}

func (s *RuleService) load(ctx context.Context) (*rules.RuleSet, error) {
	stored, err := s.store.ListRules(ctx, store.RuleFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	return rules.NewRuleSet(stored,
		rules.WithMatcher(s.opts.matcher),
		rules.WithClock(s.opts.now),
		rules.WithIDGenerator(s.opts.newID),
	), nil
}

// RuleSet returns a snapshot of the stored rules.
func (s *RuleService) RuleSet(ctx context.Context) (*rules.RuleSet, error) {
	return s.load(ctx)
}

// List returns the rules of direction d ordered by order number, or every
// rule grouped by direction when d is empty.
func (s *RuleService) List(ctx context.Context, d models.Direction) ([]models.Rule, error) {
	rs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if d != "" {
		if !d.Valid() {
			return nil, apperrors.NewValidationError("direction", d, "must be buy or sell")
		}
		return rs.ListByDirection(d), nil
	}
	out := []models.Rule{}
	for _, dir := range models.Directions {
		out = append(out, rs.ListByDirection(dir)...)
	}
	return out, nil
}

// Get returns a rule by id.
func (s *RuleService) Get(ctx context.Context, id string) (models.Rule, error) {
	rule, err := s.store.GetRule(ctx, id)
	if err != nil {
		return models.Rule{}, err
	}
	return *rule, nil
}

// Add appends a rule to the end of its direction's checklist.
func (s *RuleService) Add(ctx context.Context, d models.Direction, text string, required bool) (models.Rule, error) {
	if err := s.opts.access.CheckPermission(ctx, security.OpAddRule); err != nil {
		return models.Rule{}, err
	}
	if err := s.opts.validator.ValidateRuleText(text); err != nil {
		return models.Rule{}, s.opts.rejected(ctx, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rs, err := s.load(ctx)
	if err != nil {
		return models.Rule{}, err
	}
	rule, err := rs.AddRule(d, text, required)
	if err != nil {
		return models.Rule{}, err
	}
	if err := s.store.SaveRule(ctx, &rule); err != nil {
		return models.Rule{}, err
	}

	s.opts.publish(store.TopicRules, store.ChangeCreated, rule.ID)
	logging.LogRuleChange(s.opts.log(ctx), string(store.ChangeCreated), rule.ID, string(rule.Direction))
	return rule, nil
}

// Update edits a rule's text, direction or required flag.
func (s *RuleService) Update(ctx context.Context, id string, upd rules.RuleUpdate) (models.Rule, error) {
	if err := s.opts.access.CheckPermission(ctx, security.OpEditRule); err != nil {
		return models.Rule{}, err
	}
	if upd.Text != nil {
		if err := s.opts.validator.ValidateRuleText(*upd.Text); err != nil {
			return models.Rule{}, s.opts.rejected(ctx, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rs, err := s.load(ctx)
	if err != nil {
		return models.Rule{}, err
	}
	rule, err := rs.UpdateRule(id, upd)
	if err != nil {
		return models.Rule{}, err
	}
	if err := s.store.SaveRule(ctx, &rule); err != nil {
		return models.Rule{}, err
	}

	s.opts.publish(store.TopicRules, store.ChangeUpdated, rule.ID)
	logging.LogRuleChange(s.opts.log(ctx), string(store.ChangeUpdated), rule.ID, string(rule.Direction))
	return rule, nil
}

// Delete removes a rule. Other rules keep their order numbers.
func (s *RuleService) Delete(ctx context.Context, id string) error {
	if err := s.opts.access.CheckPermission(ctx, security.OpDeleteRule); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rs, err := s.load(ctx)
	if err != nil {
		return err
	}
	rule, err := rs.Get(id)
	if err != nil {
		return err
	}
	if err := rs.DeleteRule(id); err != nil {
		return err
	}
	if err := s.store.DeleteRule(ctx, id); err != nil {
		return err
	}

	s.opts.publish(store.TopicRules, store.ChangeDeleted, id)
	logging.LogRuleChange(s.opts.log(ctx), string(store.ChangeDeleted), id, string(rule.Direction))
	return nil
}

// Reorder renumbers direction d to follow orderedIDs.
func (s *RuleService) Reorder(ctx context.Context, d models.Direction, orderedIDs []string) ([]models.Rule, error) {
	if err := s.opts.access.CheckPermission(ctx, security.OpReorderRules); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := rs.Reorder(d, orderedIDs); err != nil {
		return nil, err
	}
	reordered := rs.ListByDirection(d)
	if err := s.store.SaveRules(ctx, reordered); err != nil {
		return nil, err
	}

	s.opts.publish(store.TopicRules, store.ChangeReordered, string(d))
	logging.LogRuleChange(s.opts.log(ctx), string(store.ChangeReordered), "", string(d))
	return reordered, nil
}

// Evaluate checks a free-text scenario against direction d's required rules.
func (s *RuleService) Evaluate(ctx context.Context, d models.Direction, scenario string) (models.RuleEvaluationResult, error) {
	if !d.Valid() {
		return models.RuleEvaluationResult{}, apperrors.NewValidationError("direction", d, "must be buy or sell")
	}
	rs, err := s.load(ctx)
	if err != nil {
		return models.RuleEvaluationResult{}, err
	}

	start := time.Now()
	result := rs.Evaluate(d, scenario)
	logging.LogEvaluation(s.opts.log(ctx), string(d), string(result.Outcome), len(result.EvaluatedAgainst), time.Since(start))
	return result, nil
}

// Check runs a scenario against every rule of direction d and reports
// per-rule detail, advisory rules included.
func (s *RuleService) Check(ctx context.Context, d models.Direction, scenario string) (rules.Report, error) {
	if !d.Valid() {
		return rules.Report{}, apperrors.NewValidationError("direction", d, "must be buy or sell")
	}
	rs, err := s.load(ctx)
	if err != nil {
		return rules.Report{}, err
	}

	start := time.Now()
	report := rs.Check(d, scenario)
	logging.LogEvaluation(s.opts.log(ctx), string(d), string(report.Result.Outcome), len(report.Result.EvaluatedAgainst), time.Since(start))
	return report, nil
}

// Import adds rules to the checklists, or replaces them entirely when
// replace is set. Imported rules get fresh ids and are appended per direction
// in their orderNumber order (file order breaks ties). Every rule is validated
// before anything is written.
func (s *RuleService) Import(ctx context.Context, imported []models.Rule, replace bool) ([]models.Rule, error) {
	if err := s.opts.access.CheckPermission(ctx, security.OpImportRules); err != nil {
		return nil, err
	}
	for _, r := range imported {
		if err := s.opts.validator.ValidateRuleText(r.Text); err != nil {
			return nil, s.opts.rejected(ctx, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	previous := rs.All()
	if replace {
		rs = rules.NewRuleSet(nil,
			rules.WithMatcher(s.opts.matcher),
			rules.WithClock(s.opts.now),
			rules.WithIDGenerator(s.opts.newID),
		)
	}

	ordered := append([]models.Rule(nil), imported...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OrderNumber < ordered[j].OrderNumber
	})

	added := make([]models.Rule, 0, len(ordered))
	for _, r := range ordered {
		rule, err := rs.AddRule(r.Direction, r.Text, r.Required)
		if err != nil {
			return nil, err
		}
		added = append(added, rule)
	}

	if replace {
		ids := make([]string, len(previous))
		for i, r := range previous {
			ids[i] = r.ID
		}
		err = s.store.ReplaceRules(ctx, ids, added)
	} else {
		err = s.store.SaveRules(ctx, added)
	}
	if err != nil {
		return nil, err
	}

	for _, r := range added {
		s.opts.publish(store.TopicRules, store.ChangeCreated, r.ID)
		logging.LogRuleChange(s.opts.log(ctx), "imported", r.ID, string(r.Direction))
	}
	return added, nil
}

// Export returns every rule grouped by direction in checklist order.
func (s *RuleService) Export(ctx context.Context) ([]models.Rule, error) {
	return s.List(ctx, "")
}
