package rules

import "mentor-desk/internal/models"

// RuleCheck is the detail for one rule in a Report.
type RuleCheck struct {
	Rule      models.Rule `json:"rule"`
	Satisfied bool        `json:"satisfied"`
	Matched   []string    `json:"matched"`
}

// Report is a full simulation of a scenario against a direction's checklist.
// Advisory rules are checked and reported but do not change Result.
type Report struct {
	Direction models.Direction            `json:"direction"`
	Scenario  string                      `json:"scenario"`
	Result    models.RuleEvaluationResult `json:"result"`
	Checks    []RuleCheck                 `json:"checks"`
}

// Check simulates scenario against every rule of direction d.
func (s *RuleSet) Check(d models.Direction, scenario string) Report {
	report := Report{
		Direction: d,
		Scenario:  scenario,
		Result:    s.Evaluate(d, scenario),
		Checks:    []RuleCheck{},
	}
	for _, r := range s.ListByDirection(d) {
		m := s.matcher.Match(r.Text, scenario)
		report.Checks = append(report.Checks, RuleCheck{
			Rule:      r,
			Satisfied: m.Satisfied,
			Matched:   m.Tokens,
		})
	}
	return report
}

// FailedRequired returns the required rules that were not satisfied.
func (r Report) FailedRequired() []models.Rule {
	var out []models.Rule
	for _, c := range r.Checks {
		if c.Rule.Required && !c.Satisfied {
			out = append(out, c.Rule)
		}
	}
	return out
}

// MissedAdvisory returns the advisory rules that were not satisfied.
func (r Report) MissedAdvisory() []models.Rule {
	var out []models.Rule
	for _, c := range r.Checks {
		if !c.Rule.Required && !c.Satisfied {
			out = append(out, c.Rule)
		}
	}
	return out
}

// Validation maps the report onto a trade validation result: rejected when a
// required rule fails, warning when only advisory rules are missed, approved
// otherwise.
func (r Report) Validation() models.ValidationResult {
	switch {
	case !r.Result.Approved():
		return models.ValidationRejected
	case len(r.MissedAdvisory()) > 0:
		return models.ValidationWarning
	default:
		return models.ValidationApproved
	}
}
