// Package security provides input validation, read-only access control and audit logging.
package security

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "mentor-desk/internal/errors"
)

// Limits applied to journal input.
const (
	MaxRuleTextLength = 500
	MaxNotesLength    = 5000
	MaxLabelLength    = 100
	MaxTagCount       = 20
	MaxPrice          = 1e9
	MinConfidence     = 1
	MaxConfidence     = 10
)

// Validation patterns
var (
	// Pair pattern: FX pairs, metals, indices and crypto tickers, optionally slash-separated
	pairPattern = regexp.MustCompile(`^[A-Z0-9]{2,10}(/[A-Z0-9]{2,10})?$`)

	// ID pattern: uuids and other simple identifiers
	idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

	// SQL injection patterns
	sqlInjectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(union\s+select|select\s+\*|drop\s+table|insert\s+into|delete\s+from)`),
		regexp.MustCompile(`(?i)(or\s+1\s*=\s*1|and\s+1\s*=\s*1)`),
		regexp.MustCompile(`(--|\x00)`),
	}

	// Command injection patterns
	cmdInjectionPatterns = []*regexp.Regexp{
		regexp.MustCompile("[`$]\\("),
		regexp.MustCompile(`(?i)(rm\s+-rf|sh\s+-c|\beval\s*\()`),
	}
)

// TradeValidator validates rule and trade input before it reaches the journal.
type TradeValidator struct {
	strictMode bool
}

// NewTradeValidator creates a new validator. Strict mode also rejects free
// text that looks like an injection attempt.
func NewTradeValidator(strictMode bool) *TradeValidator {
	return &TradeValidator{strictMode: strictMode}
}

// StrictMode reports whether strict text checks are enabled.
func (v *TradeValidator) StrictMode() bool {
	return v.strictMode
}

// NormalizePair upper-cases and trims a pair symbol.
func NormalizePair(pair string) string {
	return strings.ToUpper(strings.TrimSpace(pair))
}

// ValidatePair validates a traded instrument symbol such as EURUSD or BTC/USDT.
func (v *TradeValidator) ValidatePair(pair string) error {
	pair = NormalizePair(pair)

	if pair == "" {
		return apperrors.NewValidationError("pair", pair, "pair cannot be empty")
	}
	if !pairPattern.MatchString(pair) {
		return apperrors.NewValidationError("pair", pair, "invalid pair format")
	}
	return nil
}

// ValidateID validates a rule or trade id.
func (v *TradeValidator) ValidateID(field, id string) error {
	if !idPattern.MatchString(id) {
		return apperrors.NewValidationError(field, id, "invalid id format")
	}
	return nil
}

// ValidatePrice validates a price that must be positive.
func (v *TradeValidator) ValidatePrice(field string, price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return apperrors.NewValidationError(field, price, "must be a finite number")
	}
	if price <= 0 {
		return apperrors.NewValidationError(field, price, "must be positive")
	}
	if price > MaxPrice {
		return apperrors.NewValidationError(field, price, "exceeds maximum allowed")
	}
	return nil
}

// ValidateOptionalPrice validates a price that may be zero (unset).
func (v *TradeValidator) ValidateOptionalPrice(field string, price float64) error {
	if price == 0 {
		return nil
	}
	return v.ValidatePrice(field, price)
}

// ValidateAmount validates a non-negative amount such as risk or position size.
func (v *TradeValidator) ValidateAmount(field string, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return apperrors.NewValidationError(field, amount, "must be a finite number")
	}
	if amount < 0 {
		return apperrors.NewValidationError(field, amount, "cannot be negative")
	}
	return nil
}

// ValidatePnL validates a realized P&L.
func (v *TradeValidator) ValidatePnL(pnl float64) error {
	if math.IsNaN(pnl) || math.IsInf(pnl, 0) {
		return apperrors.NewValidationError("pnl", pnl, "must be a finite number")
	}
	return nil
}

// ValidateConfidence validates a 1-10 confidence level. Zero means unset.
func (v *TradeValidator) ValidateConfidence(level int) error {
	if level == 0 {
		return nil
	}
	if level < MinConfidence || level > MaxConfidence {
		return apperrors.NewValidationError("confidenceLevel", level, fmt.Sprintf("must be between %d and %d", MinConfidence, MaxConfidence))
	}
	return nil
}

// ValidateRuleText validates the text of a checklist rule.
func (v *TradeValidator) ValidateRuleText(text string) error {
	if strings.TrimSpace(text) == "" {
		return apperrors.NewValidationError("text", text, "rule text cannot be empty")
	}
	return v.ValidateText("text", text, MaxRuleTextLength)
}

// ValidateText validates free-form text input.
func (v *TradeValidator) ValidateText(field, text string, maxLen int) error {
	if utf8.RuneCountInString(text) > maxLen {
		return apperrors.NewValidationError(field, truncate(text, 50), fmt.Sprintf("text too long (max %d characters)", maxLen))
	}

	if v.strictMode && containsInjection(text) {
		return apperrors.NewValidationError(field, truncate(text, 50), "potentially dangerous content detected")
	}

	return nil
}

// ValidateLabels validates list fields such as tags and emotions.
func (v *TradeValidator) ValidateLabels(field string, labels []string) error {
	if len(labels) > MaxTagCount {
		return apperrors.NewValidationError(field, len(labels), fmt.Sprintf("too many entries (max %d)", MaxTagCount))
	}
	for _, l := range labels {
		if err := v.ValidateText(field, l, MaxLabelLength); err != nil {
			return err
		}
	}
	return nil
}

// containsInjection checks for SQL or command injection patterns.
func containsInjection(input string) bool {
	for _, pattern := range sqlInjectionPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	for _, pattern := range cmdInjectionPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// SanitizeText removes control characters except newlines and tabs.
func SanitizeText(text string) string {
	var result strings.Builder
	for _, r := range text {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// SanitizeLabels trims, sanitizes and de-duplicates list entries, dropping empties.
func SanitizeLabels(labels []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(SanitizeText(l))
		key := strings.ToLower(l)
		if l == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}
