package rules

import (
	"strings"
	"unicode/utf8"
)

// DefaultMinTokenLength is the length a rule token must exceed to take part
// in matching. Shorter words ("for", "the", "on") are ignored.
const DefaultMinTokenLength = 3

// Match describes how a single rule fared against a scenario.
type Match struct {
	Satisfied bool
	Tokens    []string // tokens of the rule text found in the scenario
}

// Matcher decides whether a scenario satisfies a rule's text.
type Matcher interface {
	Match(ruleText, scenario string) Match
}

// TokenOverlapMatcher is a keyword heuristic: a rule is satisfied when at
// least one of its whitespace-separated tokens longer than MinLength runes is
// a substring of the scenario, both lower-cased. It does no stemming, negation
// handling or semantic matching, so "did not wait for the sweep" still
// satisfies "Wait for liquidity sweep".
type TokenOverlapMatcher struct {
	MinLength int
}

// NewTokenOverlapMatcher creates a matcher. A non-positive minLength falls
// back to DefaultMinTokenLength.
func NewTokenOverlapMatcher(minLength int) *TokenOverlapMatcher {
	if minLength <= 0 {
		minLength = DefaultMinTokenLength
	}
	return &TokenOverlapMatcher{MinLength: minLength}
}

// Tokens returns the lower-cased tokens of text that take part in matching.
func (m *TokenOverlapMatcher) Tokens(text string) []string {
	var tokens []string
	for _, field := range strings.Fields(text) {
		if utf8.RuneCountInString(field) > m.MinLength {
			tokens = append(tokens, strings.ToLower(field))
		}
	}
	return tokens
}

// Match implements Matcher.
func (m *TokenOverlapMatcher) Match(ruleText, scenario string) Match {
	haystack := strings.ToLower(scenario)
	var found []string
	for _, tok := range m.Tokens(ruleText) {
		if strings.Contains(haystack, tok) {
			found = append(found, tok)
		}
	}
	return Match{Satisfied: len(found) > 0, Tokens: found}
}
