package rules

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"ai-compliance-copilot-service/internal/models"
)

// maxMatchedText bounds how much of the offending text a Violation carries.
const maxMatchedText = 200

// Violation is a detected match between a transcript segment and a rule.
// Violations are created by the matcher and never mutated afterwards; the
// alert dispatcher owns them once returned.
type Violation struct {
	RuleID              string
	RuleName            string
	Category            string
	Severity            string
	Message             string
	SuggestedResponse   string
	RegulationReference string
	MatchedText         string
	Timestamp           time.Time
	SessionID           string
}

// Matcher evaluates text against a shared catalog. It is stateless and safe
// for concurrent use by any number of sessions.
type Matcher struct {
	catalog *Catalog
	budget  time.Duration
}

// DefaultMatchBudget caps the evaluation time spent on a single segment.
// Exceeding it skips the remaining rules for that segment only.
const DefaultMatchBudget = 250 * time.Millisecond

// NewMatcher creates a matcher over the given catalog. A zero budget means
// DefaultMatchBudget.
func NewMatcher(catalog *Catalog, budget time.Duration) *Matcher {
	if budget <= 0 {
		budget = DefaultMatchBudget
	}
	return &Matcher{catalog: catalog, budget: budget}
}

// Budget returns the per-segment evaluation time budget.
func (m *Matcher) Budget() time.Duration {
	return m.budget
}

// Evaluate checks text against every rule in the catalog and returns one
// Violation per matching rule, in catalog insertion order. There is no
// short-circuit on first match: the dispatcher needs the complete set for
// severity ranking. Within a rule, any one pattern matching triggers the
// rule once.
func (m *Matcher) Evaluate(text string) []Violation {
	normalized := strings.ToLower(text)
	start := time.Now()

	var violations []Violation
	for i, rule := range m.catalog.Rules() {
		if time.Since(start) > m.budget {
			log.Warn().
				Str("ruleId", rule.ID).
				Int("rulesSkipped", m.catalog.Len()-i).
				Dur("budget", m.budget).
				Msg("Match budget exceeded, skipping remaining rules for segment")
			break
		}
		if !rule.Matches(normalized) {
			continue
		}
		violations = append(violations, Violation{
			RuleID:              rule.ID,
			RuleName:            rule.Name,
			Category:            rule.Category,
			Severity:            rule.Severity,
			Message:             rule.Message,
			SuggestedResponse:   rule.SuggestedResponse,
			RegulationReference: rule.RegulationReference,
			MatchedText:         truncate(text, maxMatchedText),
			Timestamp:           time.Now().UTC(),
		})
	}
	return violations
}

// CoachingTip returns the suggested phrasing for the most severe violation,
// or an empty string when there is nothing to coach.
func CoachingTip(violations []Violation) string {
	if len(violations) == 0 {
		return ""
	}
	top := violations[0]
	for _, v := range violations[1:] {
		if models.SeverityRank(v.Severity) < models.SeverityRank(top.Severity) {
			top = v
		}
	}
	if top.SuggestedResponse != "" {
		return top.SuggestedResponse
	}
	return "Avoid discussing " + top.Category + ". Stick to approved messaging."
}

// truncate cuts s to at most n bytes without splitting a multibyte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
