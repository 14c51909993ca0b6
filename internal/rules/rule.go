// Package rules provides the compliance rule catalog and the matcher that
// evaluates transcript text against it.
package rules

import (
	"fmt"
	"regexp"
)

// Rule categories.
const (
	CategoryOffLabel          = "off_label"
	CategoryEfficacy          = "efficacy"
	CategorySafety            = "safety"
	CategoryContraindications = "contraindications"
	CategoryPricing           = "pricing"
	CategoryConfidence        = "confidence"
)

// Rule is a single compliance rule. Rules are immutable after the catalog
// is loaded and are shared read-only across all sessions.
type Rule struct {
	ID                  string
	Name                string
	Category            string
	Severity            string
	Message             string
	SuggestedResponse   string
	RegulationReference string

	patterns []*regexp.Regexp
}

// Matches reports whether any of the rule's patterns match the given
// normalized text. First match wins; a rule triggers at most once per
// evaluation regardless of how many of its patterns match.
func (r *Rule) Matches(text string) bool {
	for _, p := range r.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// ConfigError reports a rule pattern that failed to compile at load time.
// It is fatal: the service must not start with a partial catalog.
type ConfigError struct {
	RuleID  string
	Pattern string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rule %s: bad pattern %q: %v", e.RuleID, e.Pattern, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// compileRule builds a Rule from its raw definition. Patterns are compiled
// case-insensitively; evaluation additionally lower-cases the input text.
func compileRule(def ruleDef) (*Rule, error) {
	if len(def.Patterns) == 0 {
		return nil, &ConfigError{RuleID: def.ID, Err: fmt.Errorf("no patterns")}
	}
	r := &Rule{
		ID:                  def.ID,
		Name:                def.Name,
		Category:            def.Category,
		Severity:            def.Severity,
		Message:             def.Message,
		SuggestedResponse:   def.SuggestedResponse,
		RegulationReference: def.RegulationReference,
	}
	for _, p := range def.Patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, &ConfigError{RuleID: def.ID, Pattern: p, Err: err}
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// ruleDef is the raw, uncompiled form of a rule. Built-in defaults and YAML
// file entries both decode into this shape.
type ruleDef struct {
	ID                  string   `yaml:"id"`
	Name                string   `yaml:"name"`
	Category            string   `yaml:"category"`
	Severity            string   `yaml:"severity"`
	Patterns            []string `yaml:"patterns"`
	Message             string   `yaml:"message"`
	SuggestedResponse   string   `yaml:"suggested_response"`
	RegulationReference string   `yaml:"regulation_reference"`
}
