package rules

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Catalog is the ordered, immutable set of compliance rules. It is loaded
// once at startup and shared read-only across all sessions, so concurrent
// matcher evaluations need no synchronization.
type Catalog struct {
	rules []*Rule
}

// ruleFile is the YAML document shape for a custom rule file.
type ruleFile struct {
	Rules []ruleDef `yaml:"rules"`
}

// Load builds the catalog from the built-in default rules plus, when path
// is non-empty, additional rules from a YAML file. Any pattern that fails
// to compile returns a *ConfigError and the catalog is not usable.
func Load(path string) (*Catalog, error) {
	defs := make([]ruleDef, 0, len(defaultRuleDefs))
	defs = append(defs, defaultRuleDefs...)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rules file: %w", err)
		}
		var file ruleFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse rules file %s: %w", path, err)
		}
		defs = append(defs, file.Rules...)
	}

	c := &Catalog{rules: make([]*Rule, 0, len(defs))}
	for _, def := range defs {
		r, err := compileRule(def)
		if err != nil {
			return nil, err
		}
		c.rules = append(c.rules, r)
	}

	log.Info().
		Int("ruleCount", len(c.rules)).
		Str("rulesFile", path).
		Msg("Compliance rule catalog loaded")

	return c, nil
}

// Rules returns the rules in insertion order. Callers must not mutate the
// returned slice.
func (c *Catalog) Rules() []*Rule {
	return c.rules
}

// Len returns the number of rules in the catalog.
func (c *Catalog) Len() int {
	return len(c.rules)
}

// ByCategory returns the rules belonging to a category, in catalog order.
func (c *Catalog) ByCategory(category string) []*Rule {
	var out []*Rule
	for _, r := range c.rules {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}
