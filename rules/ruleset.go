package rules

import (
	"github.com/liamcoop/csvetl/expr"
	"github.com/liamcoop/csvetl/internal/logger"
)

// RuleSet is an ordered list of rules describing one output record.
// It is built once and read-only afterwards.
type RuleSet struct {
	rules   []*Rule
	targets []string
}

// NewRuleSet compiles one rule per definition, preserving order.
// The first invalid definition aborts construction with a *ValidationError.
func NewRuleSet(defs ...Definition) (*RuleSet, error) {
	c, err := expr.Default()
	if err != nil {
		return nil, err
	}
	return NewRuleSetWithCompiler(c, defs...)
}

// NewRuleSetWithCompiler is NewRuleSet with an explicit expression compiler
func NewRuleSetWithCompiler(c *expr.Compiler, defs ...Definition) (*RuleSet, error) {
	rs := &RuleSet{
		rules: make([]*Rule, 0, len(defs)),
	}

	seen := make(map[string]bool, len(defs))
	for i, def := range defs {
		r, err := newRule(c, i, def)
		if err != nil {
			return nil, err
		}
		rs.rules = append(rs.rules, r)

		// Later rules overwrite earlier ones in the record
		if seen[r.Target()] {
			logger.Warn("duplicate rule target, later rule overwrites earlier value", "target", r.Target(), "index", i)
			continue
		}
		seen[r.Target()] = true
		rs.targets = append(rs.targets, r.Target())
	}

	return rs, nil
}

// Rules returns the rules in order
func (rs *RuleSet) Rules() []*Rule {
	out := make([]*Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Len returns the number of rules
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Targets returns the distinct target names in first-appearance order
func (rs *RuleSet) Targets() []string {
	out := make([]string, len(rs.targets))
	copy(out, rs.targets)
	return out
}

// Definitions returns the normalized definitions in order
func (rs *RuleSet) Definitions() []Definition {
	out := make([]Definition, 0, len(rs.rules))
	for _, r := range rs.rules {
		out = append(out, r.Definition())
	}
	return out
}

// Execute runs every rule against row, in order, and returns one Result per rule
func (rs *RuleSet) Execute(row Row) []Result {
	results := make([]Result, 0, len(rs.rules))
	for _, r := range rs.rules {
		results = append(results, r.Execute(row))
	}
	return results
}
