package rules

import (
	"fmt"
	"slices"
)

// RuleType selects how a rule obtains its initial value
type RuleType string

const (
	// Static uses the rule source verbatim, without a row lookup
	Static RuleType = "Static"
	// Calculation resolves the source field name(s) against the current row
	Calculation RuleType = "Calculation"
)

// ParseRuleType validates a declarative rule type tag
func ParseRuleType(s string) (RuleType, error) {
	switch RuleType(s) {
	case Static, Calculation:
		return RuleType(s), nil
	default:
		return "", fmt.Errorf("unknown rule type %q (must be one of: Static, Calculation)", s)
	}
}

// ValueType is the closed set of types a value can be cast to.
// Input casting accepts String, Integer and Decimal; output casting also accepts Date.
type ValueType string

const (
	String  ValueType = "String"
	Integer ValueType = "Integer"
	Decimal ValueType = "Decimal"
	Date    ValueType = "Date"
)

// ParseInputType validates an input_type tag
func ParseInputType(s string) (ValueType, error) {
	switch ValueType(s) {
	case String, Integer, Decimal:
		return ValueType(s), nil
	default:
		return "", fmt.Errorf("unknown input type %q (must be one of: String, Integer, Decimal)", s)
	}
}

// ParseOutputType validates an output_type tag
func ParseOutputType(s string) (ValueType, error) {
	switch ValueType(s) {
	case String, Integer, Decimal, Date:
		return ValueType(s), nil
	default:
		return "", fmt.Errorf("unknown output type %q (must be one of: String, Integer, Decimal, Date)", s)
	}
}

// Row is one source record: column name -> raw text value
type Row map[string]string

// Definition is the declarative form of a rule, as read from a rule-set document
type Definition struct {
	Target     string    `yaml:"target" json:"target"`
	Type       RuleType  `yaml:"type" json:"type"`
	InputType  ValueType `yaml:"input_type" json:"input_type"`
	OutputType ValueType `yaml:"output_type" json:"output_type"`
	// Source is a field name, a list of field names, or a literal for Static rules
	Source     any      `yaml:"source" json:"source"`
	Operations []string `yaml:"operations,omitempty" json:"operations,omitempty"`
}

// clone returns a copy that shares no slices with d
func (d Definition) clone() Definition {
	c := d
	c.Operations = slices.Clone(d.Operations)
	if c.Operations == nil {
		c.Operations = []string{}
	}
	if list, ok := d.Source.([]string); ok {
		c.Source = slices.Clone(list)
	}
	if list, ok := d.Source.([]any); ok {
		c.Source = slices.Clone(list)
	}
	return c
}

// Result is the outcome of executing a rule against one row.
// Exactly one of Value or Err is meaningful.
type Result struct {
	Target string
	Value  any
	Err    error
}

// OK reports whether the rule produced a value
func (r Result) OK() bool {
	return r.Err == nil
}
