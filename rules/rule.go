package rules

import (
	"errors"
	"fmt"
	"slices"

	"github.com/liamcoop/csvetl/expr"
)

// Rule is a compiled Definition. It is immutable and safe for concurrent use.
type Rule struct {
	def    Definition
	fields []string // resolved source for Calculation rules
	list   bool     // source was a list, so the chain receives a list
	chain  expr.Chain
}

// NewRule validates def, fills in the defaults (Static, String, String) and compiles its operations
func NewRule(def Definition) (*Rule, error) {
	c, err := expr.Default()
	if err != nil {
		return nil, err
	}
	return newRule(c, 0, def)
}

func newRule(c *expr.Compiler, index int, def Definition) (*Rule, error) {
	def = def.clone()
	invalid := func(err error) error {
		return &ValidationError{Index: index, Target: def.Target, Err: err}
	}

	if def.Target == "" {
		return nil, invalid(errors.New("target is required"))
	}
	if def.Type == "" {
		def.Type = Static
	}
	if def.InputType == "" {
		def.InputType = String
	}
	if def.OutputType == "" {
		def.OutputType = String
	}

	var err error
	if def.Type, err = ParseRuleType(string(def.Type)); err != nil {
		return nil, invalid(err)
	}
	if def.InputType, err = ParseInputType(string(def.InputType)); err != nil {
		return nil, invalid(err)
	}
	if def.OutputType, err = ParseOutputType(string(def.OutputType)); err != nil {
		return nil, invalid(err)
	}

	r := &Rule{def: def}

	switch def.Type {
	case Static:
	case Calculation:
		if r.fields, r.list, err = sourceFields(def.Source); err != nil {
			return nil, invalid(err)
		}
	}

	r.chain, err = c.Compile(def.Operations, def.OutputType == Date)
	if err != nil {
		return nil, invalid(err)
	}

	return r, nil
}

// sourceFields accepts a field name or a list of field names
func sourceFields(source any) ([]string, bool, error) {
	switch s := source.(type) {
	case string:
		if s == "" {
			return nil, false, errors.New("calculation source cannot be empty")
		}
		return []string{s}, false, nil
	case []string:
		return slices.Clone(s), true, nil
	case []any:
		fields := make([]string, 0, len(s))
		for i, item := range s {
			name, ok := item.(string)
			if !ok {
				return nil, false, fmt.Errorf("calculation source #%d must be a field name, got %T", i, item)
			}
			fields = append(fields, name)
		}
		return fields, true, nil
	default:
		return nil, false, fmt.Errorf("calculation source must be a field name or a list of field names, got %T", source)
	}
}

// Target returns the output field name
func (r *Rule) Target() string { return r.def.Target }

// Type returns the rule type
func (r *Rule) Type() RuleType { return r.def.Type }

// InputType returns the cast applied to fetched source values
func (r *Rule) InputType() ValueType { return r.def.InputType }

// OutputType returns the cast applied to the chain result
func (r *Rule) OutputType() ValueType { return r.def.OutputType }

// Definition returns a copy of the normalized definition
func (r *Rule) Definition() Definition { return r.def.clone() }

// Execute resolves the rule against one row.
// Failures are returned in Result.Err as *SourceNotFoundError,
// *ConversionError or *expr.EvaluationError.
func (r *Rule) Execute(row Row) Result {
	value, err := r.initial(row)
	if err != nil {
		return r.fail(err)
	}

	value, err = r.chain.Apply(value)
	if err != nil {
		return r.fail(err)
	}

	value, err = Cast(value, r.def.OutputType)
	if err != nil {
		return r.fail(r.conversion(err, StageOutput))
	}

	return Result{Target: r.def.Target, Value: value}
}

func (r *Rule) initial(row Row) (any, error) {
	switch r.def.Type {
	case Static:
		return r.def.Source, nil
	case Calculation:
		if !r.list {
			return r.fetch(r.fields[0], row)
		}
		values := make([]any, 0, len(r.fields))
		for _, field := range r.fields {
			v, err := r.fetch(field, row)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("unknown rule type %q", r.def.Type)
	}
}

func (r *Rule) fetch(field string, row Row) (any, error) {
	raw, ok := row[field]
	if !ok {
		return nil, &SourceNotFoundError{Field: field}
	}
	v, err := Cast(raw, r.def.InputType)
	if err != nil {
		return nil, r.conversion(err, StageInput)
	}
	return v, nil
}

func (r *Rule) conversion(err error, stage Stage) error {
	var ce *ConversionError
	if errors.As(err, &ce) {
		ce.Rule = r.def.Target
		ce.Stage = stage
	}
	return err
}

func (r *Rule) fail(err error) Result {
	return Result{Target: r.def.Target, Err: err}
}

// AsMap describes the rule for diagnostics and round-tripping
func (r *Rule) AsMap() map[string]any {
	return map[string]any{
		"target":      r.def.Target,
		"type":        string(r.def.Type),
		"input_type":  string(r.def.InputType),
		"output_type": string(r.def.OutputType),
		"source":      r.def.clone().Source,
		"operations":  slices.Clone(r.def.Operations),
	}
}

func (r *Rule) String() string {
	return fmt.Sprintf("%s rule %q (%s -> %s, %d operations)",
		r.def.Type, r.def.Target, r.def.InputType, r.def.OutputType, r.chain.Len())
}
