package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// documentRule mirrors one entry of a rule-set document. Pointers tell a
// missing key apart from an empty value.
type documentRule struct {
	Target     *string  `yaml:"target"`
	Type       *string  `yaml:"type"`
	InputType  *string  `yaml:"input_type"`
	OutputType *string  `yaml:"output_type"`
	Source     any      `yaml:"source"`
	Operations []string `yaml:"operations"`
}

type document struct {
	Rules *[]documentRule `yaml:"rules"`
}

// ParseDefinitions decodes a rule-set document without compiling it.
// target, type, input_type, output_type and source are required; operations defaults to none.
func ParseDefinitions(data []byte) ([]Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Index: -1, Err: errors.New("empty rule set document")}
		}
		return nil, fmt.Errorf("failed to parse rule set document: %w", err)
	}
	if doc.Rules == nil {
		return nil, &ValidationError{Index: -1, Err: errors.New("document has no rules list")}
	}

	defs := make([]Definition, 0, len(*doc.Rules))
	for i, dr := range *doc.Rules {
		def, err := dr.definition()
		if err != nil {
			target := ""
			if dr.Target != nil {
				target = *dr.Target
			}
			return nil, &ValidationError{Index: i, Target: target, Err: err}
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (dr documentRule) definition() (Definition, error) {
	required := []struct {
		key string
		val *string
	}{
		{"target", dr.Target},
		{"type", dr.Type},
		{"input_type", dr.InputType},
		{"output_type", dr.OutputType},
	}
	for _, r := range required {
		if r.val == nil {
			return Definition{}, fmt.Errorf("missing required key %q", r.key)
		}
	}
	if dr.Source == nil {
		return Definition{}, errors.New(`missing required key "source"`)
	}

	ops := dr.Operations
	if ops == nil {
		ops = []string{}
	}

	return Definition{
		Target:     *dr.Target,
		Type:       RuleType(*dr.Type),
		InputType:  ValueType(*dr.InputType),
		OutputType: ValueType(*dr.OutputType),
		Source:     dr.Source,
		Operations: ops,
	}, nil
}

// Parse decodes and compiles a rule-set document
func Parse(data []byte) (*RuleSet, error) {
	defs, err := ParseDefinitions(data)
	if err != nil {
		return nil, err
	}
	return NewRuleSet(defs...)
}

// Load reads and compiles the rule-set document at path
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by caller
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// MarshalDefinitions encodes definitions in the document shape Parse accepts
func MarshalDefinitions(defs []Definition) ([]byte, error) {
	type out struct {
		Rules []Definition `yaml:"rules"`
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(out{Rules: defs}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Marshal encodes the rule set as a rule-set document
func (rs *RuleSet) Marshal() ([]byte, error) {
	return MarshalDefinitions(rs.Definitions())
}
