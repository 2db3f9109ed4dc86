package rules

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/liamcoop/csvetl/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRule(t *testing.T, def Definition) *Rule {
	t.Helper()
	r, err := NewRule(def)
	require.NoError(t, err)
	return r
}

// TestStaticRule verifies Static rules never look at the row
func TestStaticRule(t *testing.T) {
	r := mustRule(t, Definition{
		Source:     "test",
		Target:     "Target",
		Type:       Static,
		InputType:  String,
		OutputType: String,
	})

	res := r.Execute(Row{})
	require.NoError(t, res.Err)
	assert.Equal(t, "Target", res.Target)
	assert.Equal(t, "test", res.Value)
}

func TestStaticRuleRunsChainAndOutputCast(t *testing.T) {
	r := mustRule(t, Definition{
		Source:     "1,500",
		Target:     "Amount",
		Type:       Static,
		OutputType: Integer,
		Operations: []string{`s.replace(",", "")`},
	})

	res := r.Execute(nil)
	require.NoError(t, res.Err)
	assert.Equal(t, int64(1500), res.Value)
}

func TestSimpleRule(t *testing.T) {
	r := mustRule(t, Definition{
		Source:     "test",
		Target:     "Target",
		Type:       Calculation,
		InputType:  String,
		OutputType: String,
	})

	res := r.Execute(Row{"test": "value"})
	require.NoError(t, res.Err)
	assert.Equal(t, "value", res.Value)
}

func TestCalculationRuleOperations(t *testing.T) {
	r := mustRule(t, Definition{
		Source:     "test",
		Target:     "Target",
		Type:       Calculation,
		InputType:  String,
		OutputType: String,
		Operations: []string{"s.title()"},
	})

	res := r.Execute(Row{"test": "test value"})
	require.NoError(t, res.Err)
	assert.Equal(t, "Target", res.Target)
	assert.Equal(t, "Test Value", res.Value)
}

func TestCalculationRuleListSource(t *testing.T) {
	r := mustRule(t, Definition{
		Source:     []string{"num1", "num2"},
		Target:     "Target",
		Type:       Calculation,
		InputType:  Decimal,
		OutputType: Decimal,
		Operations: []string{"s[0] * s[1]"},
	})

	res := r.Execute(Row{"num1": "2", "num2": "6,123"})
	require.NoError(t, res.Err)
	assert.Equal(t, 12246.0, res.Value)
}

// TestListSourceReachesChainAsList verifies the chain sees the resolved values in source order
func TestListSourceReachesChainAsList(t *testing.T) {
	r := mustRule(t, Definition{
		Source:     []any{"b", "a"},
		Target:     "Joined",
		Type:       Calculation,
		OutputType: String,
		Operations: []string{`s.join("-")`},
	})

	res := r.Execute(Row{"a": "first", "b": "second"})
	require.NoError(t, res.Err)
	assert.Equal(t, "second-first", res.Value)
}

func TestSplitCastsAcrossInputAndOutput(t *testing.T) {
	r := mustRule(t, Definition{
		Source:     []string{"price", "qty"},
		Target:     "Total",
		Type:       Calculation,
		InputType:  Decimal,
		OutputType: Integer,
		Operations: []string{"s[0] * s[1]"},
	})

	res := r.Execute(Row{"price": "6,123", "qty": "2"})
	require.NoError(t, res.Err)
	assert.Equal(t, int64(12246), res.Value)
}

func TestIntegerInputDividesExactly(t *testing.T) {
	testCases := []struct {
		name     string
		in       string
		output   ValueType
		expected any
	}{
		{"decimal output", "5", Decimal, 2.5},
		{"integer output truncates after dividing", "5", Integer, int64(2)},
		{"string output", "5", String, "2.5"},
		{"exact quotient keeps decimal point", "4", String, "2.0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := mustRule(t, Definition{
				Source: "n", Target: "Half", Type: Calculation,
				InputType: Integer, OutputType: tc.output,
				Operations: []string{"s / 2"},
			})

			res := r.Execute(Row{"n": tc.in})
			require.NoError(t, res.Err)
			assert.Equal(t, tc.expected, res.Value)
		})
	}
}

func TestMixedNumericOperands(t *testing.T) {
	r := mustRule(t, Definition{
		Source: "n", Target: "Scaled", Type: Calculation,
		InputType: Decimal, OutputType: Decimal,
		Operations: []string{"s * 2"},
	})
	res := r.Execute(Row{"n": "1.5"})
	require.NoError(t, res.Err)
	assert.Equal(t, 3.0, res.Value)

	r = mustRule(t, Definition{
		Source: []string{"a", "b"}, Target: "Scaled", Type: Calculation,
		InputType: Integer, OutputType: Decimal,
		Operations: []string{"s[0] * 1.5 + s[1]"},
	})
	res = r.Execute(Row{"a": "2", "b": "1"})
	require.NoError(t, res.Err)
	assert.Equal(t, 4.0, res.Value)
}

func TestIntegerOutputOutOfRange(t *testing.T) {
	r := mustRule(t, Definition{
		Source: "n", Target: "Big", Type: Calculation,
		InputType: Decimal, OutputType: Integer,
		Operations: []string{"s * 1000.0"},
	})

	res := r.Execute(Row{"n": "1e17"})
	require.Error(t, res.Err)
	assert.True(t, errors.Is(res.Err, ErrConversion))

	var ce *ConversionError
	require.True(t, errors.As(res.Err, &ce))
	assert.Equal(t, StageOutput, ce.Stage)
	assert.ErrorIs(t, ce, strconv.ErrRange)
}

func TestDateCalculationRule(t *testing.T) {
	r := mustRule(t, Definition{
		Source:     []string{"day", "month", "year"},
		Target:     "Target",
		Type:       Calculation,
		InputType:  Integer,
		OutputType: Date,
		Operations: []string{"datetime(s[2], s[1], s[0])"},
	})

	res := r.Execute(Row{"month": "1", "day": "1", "year": "2020"})
	require.NoError(t, res.Err)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), res.Value)
}

func TestRuleSourceNotFound(t *testing.T) {
	r := mustRule(t, Definition{
		Source:     "test",
		Target:     "Target",
		Type:       Calculation,
		InputType:  String,
		OutputType: String,
	})

	res := r.Execute(Row{"t": "value"})
	require.Error(t, res.Err)
	assert.False(t, res.OK())
	assert.True(t, errors.Is(res.Err, ErrSourceNotFound))

	var snf *SourceNotFoundError
	require.True(t, errors.As(res.Err, &snf))
	assert.Equal(t, "test", snf.Field)
}

func TestListSourceNotFound(t *testing.T) {
	r := mustRule(t, Definition{
		Source:     []string{"day", "month", "year"},
		Target:     "Target",
		Type:       Calculation,
		InputType:  Integer,
		OutputType: Date,
		Operations: []string{"datetime(s[2], s[1], s[0])"},
	})

	res := r.Execute(Row{"m": "1", "d": "1", "y": "2020"})
	assert.True(t, errors.Is(res.Err, ErrSourceNotFound))
}

func TestRuleConversionErrorStages(t *testing.T) {
	input := mustRule(t, Definition{
		Source: "n", Target: "N", Type: Calculation,
		InputType: Integer, OutputType: Integer,
	})
	res := input.Execute(Row{"n": "abc"})
	var ce *ConversionError
	require.True(t, errors.As(res.Err, &ce))
	assert.Equal(t, StageInput, ce.Stage)
	assert.Equal(t, "N", ce.Rule)

	output := mustRule(t, Definition{
		Source: "n", Target: "N", Type: Calculation,
		InputType: String, OutputType: Decimal,
	})
	res = output.Execute(Row{"n": "abc"})
	require.True(t, errors.As(res.Err, &ce))
	assert.Equal(t, StageOutput, ce.Stage)
	assert.Equal(t, Decimal, ce.Target)
}

func TestRuleEvaluationError(t *testing.T) {
	r := mustRule(t, Definition{
		Source: "n", Target: "N", Type: Calculation,
		InputType: Integer, OutputType: Integer,
		Operations: []string{"s / 0"},
	})

	res := r.Execute(Row{"n": "4"})
	assert.True(t, errors.Is(res.Err, expr.ErrEvaluation))
}

// TestRuleMatchesComposition verifies execute == cast(apply(cast(row[source], in), ops), out)
func TestRuleMatchesComposition(t *testing.T) {
	ops := []string{"s * 3", "s - 1"}
	r := mustRule(t, Definition{
		Source: "n", Target: "N", Type: Calculation,
		InputType: Integer, OutputType: String, Operations: ops,
	})

	c, err := expr.Default()
	require.NoError(t, err)
	chain, err := c.Compile(ops, false)
	require.NoError(t, err)

	for _, raw := range []string{"1", "1,000", "-7"} {
		in, err := Cast(raw, Integer)
		require.NoError(t, err)
		applied, err := chain.Apply(in)
		require.NoError(t, err)
		want, err := Cast(applied, String)
		require.NoError(t, err)

		res := r.Execute(Row{"n": raw})
		require.NoError(t, res.Err)
		assert.Equal(t, want, res.Value, raw)
	}
}

func TestNewRuleDefaults(t *testing.T) {
	r := mustRule(t, Definition{Target: "Unit", Source: "kg"})

	assert.Equal(t, Static, r.Type())
	assert.Equal(t, String, r.InputType())
	assert.Equal(t, String, r.OutputType())
	assert.Equal(t, []string{}, r.Definition().Operations)
}

func TestNewRuleValidation(t *testing.T) {
	testCases := []struct {
		name    string
		def     Definition
		wantErr string
	}{
		{"missing target", Definition{Source: "x"}, "target is required"},
		{"unknown type", Definition{Target: "T", Type: "Lookup", Source: "x"}, "unknown rule type"},
		{"date input", Definition{Target: "T", InputType: Date, Source: "x"}, "unknown input type"},
		{"unknown output", Definition{Target: "T", OutputType: "Money", Source: "x"}, "unknown output type"},
		{"numeric calculation source", Definition{Target: "T", Type: Calculation, Source: 5}, "field name"},
		{"empty calculation source", Definition{Target: "T", Type: Calculation, Source: ""}, "cannot be empty"},
		{"mixed list source", Definition{Target: "T", Type: Calculation, Source: []any{"a", 1}}, "#1"},
		{"bad operation", Definition{Target: "T", Source: "x", Operations: []string{"s +"}}, "operation #0"},
		{"date function without date output", Definition{Target: "T", Source: "x", Operations: []string{"datetime(1, 1, 1)"}}, "operation #0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRule(tc.def)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// TestOperationsAreNotShared verifies a rule keeps its own copy of the operations
func TestOperationsAreNotShared(t *testing.T) {
	ops := []string{"s.upper()"}
	r := mustRule(t, Definition{Target: "T", Source: "x", Operations: ops})

	ops[0] = "s.lower()"
	assert.Equal(t, []string{"s.upper()"}, r.Definition().Operations)

	got := r.Definition()
	got.Operations[0] = "changed"
	assert.Equal(t, []string{"s.upper()"}, r.Definition().Operations)

	res := r.Execute(nil)
	require.NoError(t, res.Err)
	assert.Equal(t, "X", res.Value)
}

func TestRuleAsMap(t *testing.T) {
	r := mustRule(t, Definition{
		Source:     "Test Source",
		Target:     "TestTarget",
		Type:       Calculation,
		InputType:  String,
		OutputType: String,
	})

	assert.Equal(t, map[string]any{
		"target":      "TestTarget",
		"type":        "Calculation",
		"input_type":  "String",
		"output_type": "String",
		"source":      "Test Source",
		"operations":  []string{},
	}, r.AsMap())
}
