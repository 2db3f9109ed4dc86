package expr

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

type step struct {
	expression string
	prog       cel.Program
}

// Chain is an ordered list of compiled operations.
// The zero Chain has no operations and returns its input unchanged.
type Chain struct {
	steps []step
}

// Len returns the number of operations in the chain
func (ch Chain) Len() int {
	return len(ch.steps)
}

// Expressions returns the source text of each operation, in order
func (ch Chain) Expressions() []string {
	out := make([]string, len(ch.steps))
	for i, st := range ch.steps {
		out[i] = st.expression
	}
	return out
}

// Apply evaluates each operation with s bound to the previous result,
// starting from initial. Results are converted back to Go values:
// int64, uint64, float64, string, bool, time.Time or []any.
func (ch Chain) Apply(initial any) (any, error) {
	value := initial
	for i, st := range ch.steps {
		out, _, err := st.prog.Eval(map[string]any{WorkingValue: value})
		if err != nil {
			return nil, &EvaluationError{Index: i, Expression: st.expression, Input: value, Err: err}
		}
		value = native(out)
	}
	return value, nil
}

func native(v ref.Val) any {
	switch val := v.(type) {
	case types.Int:
		return int64(val)
	case types.Uint:
		return uint64(val)
	case types.Double:
		return float64(val)
	case types.String:
		return string(val)
	case types.Bool:
		return bool(val)
	case types.Timestamp:
		return val.Time
	case traits.Lister:
		size, _ := val.Size().(types.Int)
		out := make([]any, 0, int(size))
		for i := types.Int(0); i < size; i++ {
			out = append(out, native(val.Get(i)))
		}
		return out
	default:
		return v.Value()
	}
}
