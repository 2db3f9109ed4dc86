package expr

import (
	"math"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// Arithmetic operators are rewritten to these functions after type checking.
// The leading @ keeps them out of reach of expression text.
const (
	numAdd      = "@num_add"
	numSubtract = "@num_subtract"
	numMultiply = "@num_multiply"
	numDivide   = "@num_divide"
	numModulo   = "@num_modulo"
)

var numericOperators = map[string]string{
	operators.Add:      numAdd,
	operators.Subtract: numSubtract,
	operators.Multiply: numMultiply,
	operators.Divide:   numDivide,
	operators.Modulo:   numModulo,
}

// arithmeticFunctions declares numeric operators that mix int and double
// operands: a mixed pair is computed as double, / always divides exactly and
// % takes the sign of the divisor. Non-numeric operands keep CEL's behavior,
// so + still concatenates strings and lists.
func arithmeticFunctions() []cel.EnvOption {
	return []cel.EnvOption{
		binaryFunction(numAdd, func(lhs, rhs ref.Val) ref.Val {
			if a, b, ok := mixedDoubles(lhs, rhs); ok {
				return a + b
			}
			if adder, ok := lhs.(traits.Adder); ok {
				return adder.Add(rhs)
			}
			return types.MaybeNoSuchOverloadErr(lhs)
		}),
		binaryFunction(numSubtract, func(lhs, rhs ref.Val) ref.Val {
			if a, b, ok := mixedDoubles(lhs, rhs); ok {
				return a - b
			}
			if sub, ok := lhs.(traits.Subtractor); ok {
				return sub.Subtract(rhs)
			}
			return types.MaybeNoSuchOverloadErr(lhs)
		}),
		binaryFunction(numMultiply, func(lhs, rhs ref.Val) ref.Val {
			if a, b, ok := mixedDoubles(lhs, rhs); ok {
				return a * b
			}
			if mul, ok := lhs.(traits.Multiplier); ok {
				return mul.Multiply(rhs)
			}
			return types.MaybeNoSuchOverloadErr(lhs)
		}),
		binaryFunction(numDivide, divide),
		binaryFunction(numModulo, modulo),
	}
}

func binaryFunction(name string, fn func(lhs, rhs ref.Val) ref.Val) cel.EnvOption {
	return cel.Function(name,
		cel.Overload(name[1:]+"_dyn_dyn", []*cel.Type{cel.DynType, cel.DynType}, cel.DynType,
			cel.BinaryBinding(fn),
		),
	)
}

func toDouble(v ref.Val) (types.Double, bool) {
	switch n := v.(type) {
	case types.Int:
		return types.Double(n), true
	case types.Uint:
		return types.Double(n), true
	case types.Double:
		return n, true
	default:
		return 0, false
	}
}

// mixedDoubles converts both operands when they are numbers of different types
func mixedDoubles(lhs, rhs ref.Val) (types.Double, types.Double, bool) {
	if lhs.Type() == rhs.Type() {
		return 0, 0, false
	}
	a, ok := toDouble(lhs)
	if !ok {
		return 0, 0, false
	}
	b, ok := toDouble(rhs)
	if !ok {
		return 0, 0, false
	}
	return a, b, true
}

func divide(lhs, rhs ref.Val) ref.Val {
	a, okA := toDouble(lhs)
	b, okB := toDouble(rhs)
	if !okA || !okB {
		if div, ok := lhs.(traits.Divider); ok {
			return div.Divide(rhs)
		}
		return types.MaybeNoSuchOverloadErr(lhs)
	}
	if b == 0 {
		return types.NewErr("division by zero")
	}
	return a / b
}

func modulo(lhs, rhs ref.Val) ref.Val {
	x, okX := lhs.(types.Int)
	y, okY := rhs.(types.Int)
	if okX && okY {
		if y == 0 {
			return types.NewErr("modulus by zero")
		}
		r := x % y
		if r != 0 && (r < 0) != (y < 0) {
			r += y
		}
		return r
	}

	a, okA := toDouble(lhs)
	b, okB := toDouble(rhs)
	if !okA || !okB {
		if mod, ok := lhs.(traits.Modder); ok {
			return mod.Modulo(rhs)
		}
		return types.MaybeNoSuchOverloadErr(lhs)
	}
	if b == 0 {
		return types.NewErr("modulus by zero")
	}
	r := types.Double(math.Mod(float64(a), float64(b)))
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

// arithmeticRewriter replaces the standard arithmetic operator calls of a
// checked expression with the numeric functions above
type arithmeticRewriter struct{}

func (arithmeticRewriter) Optimize(ctx *cel.OptimizerContext, a *ast.AST) *ast.AST {
	root := ast.NavigateAST(a)
	calls := ast.MatchDescendants(root, func(e ast.NavigableExpr) bool {
		if e.Kind() != ast.CallKind {
			return false
		}
		call := e.AsCall()
		_, ok := numericOperators[call.FunctionName()]
		return ok && !call.IsMemberFunction() && len(call.Args()) == 2
	})
	for _, e := range calls {
		call := e.AsCall()
		ctx.UpdateExpr(e, ctx.NewCall(numericOperators[call.FunctionName()], call.Args()...))
	}
	return a
}
