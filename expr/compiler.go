// Package expr compiles rule operations into CEL programs and threads a
// working value through them.
//
// Operations see a single variable, s, holding the current working value.
// Programs are compiled once, when a rule is built, and evaluated per row.
// Arithmetic mixes ints and doubles freely and / always divides exactly, so
// 5 / 2 is 2.5.
package expr

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

const (
	// WorkingValue is the variable bound to the current value in every operation
	WorkingValue = "s"

	// DefaultCostLimit bounds the runtime cost of a single operation
	DefaultCostLimit = 1000000
)

// Compiler holds the CEL environments operations are compiled against.
// It is safe for concurrent use.
type Compiler struct {
	env       *cel.Env
	dateEnv   *cel.Env
	numeric   *cel.StaticOptimizer
	costLimit uint64
}

// Option configures a Compiler
type Option func(*Compiler)

// WithCostLimit overrides DefaultCostLimit
func WithCostLimit(limit uint64) Option {
	return func(c *Compiler) {
		c.costLimit = limit
	}
}

// NewCompiler creates the base environment and the date environment.
// The date environment additionally exposes datetime(year, month, day[, hour, minute, second]).
func NewCompiler(opts ...Option) (*Compiler, error) {
	base := []cel.EnvOption{
		cel.Variable(WorkingValue, cel.DynType),
		cel.CrossTypeNumericComparisons(true),
		ext.Strings(),
	}
	base = append(base, stringFunctions()...)
	base = append(base, arithmeticFunctions()...)

	env, err := cel.NewEnv(base...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	dateEnv, err := env.Extend(dateFunctions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL date environment: %w", err)
	}

	c := &Compiler{
		env:       env,
		dateEnv:   dateEnv,
		numeric:   cel.NewStaticOptimizer(arithmeticRewriter{}),
		costLimit: DefaultCostLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var defaultCompiler = sync.OnceValues(func() (*Compiler, error) {
	return NewCompiler()
})

// Default returns a process-wide Compiler built on first use
func Default() (*Compiler, error) {
	return defaultCompiler()
}

// Compile turns an ordered list of operations into a Chain.
// withDate selects the environment that binds the datetime constructor.
func (c *Compiler) Compile(operations []string, withDate bool) (Chain, error) {
	env := c.env
	if withDate {
		env = c.dateEnv
	}

	steps := make([]step, 0, len(operations))
	for i, op := range operations {
		if strings.TrimSpace(op) == "" {
			return Chain{}, &CompileError{Index: i, Expression: op, Err: errors.New("empty expression")}
		}

		checked, issues := env.Compile(op)
		if issues != nil && issues.Err() != nil {
			return Chain{}, &CompileError{Index: i, Expression: op, Err: issues.Err()}
		}
		checked, issues = c.numeric.Optimize(env, checked)
		if issues != nil && issues.Err() != nil {
			return Chain{}, &CompileError{Index: i, Expression: op, Err: issues.Err()}
		}

		prog, err := env.Program(checked, cel.CostLimit(c.costLimit))
		if err != nil {
			return Chain{}, &CompileError{Index: i, Expression: op, Err: fmt.Errorf("program creation error: %w", err)}
		}

		steps = append(steps, step{expression: op, prog: prog})
	}

	return Chain{steps: steps}, nil
}
