package expr

import (
	"errors"
	"fmt"
)

var (
	// ErrCompile matches expressions that fail to parse or type-check
	ErrCompile = errors.New("expression compile error")
	// ErrEvaluation matches expressions that fail at runtime
	ErrEvaluation = errors.New("expression evaluation error")
)

// CompileError reports the operation that could not be compiled
type CompileError struct {
	Index      int
	Expression string
	Err        error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("operation #%d %q: %v", e.Index, e.Expression, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

func (e *CompileError) Is(target error) bool { return target == ErrCompile }

// EvaluationError reports the operation that failed and the value it was given
type EvaluationError struct {
	Index      int
	Expression string
	Input      any
	Err        error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("operation #%d %q failed on %v (%T): %v", e.Index, e.Expression, e.Input, e.Input, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

func (e *EvaluationError) Is(target error) bool { return target == ErrEvaluation }
