package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceNotFound matches failures where a source field is absent from the row
	ErrSourceNotFound = errors.New("source not found")
	// ErrConversion matches failures to cast a value to its declared type
	ErrConversion = errors.New("conversion error")
	// ErrValidation matches rule-set construction failures
	ErrValidation = errors.New("rule set validation error")
)

// SourceNotFoundError is returned when a Calculation rule names a field the row does not have
type SourceNotFoundError struct {
	Field string
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("unable to retrieve source data from field %q", e.Field)
}

func (e *SourceNotFoundError) Is(target error) bool {
	return target == ErrSourceNotFound
}

// Stage tells whether a conversion happened on the input or the output side of a rule
type Stage string

const (
	StageInput  Stage = "input"
	StageOutput Stage = "output"
)

// ConversionError is returned when a value cannot be cast to Integer or Decimal
type ConversionError struct {
	Rule   string // target of the rule, empty when raised outside a rule
	Stage  Stage
	Value  any
	Target ValueType
	Err    error
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("unable to convert value %v (%T) to %s", e.Value, e.Value, e.Target)
	if e.Stage != "" {
		msg = fmt.Sprintf("%s during %s cast", msg, e.Stage)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

func (e *ConversionError) Is(target error) bool {
	return target == ErrConversion
}

// ValidationError is returned when a rule definition cannot be turned into a rule
type ValidationError struct {
	Index  int
	Target string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid rule set: %v", e.Err)
	}
	return fmt.Sprintf("invalid rule #%d (target %q): %v", e.Index, e.Target, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
