// Package catalog keeps named rule-set documents and their compiled rule sets.
package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/liamcoop/csvetl/rules"
)

var (
	// ErrNotFound matches lookups of unknown rule sets
	ErrNotFound = errors.New("rule set not found")
	// ErrExists matches adds of a name already in use
	ErrExists = errors.New("rule set already exists")
	// ErrInvalid matches documents rejected before compilation
	ErrInvalid = errors.New("invalid rule set document")
)

// MaxRules bounds the number of rules in one document
const MaxRules = 500

var namePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// Document is a named, stored rule-set definition
type Document struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Rules     []rules.Definition `json:"rules"`
	Active    bool               `json:"active"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// clone returns a copy whose rules slice is not shared
func (d *Document) clone() *Document {
	out := *d
	out.Rules = append([]rules.Definition(nil), d.Rules...)
	return &out
}

// Validate checks the name and the size of the rule list. It does not compile the rules.
func (d *Document) Validate() error {
	if err := ValidateName(d.Name); err != nil {
		return fmt.Errorf("%w: name %q: %v", ErrInvalid, d.Name, err)
	}
	if len(d.Rules) == 0 {
		return fmt.Errorf("%w: %q must contain at least one rule", ErrInvalid, d.Name)
	}
	if len(d.Rules) > MaxRules {
		return fmt.Errorf("%w: %q contains %d rules, maximum allowed is %d", ErrInvalid, d.Name, len(d.Rules), MaxRules)
	}
	return nil
}

// ValidateName checks that name is usable as a URL path segment and file stem
func ValidateName(name string) error {
	if len(name) == 0 {
		return errors.New("name cannot be empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("name length %d exceeds maximum of 100 characters", len(name))
	}
	if !namePattern.MatchString(name) {
		return errors.New("must match pattern ^[a-zA-Z_][a-zA-Z0-9_-]*$")
	}
	return nil
}
