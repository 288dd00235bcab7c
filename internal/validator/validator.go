// Package validator checks rendered ISDOC documents.
//
// Structural is the fast shallow check run on every export. Schema compares
// the document against the published XSD and needs the network on first use.
// Chain composes validators.
package validator

import (
	"context"
	"fmt"
	"strings"
)

// Validator checks a rendered document. The error return is reserved for
// failures to run the check at all; document problems go into Result.Errors.
type Validator interface {
	Name() string
	Validate(ctx context.Context, content []byte) (*Result, error)
}

// Result holds the outcome of a validation
type Result struct {
	Valid  bool     `json:"valid" yaml:"valid"`
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`

	// Validator names the check that produced the result
	Validator string `json:"validator,omitempty" yaml:"validator,omitempty"`
}

// NewResult creates a passing result
func NewResult(validator string) *Result {
	return &Result{Valid: true, Validator: validator}
}

// AddError records a problem and marks the result invalid
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
}

// Merge appends the errors of other
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	for _, e := range other.Errors {
		r.AddError("%s", e)
	}
}

// Chain runs validators in order and stops after the first one that fails
type Chain struct {
	validators []Validator
}

// NewChain creates a chain; a chain without validators accepts everything
func NewChain(validators ...Validator) *Chain {
	return &Chain{validators: validators}
}

// Name lists the chained validators
func (c *Chain) Name() string {
	names := make([]string, len(c.validators))
	for i, v := range c.validators {
		names[i] = v.Name()
	}
	return "chain:" + strings.Join(names, "+")
}

// Validate runs each validator until one reports errors
func (c *Chain) Validate(ctx context.Context, content []byte) (*Result, error) {
	result := NewResult(c.Name())
	for _, v := range c.validators {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := v.Validate(ctx, content)
		if err != nil {
			return nil, fmt.Errorf("%s validator: %w", v.Name(), err)
		}
		result.Merge(r)
		if !result.Valid {
			result.Validator = v.Name()
			break
		}
	}
	return result, nil
}
