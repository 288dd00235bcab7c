package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoTransactions is returned by batch export when given nothing to export
	ErrNoTransactions = errors.New("no transactions to export")

	// ErrNoExports is returned by batch export when every item failed
	ErrNoExports = errors.New("no transactions could be exported")
)

// DecodeError represents a malformed encoded field (line items, VAT maps).
// It is recovered locally and only logged.
type DecodeError struct {
	Field   string
	Message string
	Cause   error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode %s: %s (%v)", e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("decode %s: %s", e.Field, e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// NewDecodeError creates a new decode error
func NewDecodeError(field, message string, cause error) *DecodeError {
	return &DecodeError{
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// PreconditionError represents a missing required input (transaction or profile)
type PreconditionError struct {
	Input   string
	Message string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed [%s]: %s", e.Input, e.Message)
}

// NewPreconditionError creates a new precondition error
func NewPreconditionError(input, message string) *PreconditionError {
	return &PreconditionError{
		Input:   input,
		Message: message,
	}
}

// StructuralViolation carries the validator messages for a rendered document
type StructuralViolation struct {
	InvoiceID string
	Messages  []string
}

func (e *StructuralViolation) Error() string {
	if e.InvoiceID != "" {
		return fmt.Sprintf("invoice %s failed validation: %s", e.InvoiceID, strings.Join(e.Messages, "; "))
	}
	return fmt.Sprintf("document failed validation: %s", strings.Join(e.Messages, "; "))
}

// NewStructuralViolation creates a new structural violation
func NewStructuralViolation(invoiceID string, messages []string) *StructuralViolation {
	return &StructuralViolation{
		InvoiceID: invoiceID,
		Messages:  messages,
	}
}
