package model

import (
	"fmt"
	"strings"
)

// SourceError indicates the accounting-system source could not be opened or
// read at all. It aborts the whole run; nothing is submitted.
type SourceError struct {
	Source  string
	Message string
	Cause   error
}

func (e *SourceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("source unavailable [%s]: %s (%v)", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("source unavailable [%s]: %s", e.Source, e.Message)
}

func (e *SourceError) Unwrap() error {
	return e.Cause
}

// NewSourceError creates a new source error
func NewSourceError(source, message string, cause error) *SourceError {
	return &SourceError{Source: source, Message: message, Cause: cause}
}

// MissingMapping identifies one key absent from an operator-maintained
// mapping table.
type MissingMapping struct {
	Table string // customer_tin, hs_code, category
	Key   string
}

func (m MissingMapping) String() string {
	return fmt.Sprintf("%s[%s]", m.Table, m.Key)
}

// ResolutionError reports every mapping key an invoice needs but the tables
// lack, so an operator can fill all gaps in one pass.
type ResolutionError struct {
	InvoiceNumber string
	Missing       []MissingMapping
}

func (e *ResolutionError) Error() string {
	keys := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		keys[i] = m.String()
	}
	return fmt.Sprintf("invoice %s: missing mappings: %s", e.InvoiceNumber, strings.Join(keys, ", "))
}

// ValidationError represents one violated validation rule
type ValidationError struct {
	Field   string
	Value   interface{}
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed on %s: %s (value=%v, rule=%s)", e.Field, e.Message, e.Value, e.Rule)
	}
	return fmt.Sprintf("validation failed on %s: %s (rule=%s)", e.Field, e.Message, e.Rule)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, rule, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Rule: rule, Message: message}
}

// ValidationErrors aggregates every rule an invoice violated, not just the
// first.
type ValidationErrors struct {
	InvoiceNumber string
	Violations    []*ValidationError
}

func (e *ValidationErrors) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("invoice %s: %s", e.InvoiceNumber, strings.Join(msgs, "; "))
}
