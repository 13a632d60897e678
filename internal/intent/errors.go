package intent

import (
	"fmt"
	"strings"
)

// Code identifies a validation failure kind. The set is closed: every
// validation failure maps to exactly one code, and callers dispatch on the
// code rather than on message text.
type Code string

const (
	CodeMalformedIntent      Code = "MALFORMED_INTENT"
	CodeUnknownMetric        Code = "UNKNOWN_METRIC"
	CodeUnknownDimension     Code = "UNKNOWN_DIMENSION"
	CodeUnknownTimeDimension Code = "UNKNOWN_TIME_DIMENSION"
	CodeAmbiguousMetric      Code = "AMBIGUOUS_METRIC"
	CodeAmbiguousDimension   Code = "AMBIGUOUS_DIMENSION"
	CodeInvalidGranularity   Code = "INVALID_GRANULARITY"
	CodeInvalidTimeWindow    Code = "INVALID_TIME_WINDOW"
	CodeInvalidFilter        Code = "INVALID_FILTER"
)

// ValidationError is the single error type for every hard validation
// failure. Field names the offending location ("metric", "group_by[1]",
// "filters[0].dimension"), Suggestions carries near-miss vocabulary for
// unknown terms, and Candidates carries the full match list for ambiguous
// terms. Only the fields relevant to the code are populated.
type ValidationError struct {
	Code        Code     `json:"code"`
	Field       string   `json:"field,omitempty"`
	Value       string   `json:"value,omitempty"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
	Candidates  []string `json:"candidates,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func malformed(field, format string, args ...any) *ValidationError {
	return &ValidationError{
		Code:    CodeMalformedIntent,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

func unknownTerm(code Code, field, value string, suggestions []string) *ValidationError {
	msg := fmt.Sprintf("unknown %s: %q", strings.TrimPrefix(strings.ToLower(string(code)), "unknown_"), value)
	if len(suggestions) > 0 {
		msg += fmt.Sprintf(". Did you mean: %s?", strings.Join(suggestions, ", "))
	}
	return &ValidationError{
		Code:        code,
		Field:       field,
		Value:       value,
		Message:     msg,
		Suggestions: suggestions,
	}
}

func ambiguousTerm(code Code, field, value string, candidates []string) *ValidationError {
	return &ValidationError{
		Code:       code,
		Field:      field,
		Value:      value,
		Message:    fmt.Sprintf("%q matches multiple catalog entries: %s. Please be more specific.", value, strings.Join(candidates, ", ")),
		Candidates: candidates,
	}
}

// IncompleteError reports a raw intent that is well-formed but missing
// fields the caller can supply interactively. It is deliberately not a
// ValidationError: the orchestrator routes it to the clarification branch,
// never to a hard stop.
type IncompleteError struct {
	MissingFields []string `json:"missing_fields"`
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("intent incomplete: missing %s", strings.Join(e.MissingFields, ", "))
}

// ClarificationMessage renders a user-facing prompt for the missing fields.
func (e *IncompleteError) ClarificationMessage() string {
	return fmt.Sprintf("I need a bit more information to run this query. Please provide: %s.", strings.Join(e.MissingFields, ", "))
}
