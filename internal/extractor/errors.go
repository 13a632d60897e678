package extractor

import (
	"errors"
	"fmt"
)

// ErrTimeout marks an LLM call that ran out of time. Wrapped, never returned
// bare; test with errors.Is.
var ErrTimeout = errors.New("llm call timed out")

// CallError is a failed LLM API call that is not a timeout: transport
// failure, non-2xx status, provider-reported error.
type CallError struct {
	Err error
}

func (e *CallError) Error() string { return fmt.Sprintf("llm call failed: %v", e.Err) }
func (e *CallError) Unwrap() error { return e.Err }

// MalformedOutputError is a completed LLM call whose output could not be
// parsed as a JSON intent object. Never retried: resending the same prompt
// after a parse failure just burns tokens.
type MalformedOutputError struct {
	Output string
	Err    error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("llm output is not an intent object: %v", e.Err)
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

// EmptyOutputError is a completed LLM call that produced no text at all.
type EmptyOutputError struct{}

func (e *EmptyOutputError) Error() string { return "llm returned empty output" }
