package verifier

import (
	"fmt"
	"time"
)

// ParseError means a verifier answered but the answer is not a usable judgment.
// It is never retried: replaying the same cached body would fail the same way.
type ParseError struct {
	Verifier    string
	Fingerprint string
	Message     string
	Cause       error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error from %s: %s: %v", e.Verifier, e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error from %s: %s", e.Verifier, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// TimeoutError means a verifier call exceeded its deadline.
type TimeoutError struct {
	Verifier string
	After    time.Duration
	Cause    error
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("verifier %s timed out after %s", e.Verifier, e.After)
	}
	return fmt.Sprintf("verifier %s timed out", e.Verifier)
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}
