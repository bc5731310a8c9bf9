package govcon

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies failures a caller can act on.
type FailureKind string

const (
	FailureNotFound            FailureKind = "not_found"
	FailureMissingPrecondition FailureKind = "missing_precondition"
	FailureAmbiguousInput      FailureKind = "ambiguous_input"
)

// Suggestion points at a record the caller may have meant.
type Suggestion struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
	Hint string `json:"hint"`
}

// Failure is a structured, caller-facing failure. Store and provider errors are never Failures.
type Failure struct {
	Kind        FailureKind  `json:"kind"`
	Message     string       `json:"error"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

func (f *Failure) Error() string {
	if len(f.Suggestions) == 0 {
		return f.Message
	}
	return fmt.Sprintf("%s %s", f.Message, f.Hint())
}

// Hint renders the suggestions as a single "Did you mean" line.
func (f *Failure) Hint() string {
	if len(f.Suggestions) == 0 {
		return ""
	}
	hints := make([]string, 0, len(f.Suggestions))
	for _, s := range f.Suggestions {
		hints = append(hints, s.Hint)
	}
	return "Did you mean: " + strings.Join(hints, "; ")
}

func NotFound(message string, suggestions ...Suggestion) *Failure {
	return &Failure{Kind: FailureNotFound, Message: message, Suggestions: suggestions}
}

func MissingPrecondition(message string) *Failure {
	return &Failure{Kind: FailureMissingPrecondition, Message: message}
}

func AmbiguousInput(message string) *Failure {
	return &Failure{Kind: FailureAmbiguousInput, Message: message}
}

// AsFailure reports whether err carries a Failure and returns it.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}
