package agentflow

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for programmatic checks via errors.Is.
var (
	// ErrInvalidGraph marks user-correctable graph defects.
	ErrInvalidGraph = errors.New("agentflow: invalid graph")

	// ErrCompilation marks an internal inconsistency found while compiling.
	ErrCompilation = errors.New("agentflow: compilation failed")

	// ErrMalformedInput marks requests that do not match the expected shape.
	ErrMalformedInput = errors.New("agentflow: malformed input")

	ErrGraphNotFound = errors.New("agentflow: graph not found")
	ErrNodeNotFound  = errors.New("agentflow: node not found")
	ErrEdgeNotFound  = errors.New("agentflow: edge not found")
)

// ValidationError carries the first failing validation message verbatim.
type ValidationError struct {
	NodeID string // offending node for per-node checks, empty otherwise
	Msg    string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Msg
}

func (e *ValidationError) Unwrap() error { return ErrInvalidGraph }

// CompilationError reports a graph that reached the compiler without passing
// validation, or an artifact that could not be encoded.
type CompilationError struct {
	Msg string
	Err error
}

func (e *CompilationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrCompilation.Error(), e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrCompilation.Error(), e.Msg)
}

func (e *CompilationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrCompilation, e.Err}
	}
	return []error{ErrCompilation}
}

// FieldError locates one mismatch inside a malformed request.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// InputError is returned for payloads that do not match the wire shape.
type InputError struct {
	Msg     string
	Details []FieldError
}

func (e *InputError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", ErrMalformedInput.Error(), e.Msg)
	}
	parts := make([]string, len(e.Details))
	for i, d := range e.Details {
		parts[i] = d.Path + ": " + d.Message
	}
	return fmt.Sprintf("%s: %s (%s)", ErrMalformedInput.Error(), e.Msg, strings.Join(parts, "; "))
}

func (e *InputError) Unwrap() error { return ErrMalformedInput }
