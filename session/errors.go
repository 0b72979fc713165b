package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionBusy is returned by Submit while a turn is in flight.
	ErrSessionBusy = errors.New("session: a response is still pending")

	ErrSessionNotFound = errors.New("session: not found")
	ErrSessionClosed   = errors.New("session: closed")

	// ErrEmptyMessage rejects blank user input without touching the session.
	ErrEmptyMessage = errors.New("session: message is empty")

	// ErrGeneration marks a failure of the generation capability.
	ErrGeneration = errors.New("session: generation failed")
)

// GenerationError wraps a generator failure. The session stays usable, so the
// error is always temporary.
type GenerationError struct {
	SessionID string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("session %s: generation failed: %v", e.SessionID, e.Err)
}

func (e *GenerationError) Unwrap() []error { return []error{ErrGeneration, e.Err} }

func (e *GenerationError) Temporary() bool { return true }
