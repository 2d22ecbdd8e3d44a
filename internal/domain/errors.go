package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSlug rejects empty or non URL-safe slugs at registration.
	ErrInvalidSlug = errors.New("invalid slug")
	// ErrInvalidKeywords rejects empty or blank keyword sets.
	ErrInvalidKeywords = errors.New("invalid keywords")
	// ErrNotFound marks a registry lookup miss.
	ErrNotFound = errors.New("niche not found")
	// ErrInvalidTransition marks a status update the state machine forbids.
	// Under correct orchestrator use it indicates a concurrency bug, not a
	// recoverable domain condition.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNoImage marks an image lookup miss; absence is non-fatal.
	ErrNoImage = errors.New("no image found")
)

// GenerationError wraps a failed generation call with the stage it belongs
// to and whether a retry is worthwhile.
type GenerationError struct {
	Stage     Stage
	Transient bool
	Err       error
}

func (e *GenerationError) Error() string {
	class := "permanent"
	if e.Transient {
		class = "transient"
	}
	return fmt.Sprintf("%s: %s generation error: %v", e.Stage, class, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewGenerationError builds a stage-tagged generation failure.
func NewGenerationError(stage Stage, transient bool, err error) *GenerationError {
	return &GenerationError{Stage: stage, Transient: transient, Err: err}
}

// IsTransient reports whether err is a retry-worthy generation failure.
func IsTransient(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge) && ge.Transient
}
