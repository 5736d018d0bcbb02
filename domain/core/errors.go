package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound        = errors.New("resource not found")
	ErrSessionNotFound = fmt.Errorf("%w: session", ErrNotFound)

	// Session lifecycle errors
	ErrInvalidConfig  = errors.New("invalid session configuration")
	ErrDeviceTimeout  = errors.New("no device signal within maximum wait")
	ErrWriteFailed    = errors.New("trial record write failed")
	ErrAbortRequested = errors.New("session aborted by operator")
)

// NewInvalidConfigError reports a single malformed session parameter
func NewInvalidConfigError(field string, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidConfig, field, reason)
}

// NewWriteError ties a recorder failure to the trial it concerns
func NewWriteError(trialIndex int, err error) error {
	return fmt.Errorf("%w for trial %d: %v", ErrWriteFailed, trialIndex, err)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

func IsAbort(err error) bool {
	return errors.Is(err, ErrAbortRequested)
}
