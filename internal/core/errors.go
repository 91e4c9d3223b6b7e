package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when the remote client is not ready.
	ErrNotConnected = errors.New("not connected")
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrRemoteRejected matches every *RemoteError.
	ErrRemoteRejected = errors.New("remote rejected")
	// ErrNotFound marks an operation on something outside the local window.
	ErrNotFound = errors.New("not found")
	// ErrStale is returned when a response was discarded because it was superseded.
	ErrStale = errors.New("stale response")
)

// ValidationError describes an input rejected before any remote call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RemoteError wraps a failure reported by the remote chat client.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: remote rejected: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemoteRejected
}

// Remote wraps err as a *RemoteError unless it already is a connectivity error.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotConnected) {
		return err
	}
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}
