package model

import "errors"

// Providers mark retryable failures (rate limits, transient network or
// upstream errors) so the orchestrator can distinguish them from terminal
// ones without knowing provider error types.

type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

// MarkTransient wraps err as retryable. A nil err stays nil.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether any error in the chain was marked retryable.
func IsTransient(err error) bool {
	var marker *transientError
	return errors.As(err, &marker)
}
