package domain

import "errors"

// Terminal failure causes. Only transient errors consume retry budget; the
// rest end the download immediately with a distinct result.
var (
	// ErrCancelled reports cooperative cancellation. Never retried.
	ErrCancelled = errors.New("download cancelled")

	// ErrSkippedByPolicy reports that the conflict resolver chose to skip
	// the object. Never retried.
	ErrSkippedByPolicy = errors.New("skipped: destination file already exists")

	// ErrChecksumMismatch reports a post-transfer integrity failure. The
	// local file is retained; disposition is the caller's decision.
	ErrChecksumMismatch = errors.New("integrity verification failed")

	// ErrResumeStateInvalid signals that local and remote state cannot be
	// reconciled. Converted to a fresh download, never surfaced to callers.
	ErrResumeStateInvalid = errors.New("resume state invalid")

	// ErrObjectNotFound reports a missing remote object.
	ErrObjectNotFound = errors.New("object not found")

	// ErrSessionNotFound reports a missing persisted session.
	ErrSessionNotFound = errors.New("session not found")
)

// TransientError wraps a network or I/O failure within a single transfer
// attempt. The retry coordinator retries these up to its bound.
type TransientError struct {
	Err error
}

// Error returns the error message
func (e *TransientError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "transient transfer error"
}

// Unwrap returns the underlying error
func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as retryable.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

// IsTransient returns true if the error should consume retry budget.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsCancelled returns true if the error is a cooperative cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsSkipped returns true if the error is a conflict-policy skip.
func IsSkipped(err error) bool {
	return errors.Is(err, ErrSkippedByPolicy)
}

// IsIntegrityFailure returns true if the error is a checksum mismatch.
func IsIntegrityFailure(err error) bool {
	return errors.Is(err, ErrChecksumMismatch)
}
