package provider

import (
	"errors"

	"github.com/hearthtask/notify-engine/internal/domain"
)

// TransientError marks a failure worth retrying on the same channel:
// timeouts, network errors, provider 5xx/429.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient provider error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that will never succeed on this channel
// for this recipient: invalid address, unsubscribed, rejected content.
// The worker falls back to the next channel immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent provider error: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error { return &TransientError{Err: err} }

// Permanent wraps err as non-retryable.
func Permanent(err error) error { return &PermanentError{Err: err} }

// Classify maps a send error onto the attempt log's error class.
// Anything unclassified is treated as transient: retrying an unknown
// failure is safer than silently burning a fallback channel.
func Classify(err error) domain.ErrorClass {
	var perm *PermanentError
	if errors.As(err, &perm) {
		return domain.ErrorPermanent
	}
	return domain.ErrorTransient
}
