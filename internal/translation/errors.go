package translation

import (
	"errors"
	"fmt"
)

// TransientError marks a provider failure worth retrying against the next
// backend in the fallback chain (network errors, rate limits, 5xx).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError marks a failure that retrying cannot fix (malformed
// input, unsupported language). It short-circuits the fallback chain.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent provider error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func Transientf(format string, args ...any) error {
	return &TransientError{Err: fmt.Errorf(format, args...)}
}

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func Permanentf(format string, args ...any) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
