package providers

import (
	"errors"
	"fmt"
	"time"
)

// ErrProviderUnavailable is returned when a decorator has nothing to delegate to.
var ErrProviderUnavailable = errors.New("provider unavailable")

// RetryableError marks a failure that may succeed if the operation is retried.
type RetryableError struct {
	Provider   string
	Op         string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	msg := "temporary failure"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status=%d)", msg, e.StatusCode)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	return msg
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err as retryable. A nil err stays nil.
func Retryable(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Provider: provider, Op: op, Err: err}
}

// AsRetryableError attempts to unwrap an error into a RetryableError.
func AsRetryableError(err error) (*RetryableError, bool) {
	var rErr *RetryableError
	if errors.As(err, &rErr) {
		return rErr, true
	}
	return nil, false
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	_, ok := AsRetryableError(err)
	return ok
}
