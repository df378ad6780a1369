// Package webhook contains the event store service and the dispatcher
// that drive inbound provider events through their processing lifecycle.
package webhook

import (
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// RetryableError marks a transient processing failure. The job queue
// retries the task with backoff until the attempt budget is exhausted.
// Out-of-order deliveries throw this on purpose: the prerequisite event
// is expected to land before the retries run out.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err as a transient processing failure.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Retryablef builds a transient processing failure from a format string.
func Retryablef(format string, args ...interface{}) error {
	return &RetryableError{Err: fmt.Errorf(format, args...)}
}

// FatalError marks a permanent processing failure. No future delivery can
// supply the missing data, so retrying would only burn attempts.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the cause together with asynq.SkipRetry so the worker
// moves the task straight to the archive instead of rescheduling it.
func (e *FatalError) Unwrap() []error {
	return []error{e.Err, asynq.SkipRetry}
}

// Fatal wraps err as a permanent processing failure.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// Fatalf builds a permanent processing failure from a format string.
func Fatalf(format string, args ...interface{}) error {
	return &FatalError{Err: fmt.Errorf(format, args...)}
}

// IsFatal reports whether err is classified as permanent.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// IsRetryable reports whether err is classified as transient.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
