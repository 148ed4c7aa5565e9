package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joshu-sajeev/brokerjobs/internal/config"
)

// StepError carries the failure class of a step error and the message shown
// to end users.
type StepError struct {
	Kind    config.ErrorKind
	Summary string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Transient marks err as retryable on a later tick.
func Transient(err error, summary string) error {
	return &StepError{Kind: config.ErrorKindTransient, Summary: summary, Err: err}
}

// Parse marks err as a malformed response or input that may succeed on a
// fresh attempt a limited number of times.
func Parse(err error, summary string) error {
	return &StepError{Kind: config.ErrorKindParse, Summary: summary, Err: err}
}

// Terminal marks err as needing operator action.
func Terminal(err error, summary string) error {
	return &StepError{Kind: config.ErrorKindTerminal, Summary: summary, Err: err}
}

// RetryAfterError asks for a specific delay before the next attempt, as an
// upstream Retry-After header does.
type RetryAfterError struct {
	Err   error
	Delay time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("retry after %v: %v", e.Delay, e.Err)
}

func (e *RetryAfterError) Unwrap() error {
	return e.Err
}

func RetryAfter(d time.Duration, err error) error {
	return &RetryAfterError{Err: err, Delay: d}
}

var defaultSummaries = map[config.ErrorKind]string{
	config.ErrorKindTransient: "A temporary problem interrupted processing. It will be retried automatically.",
	config.ErrorKindParse:     "The results could not be read. The job will be retried.",
	config.ErrorKindTerminal:  "This job could not be completed. Please contact support.",
}

// Classify returns the failure class of err and a user-facing summary.
// Unclassified errors count as transient.
func Classify(err error) (config.ErrorKind, string) {
	var se *StepError
	if errors.As(err, &se) {
		summary := se.Summary
		if summary == "" {
			summary = defaultSummaries[se.Kind]
		}
		return se.Kind, summary
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return config.ErrorKindTransient, "The step took too long and will be retried."
	}

	return config.ErrorKindTransient, defaultSummaries[config.ErrorKindTransient]
}
