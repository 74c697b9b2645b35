// Package retry decides what happens after a job attempt finishes.
//
// A job step never signals failure by panicking; it returns an Outcome and the
// worker hands it to a Policy. Delays grow as base*2^attempt where attempt is
// the number of retries already scheduled for the job.
package retry

import (
	"fmt"
	"time"

	"reelsub/internal/services"
)

// Action is the decision applied to a finished attempt.
type Action string

const (
	ActionComplete Action = "complete"
	ActionRetry    Action = "retry"
	ActionFail     Action = "fail"
)

// Outcome is the tagged result of one job attempt.
type Outcome struct {
	Err  error
	Kind services.Kind
}

// Success reports a finished attempt with durable results.
func Success() Outcome {
	return Outcome{}
}

// Failure tags err with its classification.
func Failure(err error) Outcome {
	if err == nil {
		return Success()
	}
	return Outcome{Err: err, Kind: services.Classify(err)}
}

// Succeeded reports whether the attempt produced its artifact.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Decision is what the worker must do next.
type Decision struct {
	Action Action
	Delay  time.Duration
	Reason string
}

// Policy holds the backoff parameters for one job kind.
type Policy struct {
	Base           time.Duration
	MaxAttempts    int
	StorageRetries int
}

// Delay returns the wait before retry number attempt+1.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	return p.Base * time.Duration(int64(1)<<uint(attempt))
}

// Decide maps an outcome to the next action. attempt is the number of retries
// already used; storageFailures counts earlier storage errors for the job.
func (p Policy) Decide(outcome Outcome, attempt, storageFailures int) Decision {
	if outcome.Succeeded() {
		return Decision{Action: ActionComplete}
	}
	switch outcome.Kind {
	case services.KindPermanent, services.KindValidation, services.KindInvalidTransition,
		services.KindConfiguration, services.KindNotFound:
		return Decision{Action: ActionFail, Reason: fmt.Sprintf("%s error is not retryable", outcome.Kind)}
	case services.KindStorage:
		if storageFailures >= p.StorageRetries {
			return Decision{Action: ActionFail, Reason: "storage error repeated"}
		}
	}
	if attempt >= p.MaxAttempts {
		return Decision{Action: ActionFail, Reason: fmt.Sprintf("retries exhausted after %d attempts", attempt+1)}
	}
	return Decision{Action: ActionRetry, Delay: p.Delay(attempt)}
}
