package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tildaslashalef/plansync/internal/git"
)

// RetryPolicy bounds how an operation is retried
type RetryPolicy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt, doubled each time
	Classify    func(error) bool
}

// DefaultRetryPolicy returns the policy used for pushes
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Classify:    IsRetryable,
	}
}

// ExhaustedError is returned when every attempt failed with a retryable error
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// RetryNotify is called after a failed attempt that will be retried
type RetryNotify func(attempt int, err error, delay time.Duration)

// RunWithRetry runs op until it succeeds, fails with a non-retryable error
// or runs out of attempts. The delay before attempt n+1 is
// BaseDelay * 2^(n-1). It returns the number of attempts made.
func RunWithRetry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error, notify RetryNotify) (int, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Classify == nil {
		policy.Classify = IsRetryable
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = maxInterval(policy)
	b.MaxElapsedTime = 0
	b.Reset()

	attempts := 0
	permanent := false
	operation := func() error {
		attempts++
		err := op(ctx)
		if err != nil && !policy.Classify(err) {
			permanent = true
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1)), ctx),
		func(err error, delay time.Duration) {
			if notify != nil {
				notify(attempts, err, delay)
			}
		},
	)
	if err == nil {
		return attempts, nil
	}
	if !permanent && attempts >= policy.MaxAttempts {
		return attempts, &ExhaustedError{Attempts: attempts, Err: err}
	}
	return attempts, err
}

// maxInterval keeps the exponential schedule uncapped for the configured
// number of attempts
func maxInterval(policy RetryPolicy) time.Duration {
	d := policy.BaseDelay
	for i := 1; i < policy.MaxAttempts; i++ {
		if d > time.Hour {
			return d
		}
		d *= 2
	}
	if d <= 0 {
		return time.Second
	}
	return d
}

// nonRetryable lists error text that signals a policy rejection. Retrying
// cannot change these outcomes.
var nonRetryable = []string{
	"authentication",
	"authorization failed",
	"permission denied",
	"could not read username",
	"non-fast-forward",
	"fetch first",
	"[rejected]",
}

// IsRetryable classifies an error from a network operation. Authentication,
// permission and non-fast-forward failures are final; everything else is
// treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, git.ErrAuthentication),
		errors.Is(err, git.ErrPermissionDenied),
		errors.Is(err, git.ErrNonFastForward),
		errors.Is(err, git.ErrNoRemote),
		errors.Is(err, context.Canceled):
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range nonRetryable {
		if strings.Contains(msg, marker) {
			return false
		}
	}
	return true
}
