package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/plansync/internal/git"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", errors.New("dial tcp 10.0.0.1:443: connect: connection refused"), true},
		{"server", errors.New("remote: Internal Server Error"), true},
		{"auth sentinel", fmt.Errorf("push: %w", git.ErrAuthentication), false},
		{"permission sentinel", git.ErrPermissionDenied, false},
		{"non-fast-forward sentinel", git.ErrNonFastForward, false},
		{"missing remote", git.ErrNoRemote, false},
		{"auth text", errors.New("fatal: Authentication failed for 'https://example.com/'"), false},
		{"permission text", errors.New("ERROR: Permission denied (publickey)"), false},
		{"rejected text", errors.New("! [rejected] main -> main (fetch first)"), false},
		{"cancelled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRunWithRetryBackoffSchedule(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, BaseDelay: 2 * time.Millisecond}

	var delays []time.Duration
	attempts, err := RunWithRetry(context.Background(), policy, func(ctx context.Context) error {
		return errors.New("connection reset")
	}, func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	})

	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, []time.Duration{2 * time.Millisecond, 4 * time.Millisecond, 8 * time.Millisecond}, delays)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 4, exhausted.Attempts)
	assert.Equal(t, "failed after 4 attempts: connection reset", err.Error())
}

func TestRunWithRetryOutcomes(t *testing.T) {
	tests := []struct {
		name         string
		errs         []error
		wantAttempts int
		wantErr      bool
	}{
		{"first try", []error{nil}, 1, false},
		{"succeeds on third", []error{errors.New("timeout"), errors.New("timeout"), nil}, 3, false},
		{"permanent", []error{git.ErrAuthentication}, 1, true},
		{"permanent after transient", []error{errors.New("timeout"), git.ErrNonFastForward}, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			attempts, err := RunWithRetry(context.Background(), RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond},
				func(ctx context.Context) error {
					err := tt.errs[calls]
					calls++
					return err
				}, nil)

			assert.Equal(t, tt.wantAttempts, attempts)
			assert.Equal(t, tt.wantAttempts, calls)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var exhausted *ExhaustedError
			assert.False(t, errors.As(err, &exhausted), "permanent failures are not reported as exhaustion")
		})
	}
}

func TestRunWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}

	attempts, err := RunWithRetry(ctx, policy, func(ctx context.Context) error {
		cancel()
		return errors.New("timeout")
	}, nil)

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, context.Canceled)
}
