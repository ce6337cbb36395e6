package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "textanalysis/pkg/errors"
)

func TestRetryWithCallback_FixedPolicyExhausts(t *testing.T) {
	calls := 0
	var retried []int
	var delays []time.Duration

	errBoom := errors.New("boom")
	err := RetryWithCallback(context.Background(), FixedPolicy(4, time.Millisecond), func() error {
		calls++
		return errBoom
	}, func(attempt int, err error, next time.Duration) {
		retried = append(retried, attempt)
		delays = append(delays, next)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int{1, 2, 3}, retried)
	for _, d := range delays {
		assert.Equal(t, time.Millisecond, d)
	}
}

func TestRetryWithCallback_SucceedsMidway(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), FixedPolicy(5, time.Millisecond), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithCallback_FatalStopsImmediately(t *testing.T) {
	calls := 0
	errBad := errors.New("bad credentials")
	err := Retry(context.Background(), FixedPolicy(5, time.Millisecond), func() error {
		calls++
		return NewFatalError(errBad)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errBad)
	assert.Equal(t, 1, calls)
}

func TestRetryWithCallback_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, FixedPolicy(10, time.Hour), func() error {
		calls++
		cancel()
		return errors.New("down")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicyBackOffSelection(t *testing.T) {
	fixed := FixedPolicy(3, 250*time.Millisecond).newBackOff()
	assert.Equal(t, 250*time.Millisecond, fixed.NextBackOff())
	assert.Equal(t, 250*time.Millisecond, fixed.NextBackOff())

	exp := DefaultPolicy().newBackOff()
	assert.Positive(t, exp.NextBackOff())
}

func TestRetryWithCallback_FatalAppErrorStops(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), FixedPolicy(5, time.Millisecond), func() error {
		calls++
		return apperrors.ErrValidation.WithMessage("bad uri")
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, 1, calls)
}
