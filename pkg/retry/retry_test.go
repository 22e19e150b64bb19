package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

type hintedErr struct{ d time.Duration }

func (e hintedErr) Error() string              { return "slow down" }
func (e hintedErr) RetryDelay() time.Duration { return e.d }

func fastRetrier(attempts int) *Retrier {
	return New(WithMaxAttempts(attempts), WithInitialDelay(0), WithJitter(0))
}

func TestRetrier_SucceedsAfterRetryableFailures(t *testing.T) {
	calls := 0
	err := fastRetrier(3).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errFlaky)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_StopsOnPlainError(t *testing.T) {
	calls := 0
	err := fastRetrier(5).Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestRetrier_PermanentIsUnwrapped(t *testing.T) {
	err := fastRetrier(5).Do(context.Background(), func(context.Context) error {
		return Permanent(errFlaky)
	})

	assert.Equal(t, errFlaky, err)
}

func TestRetrier_Exhausted(t *testing.T) {
	calls := 0
	err := fastRetrier(2).Do(context.Background(), func(context.Context) error {
		calls++
		return Retryable(errFlaky)
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.ErrorIs(t, err, errFlaky)
	assert.False(t, IsRetryable(exhausted.Err))
	assert.Equal(t, 2, calls)
}

func TestRetrier_RetryIf(t *testing.T) {
	calls := 0
	r := New(WithMaxAttempts(3), WithInitialDelay(0), WithRetryIf(func(err error) bool {
		return errors.Is(err, errFlaky)
	}))

	_ = r.Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.Equal(t, 3, calls)
}

func TestRetrier_UsesDelayHint(t *testing.T) {
	var delays []time.Duration
	r := New(
		WithMaxAttempts(2),
		WithInitialDelay(0),
		WithMaxDelay(time.Second),
		WithJitter(0),
		WithOnRetry(func(_ int, _ error, d time.Duration) { delays = append(delays, d) }),
	)
	r.sleep = func(context.Context, time.Duration) error { return nil }

	_ = r.Do(context.Background(), func(context.Context) error {
		return Retryable(hintedErr{d: 5 * time.Second})
	})

	require.Len(t, delays, 1)
	assert.Equal(t, time.Second, delays[0])
}

func TestRetrier_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fastRetrier(3).Do(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	r := New(WithInitialDelay(100*time.Millisecond), WithMaxDelay(300*time.Millisecond), WithJitter(0))

	assert.Equal(t, 100*time.Millisecond, r.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, r.Backoff(2))
	assert.Equal(t, 300*time.Millisecond, r.Backoff(3))
}

func TestDoWithData(t *testing.T) {
	v, err := DoWithData(context.Background(), fastRetrier(2), func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestPresets(t *testing.T) {
	db := DatabaseRetrier().Config()
	assert.Equal(t, 3, db.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, db.InitialDelay)
	assert.Equal(t, time.Second, db.MaxDelay)

	db = DatabaseRetrier(WithMaxAttempts(5), WithInitialDelay(0)).Config()
	assert.Equal(t, 5, db.MaxAttempts, "options override the preset")
	assert.Zero(t, db.InitialDelay)

	api := SMSAPIRetrier(4).Config()
	assert.Equal(t, 4, api.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, api.InitialDelay)
	assert.Equal(t, 5*time.Second, api.MaxDelay)
	assert.Nil(t, api.RetryIf)

	api = SMSAPIRetrier(2, WithRetryIf(func(error) bool { return true })).Config()
	assert.NotNil(t, api.RetryIf)
}
