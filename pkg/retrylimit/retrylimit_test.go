package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

func fastConfig() Config {
	return Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), nil, func() error {
		calls++
		if calls < 3 {
			return statusErr(503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	base := errors.New("missing access")
	calls := 0
	err := Do(context.Background(), fastConfig(), nil, func() error {
		calls++
		return Permanent(base)
	})
	assert.ErrorIs(t, err, base)
	assert.Equal(t, 1, calls)
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), nil, func() error {
		calls++
		return fmt.Errorf("grant: %w", statusErr(403))
	})
	assert.Equal(t, 403, StatusCode(err))
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	base := errors.New("flaky")
	calls := 0
	err := Do(context.Background(), fastConfig(), nil, func() error {
		calls++
		return base
	})
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, 3, calls)
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, fastConfig(), nil, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdaptiveLimiterBacksOffAndRecovers(t *testing.T) {
	lim := NewAdaptiveLimiter(8, 1, 10, 1, 0.5)
	now := time.Unix(1000, 0)
	lim.now = func() time.Time { return now }

	lim.Throttled()
	assert.Equal(t, 4.0, lim.Limit())
	lim.Throttled()
	lim.Throttled()
	lim.Throttled()
	assert.Equal(t, 1.0, lim.Limit())

	lim.Success()
	assert.Equal(t, 1.0, lim.Limit(), "no increase right after a throttle")

	now = now.Add(11 * time.Second)
	for i := 0; i < 20; i++ {
		lim.Success()
	}
	assert.Equal(t, 10.0, lim.Limit())
}

func TestThrottleFeedsLimiter(t *testing.T) {
	lim := NewAdaptiveLimiter(4, 1, 10, 1, 0.5)
	_ = Do(context.Background(), Config{MaxAttempts: 1}, lim, func() error { return statusErr(429) })
	assert.Equal(t, 2.0, lim.Limit())
}
