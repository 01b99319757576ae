package admission

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

func newTestBreaker(maxFailures int, cooldown time.Duration) (*breaker, *time.Time) {
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	b := newBreaker(maxFailures, cooldown)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		require.NoError(t, b.allow())
		b.record(errBackend)
		assert.Equal(t, breakerClosed, b.current())
	}

	require.NoError(t, b.allow())
	old, state := b.record(errBackend)
	assert.Equal(t, breakerClosed, old)
	assert.Equal(t, breakerOpen, state)
	assert.ErrorIs(t, b.allow(), ErrBreakerOpen)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)

	b.record(errBackend)
	b.record(nil)
	b.record(errBackend)
	assert.Equal(t, breakerClosed, b.current())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)
	b.record(errBackend)
	require.Equal(t, breakerOpen, b.current())

	*now = now.Add(30 * time.Second)
	assert.ErrorIs(t, b.allow(), ErrBreakerOpen)

	*now = now.Add(31 * time.Second)
	require.NoError(t, b.allow(), "cooldown elapsed, one probe is let through")
	assert.Equal(t, breakerHalfOpen, b.current())
	assert.ErrorIs(t, b.allow(), ErrBreakerOpen, "only one probe at a time")

	old, state := b.record(nil)
	assert.Equal(t, breakerHalfOpen, old)
	assert.Equal(t, breakerClosed, state)
	assert.NoError(t, b.allow())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)
	b.record(errBackend)

	*now = now.Add(2 * time.Minute)
	require.NoError(t, b.allow())
	_, state := b.record(errBackend)
	assert.Equal(t, breakerOpen, state)
	assert.ErrorIs(t, b.allow(), ErrBreakerOpen)
}
