package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekerror/stdlib/pkg/lang"

	"github.com/sparkchess/clash/pkg/clock"
)

func TestConsume_FixedTimeBudget(t *testing.T) {
	c := clock.New(clock.TimeControl{
		Time: lang.Some(10 * time.Second),
		Inc:  lang.Some(time.Second),
	})

	require.NoError(t, c.Consume(3*time.Second))
	remaining, ok := c.Remaining().V()
	require.True(t, ok)
	assert.Equal(t, 8*time.Second, remaining) // 10 - 3 + 1 inc
}

func TestConsume_TimesOutBeforeIncrement(t *testing.T) {
	c := clock.New(clock.TimeControl{
		Time: lang.Some(2 * time.Second),
		Inc:  lang.Some(5 * time.Second),
	})

	err := c.Consume(3 * time.Second)
	assert.ErrorIs(t, err, clock.ErrTimedOut)

	// The increment must never have been credited: a timeout check happens
	// strictly before any increment is applied.
	remaining, ok := c.Remaining().V()
	require.True(t, ok)
	assert.Equal(t, -1*time.Second, remaining)
}

func TestConsume_NoTimeBudgetConfigured(t *testing.T) {
	c := clock.New(clock.TimeControl{Depth: lang.Some(10)})

	require.NoError(t, c.Consume(time.Hour))
	_, ok := c.Remaining().V()
	assert.False(t, ok, "remaining should stay unset when no time budget is configured")
}

func TestConsume_MovesToGoReload(t *testing.T) {
	c := clock.New(clock.TimeControl{
		Time:      lang.Some(10 * time.Second),
		MovesToGo: lang.Some(2),
	})

	require.NoError(t, c.Consume(time.Second)) // 1 move left
	mtg, ok := c.MovesToGo().V()
	require.True(t, ok)
	assert.Equal(t, 1, mtg)

	require.NoError(t, c.Consume(time.Second)) // period exhausted, reloads and re-credits base time
	mtg, ok = c.MovesToGo().V()
	require.True(t, ok)
	assert.Equal(t, 2, mtg)

	remaining, ok := c.Remaining().V()
	require.True(t, ok)
	assert.Equal(t, 10*time.Second+8*time.Second, remaining) // (10-1-1) + 10 credited back
}

func TestConsume_ZeroIncrementNotCredited(t *testing.T) {
	c := clock.New(clock.TimeControl{
		Time: lang.Some(5 * time.Second),
		Inc:  lang.Some(time.Duration(0)),
	})

	require.NoError(t, c.Consume(2*time.Second))
	remaining, ok := c.Remaining().V()
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, remaining)
}
