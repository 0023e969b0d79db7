package sensor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitStable(t *testing.T) {
	policy := Policy{Window: 20 * time.Millisecond, Interval: time.Millisecond, Timeout: 150 * time.Millisecond}

	t.Run("Held Level Registers", func(t *testing.T) {
		start := time.Now()
		read := func() (bool, error) {
			return time.Since(start) > 10*time.Millisecond, nil
		}

		ok, err := WaitStable(context.Background(), read, true, policy)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond, "must wait for the full window after the edge")
	})

	t.Run("Flicker Below Window Never Registers", func(t *testing.T) {
		start := time.Now()
		// Toggles every 5ms, well under the 20ms window.
		read := func() (bool, error) {
			return (time.Since(start)/(5*time.Millisecond))%2 == 0, nil
		}

		ok, err := WaitStable(context.Background(), read, true, policy)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Deviation Resets Accumulator", func(t *testing.T) {
		var reads atomic.Int64
		// 15 polls high, one low blip, then high for good.
		read := func() (bool, error) {
			n := reads.Add(1)
			return n != 16, nil
		}

		start := time.Now()
		ok, err := WaitStable(context.Background(), read, true, policy)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Greater(t, reads.Load(), int64(17))
		assert.GreaterOrEqual(t, time.Since(start), policy.Window)
	})

	t.Run("Clear Target", func(t *testing.T) {
		read := func() (bool, error) { return false, nil }
		ok, err := WaitStable(context.Background(), read, false, policy)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Read Error Aborts", func(t *testing.T) {
		boom := errors.New("bus fault")
		read := func() (bool, error) { return false, boom }
		ok, err := WaitStable(context.Background(), read, true, policy)
		assert.False(t, ok)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("Context Cancel Aborts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		read := func() (bool, error) { return false, nil }
		ok, err := WaitStable(ctx, read, true, Policy{Window: time.Millisecond, Timeout: time.Second})
		assert.False(t, ok)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
