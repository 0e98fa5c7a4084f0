package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterSpacesEvents(t *testing.T) {
	t.Parallel()

	l := New("test", 100*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	require.Less(t, time.Since(start), 50*time.Millisecond, "first slot is immediate")

	start = time.Now()
	require.NoError(t, l.Wait(ctx))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterZeroIntervalNeverBlocks(t *testing.T) {
	t.Parallel()

	l := New("test", 0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	l := New("test", time.Hour)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, l.Wait(ctx))
}

func TestPauseHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Pause(ctx, "test", 5*time.Second)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second, "pause should exit immediately when context is done")
}

func TestPauseWaits(t *testing.T) {
	t.Parallel()

	start := time.Now()
	require.NoError(t, Pause(context.Background(), "test", 30*time.Millisecond))
	require.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
	require.NoError(t, Pause(context.Background(), "test", 0))
}
