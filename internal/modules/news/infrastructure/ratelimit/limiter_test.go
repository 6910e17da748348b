package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterSpacesCalls(t *testing.T) {
	l := NewLimiter(20 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	// 第一次立即放行，之后每次至少间隔 20ms
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, l.Interval())
}

func TestLimiterUnlimited(t *testing.T) {
	l := NewLimiter(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterRespectsCancellation(t *testing.T) {
	l := NewLimiter(time.Hour)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx))
}
