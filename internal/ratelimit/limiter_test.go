package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	l := NewMemoryLimiter(3, 15*time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		require.NoError(t, l.Fail(ctx, "10.0.0.1"))
	}
	blocked, err := l.Blocked(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, blocked, "below the limit")

	require.NoError(t, l.Fail(ctx, "10.0.0.1"))
	blocked, _ = l.Blocked(ctx, "10.0.0.1")
	assert.True(t, blocked, "at the limit")

	blocked, _ = l.Blocked(ctx, "10.0.0.2")
	assert.False(t, blocked, "keys are independent")

	now = now.Add(15 * time.Minute)
	blocked, _ = l.Blocked(ctx, "10.0.0.1")
	assert.False(t, blocked, "window expired")
}

func TestMemoryLimiter_Reset(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(1, time.Minute)

	require.NoError(t, l.Fail(ctx, "k"))
	blocked, _ := l.Blocked(ctx, "k")
	require.True(t, blocked)

	require.NoError(t, l.Reset(ctx, "k"))
	blocked, _ = l.Blocked(ctx, "k")
	assert.False(t, blocked)
}
