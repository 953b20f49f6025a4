package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow_BurstThenThrottle(t *testing.T) {
	rl := New(1, 2)
	defer rl.Stop()

	assert.True(t, rl.Allow("reader"))
	assert.True(t, rl.Allow("reader"))
	assert.False(t, rl.Allow("reader"))
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	require.True(t, rl.Allow("cartesia"))
	assert.False(t, rl.Allow("cartesia"))
	assert.True(t, rl.Allow("elevenlabs"))
}

func TestWait_PacesSecondRequest(t *testing.T) {
	rl := New(10, 1)
	defer rl.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.NoError(t, rl.Wait(ctx, "ocr"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	// At 10 rps the second call waits roughly 100ms for the next token.
	start = time.Now()
	require.NoError(t, rl.Wait(ctx, "ocr"))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestWait_ContextCancellation(t *testing.T) {
	rl := New(0.1, 1)
	defer rl.Stop()

	// Drain the burst so the next token is ten seconds out.
	require.True(t, rl.Allow("reader"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.Error(t, rl.Wait(ctx, "reader"))
}

func TestStop_ResetsBuckets(t *testing.T) {
	rl := New(1, 1)

	require.True(t, rl.Allow("reader"))
	require.False(t, rl.Allow("reader"))

	rl.Stop()
	assert.True(t, rl.Allow("reader"))
}
