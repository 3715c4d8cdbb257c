package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketAllowsBurstUpToCapacity(t *testing.T) {
	tb := NewTokenBucket(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "request %d within capacity should pass", i)
	}
	assert.False(t, tb.Allow(), "request beyond capacity should be rejected")
}

func TestTokenBucketRefillsOverTime(t *testing.T) {
	tb := NewTokenBucket(100, 1)

	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, tb.Allow(), "bucket should refill after waiting")
}

func TestFixedWindowCounterEnforcesLimit(t *testing.T) {
	fwc := NewFixedWindowCounter(2, time.Hour)

	assert.True(t, fwc.Allow())
	assert.True(t, fwc.Allow())
	assert.False(t, fwc.Allow())
}

func TestFixedWindowCounterResetsAfterWindow(t *testing.T) {
	fwc := NewFixedWindowCounter(1, 10*time.Millisecond)

	assert.True(t, fwc.Allow())
	assert.False(t, fwc.Allow())

	time.Sleep(15 * time.Millisecond)
	assert.True(t, fwc.Allow(), "new window should reset the counter")
}
