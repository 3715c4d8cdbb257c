package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail() (interface{}, error)    { return nil, errBoom }
func succeed() (interface{}, error) { return "ok", nil }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(3, 1, time.Hour)

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(fail)
		assert.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, Open, cb.State())

	_, err := cb.Execute(succeed)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := New(3, 1, time.Hour)

	_, _ = cb.Execute(fail)
	_, _ = cb.Execute(fail)
	_, _ = cb.Execute(succeed)
	_, _ = cb.Execute(fail)
	_, _ = cb.Execute(fail)

	assert.Equal(t, Closed, cb.State())
}

func TestBreakerHalfOpenClosesAfterSuccesses(t *testing.T) {
	cb := New(1, 2, 10*time.Millisecond)

	_, _ = cb.Execute(fail)
	require.Equal(t, Open, cb.State())

	time.Sleep(15 * time.Millisecond)

	_, err := cb.Execute(succeed)
	require.NoError(t, err)
	assert.Equal(t, HalfOpen, cb.State())

	_, err = cb.Execute(succeed)
	require.NoError(t, err)
	assert.Equal(t, Closed, cb.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := New(1, 2, 10*time.Millisecond)

	_, _ = cb.Execute(fail)
	time.Sleep(15 * time.Millisecond)

	_, err := cb.Execute(fail)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, Open, cb.State())
}
