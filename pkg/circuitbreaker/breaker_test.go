package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New(Settings{Name: "test", ConsecutiveFailures: 2, OpenTimeout: time.Minute})
	boom := errors.New("broker down")

	calls := 0
	fail := func() error {
		calls++
		return boom
	}

	assert.ErrorIs(t, b.Do(fail), boom)
	assert.ErrorIs(t, b.Do(fail), boom)
	assert.Equal(t, "open", b.State())

	assert.ErrorIs(t, b.Do(fail), ErrOpen)
	assert.Equal(t, 2, calls)
}

func TestBreaker_PassesThroughSuccess(t *testing.T) {
	b := New(Settings{Name: "ok"})

	assert.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, "closed", b.State())
}
