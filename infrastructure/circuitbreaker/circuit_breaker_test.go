package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int, reset time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(maxFailures, reset, nil)
	cb.now = clock.now
	return cb, clock
}

var errSend = errors.New("send failed")

func fail() error    { return errSend }
func succeed() error { return nil }

func TestOpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute("smtp.example.com", fail), errSend)
	}
	assert.Equal(t, StateOpen, cb.State("smtp.example.com"))
	assert.Equal(t, 3, cb.Failures("smtp.example.com"))

	called := false
	err := cb.Execute("smtp.example.com", func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestKeysAreIndependent(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)

	_ = cb.Execute("a", fail)
	assert.True(t, cb.IsOpen("a"))
	assert.False(t, cb.IsOpen("b"))
	assert.NoError(t, cb.Execute("b", succeed))
}

func TestHalfOpenTrial(t *testing.T) {
	tests := []struct {
		name  string
		trial func() error
		want  State
	}{
		{name: "Successful trial closes", trial: succeed, want: StateClosed},
		{name: "Failed trial reopens", trial: fail, want: StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock := newTestBreaker(2, time.Minute)
			_ = cb.Execute("k", fail)
			_ = cb.Execute("k", fail)
			assert.True(t, cb.IsOpen("k"))

			clock.advance(time.Minute + time.Second)
			assert.False(t, cb.IsOpen("k"))

			_ = cb.Execute("k", func() error {
				assert.Equal(t, StateHalfOpen, cb.State("k"))
				return tt.trial()
			})
			assert.Equal(t, tt.want, cb.State("k"))
		})
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	_ = cb.Execute("k", fail)
	_ = cb.Execute("k", fail)
	assert.NoError(t, cb.Execute("k", succeed))
	assert.Equal(t, 0, cb.Failures("k"))

	_ = cb.Execute("k", fail)
	assert.Equal(t, StateClosed, cb.State("k"))
}

func TestReset(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Hour)
	_ = cb.Execute("k", fail)
	assert.True(t, cb.IsOpen("k"))

	cb.Reset("k")
	assert.False(t, cb.IsOpen("k"))
	assert.Equal(t, 0, cb.Failures("k"))
}

func TestHalfOpenAllowsSingleTrial(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)
	_ = cb.Execute("k", fail)
	clock.advance(2 * time.Minute)

	var concurrent error
	err := cb.Execute("k", func() error {
		assert.True(t, cb.IsOpen("k"))
		concurrent = cb.Execute("k", succeed)
		return nil
	})
	assert.NoError(t, err)
	assert.ErrorIs(t, concurrent, ErrOpen)
	assert.Equal(t, StateClosed, cb.State("k"))
	assert.NoError(t, cb.Execute("k", succeed))
}

func TestPermanentErrorsAreNotCounted(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)
	rejected := func() error { return Permanent(errSend) }

	for i := 0; i < 5; i++ {
		err := cb.Execute("k", rejected)
		assert.ErrorIs(t, err, errSend)
		assert.True(t, IsPermanent(err))
	}
	assert.Equal(t, StateClosed, cb.State("k"))
	assert.Equal(t, 0, cb.Failures("k"))

	_ = cb.Execute("k", fail)
	assert.Equal(t, 1, cb.Failures("k"))
	_ = cb.Execute("k", rejected)
	assert.Equal(t, 0, cb.Failures("k"))
	assert.Nil(t, Permanent(nil))
}
