// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

var errBackend = errors.New("backend down")

func fail() error { return errBackend }
func ok() error   { return nil }

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 3, 30*time.Second, WithClock(clock))

	assert.ErrorIs(t, cb.Execute(fail), errBackend)
	assert.ErrorIs(t, cb.Execute(fail), errBackend)
	assert.Equal(t, StateClosed, cb.State())

	// A success resets the consecutive count.
	assert.NoError(t, cb.Execute(ok))
	assert.ErrorIs(t, cb.Execute(fail), errBackend)
	assert.ErrorIs(t, cb.Execute(fail), errBackend)
	assert.Equal(t, StateClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(fail), errBackend)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker must not call fn")
}

func TestCircuitBreaker_HalfOpenBehavior(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 1, 10*time.Second, WithClock(clock))

	// 1. Trip it
	_ = cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.State())

	// 2. Failed probe reopens
	clock.now = clock.now.Add(11 * time.Second)
	assert.ErrorIs(t, cb.Execute(fail), errBackend)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ok), ErrCircuitOpen)

	// 3. Successful probe closes
	clock.now = clock.now.Add(11 * time.Second)
	assert.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_SingleProbe(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 1, time.Second, WithClock(clock))
	_ = cb.Execute(fail)
	clock.now = clock.now.Add(2 * time.Second)

	inner := make(chan error, 1)
	err := cb.Execute(func() error {
		inner <- cb.Execute(ok)
		return nil
	})
	assert.NoError(t, err)
	assert.ErrorIs(t, <-inner, ErrCircuitOpen, "second caller is rejected while probing")
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_FailurePredicate(t *testing.T) {
	errMiss := errors.New("miss")
	cb := NewCircuitBreaker("test", 1, time.Minute,
		WithFailurePredicate(func(err error) bool { return !errors.Is(err, errMiss) }))

	assert.ErrorIs(t, cb.Execute(func() error { return errMiss }), errMiss)
	assert.Equal(t, StateClosed, cb.State(), "excluded errors pass through without counting")

	_ = cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.State())
}

func TestNewCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker("test", 0, 0)
	assert.Equal(t, 3, cb.threshold)
	assert.Equal(t, 30*time.Second, cb.resetTimeout)
}
