package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerTripsAndRecovers(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := New("sales", 2, 10*time.Second)
	b.now = func() time.Time { return now }
	boom := errors.New("boom")

	assert.ErrorIs(t, b.Do(func() error { return boom }, nil), boom)
	assert.Equal(t, StateClosed, b.State())
	assert.ErrorIs(t, b.Do(func() error { return boom }, nil), boom)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil }, nil)
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)

	now = now.Add(11 * time.Second)
	assert.NoError(t, b.Do(func() error { return nil }, nil))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := New("sales", 1, time.Second)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	now = now.Add(2 * time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerIgnoredErrorsDoNotCount(t *testing.T) {
	b := New("sales", 1, time.Minute)
	ignore := func(err error) bool { return errors.Is(err, context.Canceled) }

	assert.ErrorIs(t, b.Do(func() error { return context.Canceled }, ignore), context.Canceled)
	assert.Equal(t, StateClosed, b.State())
}

func TestStateHandlerIsCalled(t *testing.T) {
	b := New("sales", 1, time.Minute)
	changes := make(chan [2]State, 1)
	b.SetStateChangeHandler(func(_ string, from, to State) { changes <- [2]State{from, to} })
	b.RecordFailure()
	select {
	case got := <-changes:
		assert.Equal(t, [2]State{StateClosed, StateOpen}, got)
	case <-time.After(time.Second):
		t.Fatal("state handler not called")
	}
}
