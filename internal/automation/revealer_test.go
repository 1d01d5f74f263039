package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevealEmitsSuccessivePrefixes(t *testing.T) {
	r := NewRevealer(time.Millisecond, 5*time.Millisecond, &instantSleeper{})

	var emitted []string
	err := r.Reveal(context.Background(), "Müge", func(partial string) {
		emitted = append(emitted, partial)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"M", "Mü", "Müg", "Müge"}, emitted)
}

func TestRevealEmptyInput(t *testing.T) {
	r := NewRevealer(0, 0, &instantSleeper{})
	called := false
	err := r.Reveal(context.Background(), "", func(string) { called = true })
	require.NoError(t, err)
	assert.False(t, called)
}

// cancelAfterSleeper fails the nth sleep, simulating cancellation mid-reveal.
type cancelAfterSleeper struct {
	remaining int
}

func (s *cancelAfterSleeper) Sleep(context.Context, time.Duration) error {
	s.remaining--
	if s.remaining < 0 {
		return context.Canceled
	}
	return nil
}

func TestRevealStopsWhenCanceled(t *testing.T) {
	r := NewRevealer(time.Millisecond, time.Millisecond, &cancelAfterSleeper{remaining: 2})

	var emitted []string
	err := r.Reveal(context.Background(), "booking", func(partial string) {
		emitted = append(emitted, partial)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	// The field keeps the last partial written before cancellation.
	assert.Equal(t, []string{"b", "bo", "boo"}, emitted)
}
