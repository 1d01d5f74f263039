package automation

import (
	"context"
	"math/rand"
	"time"
)

// Revealer progressively reveals a string one rune at a time with a small
// randomized delay between steps, making automated form entry legible to a
// human watching the widget. A Revealer is restartable: each Reveal call is
// an independent finite sequence.
type Revealer struct {
	minDelay time.Duration
	maxDelay time.Duration
	sleeper  Sleeper
	rand     *rand.Rand
}

// NewRevealer builds a revealer with the given inter-keystroke delay bounds.
// A nil sleeper uses the wall clock.
func NewRevealer(minDelay, maxDelay time.Duration, sleeper Sleeper) *Revealer {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	if sleeper == nil {
		sleeper = RealSleeper{}
	}
	return &Revealer{
		minDelay: minDelay,
		maxDelay: maxDelay,
		sleeper:  sleeper,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Reveal emits successive prefixes of text, ending with the full string.
// Empty input emits nothing. The only error is context cancellation.
func (r *Revealer) Reveal(ctx context.Context, text string, emit func(partial string)) error {
	runes := []rune(text)
	for i := 1; i <= len(runes); i++ {
		emit(string(runes[:i]))
		if i == len(runes) {
			break
		}
		if err := r.sleeper.Sleep(ctx, r.stepDelay()); err != nil {
			// Canceled mid-reveal: leave the field at the last partial.
			return err
		}
	}
	return nil
}

func (r *Revealer) stepDelay() time.Duration {
	if r.maxDelay == r.minDelay {
		return r.minDelay
	}
	return r.minDelay + time.Duration(r.rand.Int63n(int64(r.maxDelay-r.minDelay)))
}
