package automation

import (
	"context"
	"time"
)

// Sleeper abstracts pacing delays so sequences are testable without timers.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper sleeps on the wall clock, honoring context cancellation.
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AwaitCondition polls predicate up to maxAttempts times, sleeping interval
// between attempts. It returns true as soon as the predicate holds and false
// when the attempts are exhausted or ctx is canceled. Giving up is not an
// error: callers that can proceed without the condition simply do so.
func AwaitCondition(ctx context.Context, predicate func() bool, maxAttempts int, interval time.Duration, sleeper Sleeper) bool {
	if sleeper == nil {
		sleeper = RealSleeper{}
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if predicate() {
			return true
		}
		if err := sleeper.Sleep(ctx, interval); err != nil {
			return false
		}
	}
	return predicate()
}
