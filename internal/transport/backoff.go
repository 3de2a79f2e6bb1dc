package transport

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/jpillora/backoff"
)

// Backoff is an exponential retry schedule with full jitter.
type Backoff struct {
	Min time.Duration
	Max time.Duration
}

// DefaultBackoff starts at one second and caps at thirty.
var DefaultBackoff = Backoff{Min: time.Second, Max: 30 * time.Second}

// Ceiling returns the upper bound of the delay for the given zero-based attempt.
func (b Backoff) Ceiling(attempt int) time.Duration {
	if b.Min <= 0 {
		return 0
	}
	if b.Max <= b.Min {
		return b.Min
	}
	schedule := backoff.Backoff{Min: b.Min, Max: b.Max, Factor: 2}
	return schedule.ForAttempt(float64(attempt))
}

// Delay picks a delay uniformly from (0, Ceiling(attempt)] using rnd, which returns a value in [0, n).
//
// A nil rnd uses [rand.Int64N].
func (b Backoff) Delay(attempt int, rnd func(n int64) int64) time.Duration {
	ceiling := b.Ceiling(attempt)
	if ceiling <= 0 {
		return 0
	}
	if rnd == nil {
		rnd = rand.Int64N
	}
	return time.Duration(rnd(int64(ceiling))) + 1
}

// Sleep waits for d or until ctx ends.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
