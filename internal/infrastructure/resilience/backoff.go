package resilience

import (
	"context"
	"time"
)

// Backoff describes a bounded exponential schedule. Attempt numbering
// is 1-based; Next returns false once MaxAttempts is exhausted.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	MaxAttempts int
}

func DefaultBackoff() Backoff {
	return Backoff{
		Initial:     time.Second,
		Max:         30 * time.Second,
		Multiplier:  2.0,
		MaxAttempts: 10,
	}
}

func (b Backoff) normalize() Backoff {
	out := b
	def := DefaultBackoff()

	if out.Initial <= 0 {
		out.Initial = def.Initial
	}
	if out.Max <= 0 {
		out.Max = def.Max
	}
	if out.Max < out.Initial {
		out.Max = out.Initial
	}
	if out.Multiplier < 1.0 {
		out.Multiplier = def.Multiplier
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	return out
}

// Delay returns the wait before the given 1-based attempt, and whether
// that attempt is within the schedule at all.
func (b Backoff) Delay(attempt int) (time.Duration, bool) {
	norm := b.normalize()
	if attempt < 1 || attempt > norm.MaxAttempts {
		return 0, false
	}
	wait := norm.Initial
	for i := 1; i < attempt; i++ {
		wait = time.Duration(float64(wait) * norm.Multiplier)
		if wait >= norm.Max {
			return norm.Max, true
		}
	}
	if wait > norm.Max {
		wait = norm.Max
	}
	return wait, true
}

// Sleep blocks for the attempt's delay or until the context ends.
// It returns false when the schedule or the context is exhausted.
func (b Backoff) Sleep(ctx context.Context, attempt int) bool {
	wait, ok := b.Delay(attempt)
	if !ok {
		return false
	}
	if wait == 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
