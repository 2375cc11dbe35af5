package httpclient

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// dualWindowBucket enforces the two-window proactive budget described in the
// Rate-Limited HTTP Client contract. The short window is enforced with
// golang.org/x/time/rate.Limiter, a smoother token bucket than the sliding
// window used by the long window; the long window is a sliding window of
// timestamps, following the teacher's shortWindow/longWindow slices, kept
// here because a strict N-per-duration budget (not an average rate) is what
// the "proactive two-minute check" invariant in the specification demands.
type dualWindowBucket struct {
	short *rate.Limiter

	mu           sync.Mutex
	longWindow   time.Duration
	longBudget   int
	safetyMargin int
	longTimes    []time.Time
}

func newDualWindowBucket(limits Limits) *dualWindowBucket {
	// Burst equal to the short window budget lets a fresh window admit the
	// full budget immediately, then refill at budget-per-window.
	perSecond := rate.Limit(float64(limits.ShortWindowBudget) / limits.ShortWindow.Seconds())
	return &dualWindowBucket{
		short:        rate.NewLimiter(perSecond, limits.ShortWindowBudget),
		longWindow:   limits.LongWindow,
		longBudget:   limits.LongWindowBudget,
		safetyMargin: limits.SafetyMargin,
		longTimes:    make([]time.Time, 0, limits.LongWindowBudget),
	}
}

// Wait blocks until both the short-window limiter and the long-window
// sliding budget admit one more request, honoring ctx cancellation.
func (b *dualWindowBucket) Wait(ctx context.Context) error {
	if err := b.short.Wait(ctx); err != nil {
		return err
	}
	for {
		wait, ok := b.tryReserveLong()
		if ok {
			return nil
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// tryReserveLong prunes expired entries and, if the remaining count plus the
// safety margin still fits the budget, records the new request and returns
// (0, true). Otherwise it returns the duration until the oldest entry falls
// out of the window.
func (b *dualWindowBucket) tryReserveLong() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-b.longWindow)
	kept := b.longTimes[:0]
	for _, t := range b.longTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.longTimes = kept

	if len(b.longTimes)+b.safetyMargin >= b.longBudget {
		if len(b.longTimes) == 0 {
			return 100 * time.Millisecond, false
		}
		wait := b.longTimes[0].Add(b.longWindow).Sub(now) + 50*time.Millisecond
		if wait < 0 {
			wait = 50 * time.Millisecond
		}
		return wait, false
	}

	b.longTimes = append(b.longTimes, now)
	return 0, true
}
