package scraper

import (
	"context"
	"math"
	"time"
)

// Clock is the time source for waits
type Clock interface {
	Now() time.Time
	// Sleep blocks for d. It returns early only when ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SleepDuration maps u, drawn uniformly from [0, 1), into the window
// [lo, hi) with lo = max(minSecs, 0) and hi = max(maxSecs, lo+1).
func SleepDuration(minSecs, maxSecs, u float64) time.Duration {
	lo := math.Max(minSecs, 0)
	hi := math.Max(maxSecs, lo+1)
	d := lo
	// the span is NaN when lo is infinite
	if span := hi - lo; span > 0 {
		d += u * span
	}
	return seconds(d)
}

// seconds converts s to a Duration, clamped to [0, math.MaxInt64]
func seconds(s float64) time.Duration {
	if math.IsNaN(s) || s <= 0 {
		return 0
	}
	if s >= float64(math.MaxInt64)/float64(time.Second) {
		return math.MaxInt64
	}
	return time.Duration(s * float64(time.Second))
}
