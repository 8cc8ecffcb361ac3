package captcha

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Humanizer produces randomized human-like pauses between browser actions
type Humanizer struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep SleepFunc
}

// NewHumanizer builds a Humanizer; nil rng seeds from the clock, nil sleep uses a timer
func NewHumanizer(rng *rand.Rand, sleep SleepFunc) *Humanizer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if sleep == nil {
		sleep = ctxSleep
	}
	return &Humanizer{rng: rng, sleep: sleep}
}

// Delay draws a duration uniformly from [lo, hi]
func (h *Humanizer) Delay(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	h.mu.Lock()
	n := h.rng.Int63n(int64(hi-lo) + 1)
	h.mu.Unlock()
	return lo + time.Duration(n)
}

// Pause sleeps for a Delay(lo, hi)
func (h *Humanizer) Pause(ctx context.Context, lo, hi time.Duration) error {
	return h.sleep(ctx, h.Delay(lo, hi))
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
