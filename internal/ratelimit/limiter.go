// Package ratelimit implements the per-worker bandwidth limiter,
// grounded on the teacher's use of golang.org/x/time/rate for its
// bandwidth-limiting token bucket (fs/accounting/token_bucket_test.go).
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// MaxSleepPerCall caps how long a single WaitN call will block, per
// spec.md §4.4: "capped at 500 ms per call".
const MaxSleepPerCall = 500 * time.Millisecond

// Limiter paces bytes written by one worker. A zero limit means
// unlimited (WaitN is then a no-op).
type Limiter struct {
	rl *rate.Limiter
}

// maxWriteChunk mirrors internal/wire.MaxWriteChunk: the largest
// single WaitN call the sender ever makes. Burst is sized to at least
// this so a single ≤4MiB write slice is never rejected outright by
// ReserveN for exceeding the bucket's capacity.
const maxWriteChunk = 4 << 20

// New builds a limiter for bytesPerSecond. A non-positive value means
// unlimited.
func New(bytesPerSecond float64) *Limiter {
	if bytesPerSecond <= 0 {
		return &Limiter{}
	}
	burst := int(bytesPerSecond)
	if burst < maxWriteChunk {
		burst = maxWriteChunk
	}
	rl := rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
	// Start with an empty bucket so pacing applies from the first byte,
	// rather than letting a full initial burst through unthrottled.
	rl.AllowN(time.Now(), burst)
	return &Limiter{rl: rl}
}

// Unlimited reports whether this limiter imposes no bound.
func (l *Limiter) Unlimited() bool { return l.rl == nil }

// WaitN accounts for n bytes just sent, sleeping as needed to keep the
// long-run average at or under the configured rate. A single call
// never sleeps longer than MaxSleepPerCall; callers in a retry loop
// will simply be asked to wait again on the next iteration.
func (l *Limiter) WaitN(ctx context.Context, n int) error {
	if l.rl == nil || n <= 0 {
		return nil
	}
	r := l.rl.ReserveN(time.Now(), n)
	if !r.OK() {
		// n exceeds burst; reserve anyway is not possible, so just
		// sleep the capped amount and let the caller retry with the
		// remaining bytes accounted for by the next call.
		return sleep(ctx, MaxSleepPerCall)
	}
	delay := r.Delay()
	if delay > MaxSleepPerCall {
		delay = MaxSleepPerCall
	}
	return sleep(ctx, delay)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
