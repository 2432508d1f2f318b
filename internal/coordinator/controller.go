package coordinator

import (
	"context"
	"time"

	"github.com/ps5upload/engine/internal/parallelism"
)

// Controller tunables, surfaced so callers/tests can override the
// coarse AIMD-like thresholds (spec.md §7 "Open Questions" calls these
// out as tunables). The decay/attack shape is grounded on the
// exponential pacing seen in pacer/pacer_test.go's TestDecay/TestAttack,
// adapted from "sleep duration" pacing to "concurrency window" pacing.
type ControllerConfig struct {
	Tick          time.Duration
	StallAfter    time.Duration
	GoodAfter     time.Duration
	PromoteStreak int
}

// DefaultControllerConfig matches spec.md §4.5 exactly: 500ms tick,
// 2000ms stall, 500ms good, 6-tick promotion.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		Tick:          500 * time.Millisecond,
		StallAfter:    2000 * time.Millisecond,
		GoodAfter:     500 * time.Millisecond,
		PromoteStreak: 6,
	}
}

// RunController ticks once per cfg.Tick, narrowing or widening allowed
// based on elapsed time since lastProg.Touch, until ctx is done. It
// blocks; call it in its own goroutine.
func RunController(ctx context.Context, cfg ControllerConfig, allowed *parallelism.Allowed, lastProg *parallelism.LastProgress, max int) {
	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	goodStreak := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			since := lastProg.Since()
			switch {
			case since > cfg.StallAfter && allowed.Get() > 1:
				allowed.Dec()
				goodStreak = 0
			case since < cfg.GoodAfter:
				goodStreak++
				if goodStreak >= cfg.PromoteStreak {
					allowed.Inc(max)
					goodStreak = 0
				}
			default:
				goodStreak = 0
			}
		}
	}
}
