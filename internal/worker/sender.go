package worker

import (
	"context"
	"net"
	"time"

	"github.com/ps5upload/engine/internal/cancel"
	"github.com/ps5upload/engine/internal/codec"
	"github.com/ps5upload/engine/internal/parallelism"
	"github.com/ps5upload/engine/internal/ratelimit"
	"github.com/ps5upload/engine/internal/wire"
)

// admissionPollInterval matches spec.md §4.4 step 2: "sleep 50ms and
// re-check".
const admissionPollInterval = 50 * time.Millisecond

// Progress is the cumulative-since-start counters a sender reports
// after each pack, per spec.md §6.
type Progress struct {
	BytesSent int64
	FilesSent int
}

// senderConfig bundles everything one sender stage needs to turn
// ReadyPacks into framed, compressed, rate-limited writes.
type senderConfig struct {
	id         int
	conn       net.Conn
	allowed    *parallelism.Allowed // nil in single-connection mode: no gate
	lastProg   *parallelism.LastProgress
	resolver   *codec.Resolver
	limiter    *ratelimit.Limiter
	cancel     *cancel.Flag
	tracker    *Tracker
	onProgress func(Progress)
}

func runSender(ctx context.Context, cfg senderConfig, in <-chan wire.ReadyPack) error {
	var totalBytes int64
	var totalFiles int

	for ready := range in {
		if err := admissionGate(cfg); err != nil {
			return err
		}
		cfg.tracker.Set(Sending)
		mode := cfg.resolver.Resolve(ready.Bytes)
		enc := codec.Encode(mode, ready.Bytes)

		sent := 0
		err := wire.WriteFrame(cfg.conn, wire.Frame{Type: enc.FrameType, Payload: enc.Payload}, cfg.cancel, func(soFar int) {
			delta := soFar - sent
			sent = soFar
			if cfg.limiter != nil {
				_ = cfg.limiter.WaitN(ctx, delta)
			}
		})
		if err != nil {
			return err
		}

		totalBytes += ready.BytesInPack
		totalFiles += ready.FilesInPack
		if cfg.lastProg != nil {
			cfg.lastProg.Touch()
		}
		if cfg.onProgress != nil {
			cfg.onProgress(Progress{BytesSent: totalBytes, FilesSent: totalFiles})
		}
	}

	return wire.WriteFrame(cfg.conn, wire.Frame{Type: wire.TypeFinish}, cfg.cancel, nil)
}

func admissionGate(cfg senderConfig) error {
	if cfg.allowed == nil {
		return nil
	}
	waiting := false
	for cfg.id >= cfg.allowed.Get() {
		if !waiting {
			cfg.tracker.Set(WaitingForAdmission)
			waiting = true
		}
		if cfg.cancel != nil && cfg.cancel.Cancelled() {
			return ErrCancelled
		}
		time.Sleep(admissionPollInterval)
	}
	return nil
}
