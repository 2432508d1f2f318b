// Package worker implements the packer/sender pair that owns one TCP
// connection: spec.md §4.4.
package worker

import (
	"context"
	"errors"
	"net"

	"github.com/ps5upload/engine/internal/cancel"
	"github.com/ps5upload/engine/internal/codec"
	"github.com/ps5upload/engine/internal/ftxlog"
	"github.com/ps5upload/engine/internal/parallelism"
	"github.com/ps5upload/engine/internal/ratelimit"
	"github.com/ps5upload/engine/internal/wire"
)

// readyPackChannelDepth matches spec.md §4.4/§5: depth 5, ~80MiB cap.
const readyPackChannelDepth = 5

// Config configures one worker's run.
type Config struct {
	ID         int
	Conn       net.Conn
	Allowed    *parallelism.Allowed // nil disables the admission gate (single connection)
	LastProg   *parallelism.LastProgress
	Mode       codec.Mode
	Capability codec.Capability
	// Resolver, when set, is shared across every worker of the same
	// upload so the auto-compression choice (spec.md §4.5) is made
	// once, not once per worker. When nil, Run builds a private one
	// from Mode/Capability.
	Resolver   *codec.Resolver
	Limiter    *ratelimit.Limiter
	Cancel     *cancel.Flag
	Next       NextFunc
	OnProgress func(Progress)
	OnState    func(State)
}

// Result is what a finished worker reports back to the coordinator.
type Result struct {
	BytesSent int64
	FilesSent int
	Err       error
}

// Run drives one worker end to end: packer and sender stages connected
// by a bounded channel, until the source is exhausted, an error
// occurs, or Cancel fires. It blocks until both stages have finished.
func Run(ctx context.Context, cfg Config) Result {
	if err := wire.TuneWorkerConn(cfg.Conn); err != nil {
		ftxlog.Debugf(cfg.ID, "socket tuning failed (continuing): %v", err)
	}

	resolver := cfg.Resolver
	if resolver == nil {
		resolver = codec.NewResolver(cfg.Mode, cfg.Capability)
	}
	tracker := NewTracker(cfg.OnState)

	ch := make(chan wire.ReadyPack, readyPackChannelDepth)

	packerErr := make(chan error, 1)
	go func() {
		defer close(ch)
		packerErr <- runPacker(cfg.Cancel, cfg.ID, cfg.Next, tracker, func(p wire.ReadyPack) error {
			select {
			case ch <- p:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	var totalBytes int64
	var totalFiles int
	senderErr := runSender(ctx, senderConfig{
		id:       cfg.ID,
		conn:     cfg.Conn,
		allowed:  cfg.Allowed,
		lastProg: cfg.LastProg,
		resolver: resolver,
		limiter:  cfg.Limiter,
		cancel:   cfg.Cancel,
		tracker:  tracker,
		onProgress: func(p Progress) {
			totalBytes = p.BytesSent
			totalFiles = p.FilesSent
			if cfg.OnProgress != nil {
				cfg.OnProgress(p)
			}
		},
	}, ch)

	pErr := <-packerErr

	if pErr != nil {
		tracker.Set(terminalState(pErr))
		if cfg.Cancel != nil {
			cfg.Cancel.Cancel()
		}
		_ = cfg.Conn.Close()
		return Result{BytesSent: totalBytes, FilesSent: totalFiles, Err: pErr}
	}
	if senderErr != nil {
		tracker.Set(terminalState(senderErr))
		if cfg.Cancel != nil {
			cfg.Cancel.Cancel()
		}
		_ = cfg.Conn.Close()
		return Result{BytesSent: totalBytes, FilesSent: totalFiles, Err: senderErr}
	}
	tracker.Set(Finished)
	return Result{BytesSent: totalBytes, FilesSent: totalFiles}
}

// terminalState maps a fatal error to the terminal state it produced,
// per spec.md §4.6's "cancel flag set at any point transitions the
// worker to Cancelled". Archive sources report cancellation as
// context.Canceled rather than ErrCancelled (internal/archive cannot
// import this package), so both are recognised.
func terminalState(err error) State {
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
		return Cancelled
	}
	return Errored
}
