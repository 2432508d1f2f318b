package worker

import (
	"context"
	"net"

	"github.com/ps5upload/engine/internal/archive"
	"github.com/ps5upload/engine/internal/cancel"
	"github.com/ps5upload/engine/internal/codec"
	"github.com/ps5upload/engine/internal/ftxlog"
	"github.com/ps5upload/engine/internal/ratelimit"
	"github.com/ps5upload/engine/internal/wire"
)

// ArchiveConfig configures a single-connection archive upload: members
// are streamed from the decoder directly into pack buffers as they
// arrive. The archive.Walk handler runs synchronously on the walking
// goroutine, appends each chunk to the active pack, and flushes the
// pack inline when the next chunk does not fit; no queue sits between
// decoder and packer. Archive uploads are deliberately single
// connection: splitting archive members across workers would need the
// decoder itself to support concurrent member access, which none of
// ZIP/7z/RAR here do.
type ArchiveConfig struct {
	Conn        net.Conn
	ArchivePath string
	Format      archive.Format
	Mode        codec.Mode
	Capability  codec.Capability
	Limiter     *ratelimit.Limiter
	Cancel      *cancel.Flag
	OnProgress  func(Progress)
	OnState     func(State)
}

// RunArchive uploads every member of an archive over one connection.
func RunArchive(ctx context.Context, cfg ArchiveConfig) Result {
	if err := wire.TuneWorkerConn(cfg.Conn); err != nil {
		ftxlog.Debugf(0, "socket tuning failed (continuing): %v", err)
	}

	resolver := codec.NewResolver(cfg.Mode, cfg.Capability)
	tracker := NewTracker(cfg.OnState)

	pack := wire.NewPackBuffer()
	var totalBytes int64
	var totalFiles int

	flush := func() error {
		if pack.Empty() {
			return nil
		}
		tracker.Set(Flushing)
		return sendReadyPack(ctx, cfg, resolver, tracker, pack.TakeReadyPack(), &totalBytes, &totalFiles)
	}

	tracker.Set(Packing)
	handler := func(chunk archive.Chunk) error {
		if cfg.Cancel != nil && cfg.Cancel.Cancelled() {
			return ErrCancelled
		}
		if !pack.CanFit(len(chunk.Path), len(chunk.Data)) {
			if err := flush(); err != nil {
				return err
			}
			tracker.Set(Packing)
		}
		pack.AddRecord(chunk.Path, chunk.Data, chunk.Final)
		return nil
	}

	if err := archive.Walk(ctx, cfg.ArchivePath, cfg.Format, cfg.Cancel, handler); err != nil {
		tracker.Set(terminalState(err))
		_ = cfg.Conn.Close()
		return Result{BytesSent: totalBytes, FilesSent: totalFiles, Err: err}
	}
	if err := flush(); err != nil {
		tracker.Set(terminalState(err))
		_ = cfg.Conn.Close()
		return Result{BytesSent: totalBytes, FilesSent: totalFiles, Err: err}
	}
	if err := wire.WriteFrame(cfg.Conn, wire.Frame{Type: wire.TypeFinish}, cfg.Cancel, nil); err != nil {
		tracker.Set(terminalState(err))
		return Result{BytesSent: totalBytes, FilesSent: totalFiles, Err: err}
	}
	tracker.Set(Finished)
	return Result{BytesSent: totalBytes, FilesSent: totalFiles}
}

func sendReadyPack(ctx context.Context, cfg ArchiveConfig, resolver *codec.Resolver, tracker *Tracker, ready wire.ReadyPack, totalBytes *int64, totalFiles *int) error {
	tracker.Set(Sending)
	mode := resolver.Resolve(ready.Bytes)
	enc := codec.Encode(mode, ready.Bytes)

	sent := 0
	err := wire.WriteFrame(cfg.Conn, wire.Frame{Type: enc.FrameType, Payload: enc.Payload}, cfg.Cancel, func(soFar int) {
		delta := soFar - sent
		sent = soFar
		if cfg.Limiter != nil {
			_ = cfg.Limiter.WaitN(ctx, delta)
		}
	})
	if err != nil {
		return err
	}
	*totalBytes += ready.BytesInPack
	*totalFiles += ready.FilesInPack
	if cfg.OnProgress != nil {
		cfg.OnProgress(Progress{BytesSent: *totalBytes, FilesSent: *totalFiles})
	}
	return nil
}
