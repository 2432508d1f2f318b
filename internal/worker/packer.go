package worker

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ps5upload/engine/internal/cancel"
	"github.com/ps5upload/engine/internal/ftxlog"
	"github.com/ps5upload/engine/internal/source"
	"github.com/ps5upload/engine/internal/wire"
)

// ErrCancelled is returned by a packer/sender stage that noticed the
// shared cancellation flag.
var ErrCancelled = errors.New("worker: cancelled")

// readChunkCap bounds how much of a file the packer reads in one
// os.File.Read call, independent of remaining pack capacity.
const readChunkCap = 1 << 20

// NextFunc pulls the next FileEntry to pack; ok is false once the
// source is exhausted.
type NextFunc func() (source.FileEntry, bool)

// runPacker drains next, forming packs and handing each full one to
// send, until the source is exhausted, an error occurs, or c fires.
// Matches spec.md §4.4's packer stage exactly, including the "flush
// once at the end if anything remains" rule.
func runPacker(c *cancel.Flag, id int, next NextFunc, tracker *Tracker, send func(wire.ReadyPack) error) error {
	pack := wire.NewPackBuffer()
	tracker.Set(Packing)

	flush := func() error {
		if pack.Empty() {
			return nil
		}
		tracker.Set(Flushing)
		return send(pack.TakeReadyPack())
	}

	for {
		if c.Cancelled() {
			return ErrCancelled
		}
		entry, ok := next()
		if !ok {
			break
		}
		tracker.Set(Packing)
		ftxlog.Debugf(id, "packing %s (%d bytes)", entry.RelPath, entry.Size)
		if err := packFile(c, pack, entry, send); err != nil {
			return err
		}
	}
	return flush()
}

// packFile appends entry's bytes to pack as one or more records,
// flushing pack to send whenever it fills. Empty files get a single
// zero-length, final record (spec.md §4.4 step 3).
func packFile(c *cancel.Flag, pack *wire.PackBuffer, entry source.FileEntry, send func(wire.ReadyPack) error) error {
	f, err := os.Open(entry.AbsPath)
	if err != nil {
		return fmt.Errorf("worker: open %s: %w", entry.AbsPath, err)
	}
	defer f.Close()

	if entry.Size == 0 {
		if err := makeRoom(pack, len(entry.RelPath), 0, send); err != nil {
			return err
		}
		pack.AddRecord(entry.RelPath, nil, true)
		return nil
	}

	var written int64
	for written < entry.Size {
		if c.Cancelled() {
			return ErrCancelled
		}
		avail := pack.Available(len(entry.RelPath))
		if avail <= 0 {
			if err := send(pack.TakeReadyPack()); err != nil {
				return err
			}
			continue
		}
		want := int64(avail)
		if want > readChunkCap {
			want = readChunkCap
		}
		if remain := entry.Size - written; want > remain {
			want = remain
		}
		buf := make([]byte, want)
		n, rerr := io.ReadFull(f, buf)
		if n > 0 {
			written += int64(n)
			final := written >= entry.Size
			pack.AddRecord(entry.RelPath, buf[:n], final)
		}
		if rerr != nil {
			if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
				if written < entry.Size {
					return fmt.Errorf("worker: %s: changed size during read (got %d, expected %d): %w", entry.RelPath, written, entry.Size, rerr)
				}
				continue
			}
			return fmt.Errorf("worker: read %s: %w", entry.AbsPath, rerr)
		}
		if n == 0 {
			return fmt.Errorf("worker: %s: short read before EOF", entry.RelPath)
		}
	}
	return nil
}

// makeRoom flushes pack if the given record wouldn't fit.
func makeRoom(pack *wire.PackBuffer, pathLen, dataLen int, send func(wire.ReadyPack) error) error {
	if pack.CanFit(pathLen, dataLen) {
		return nil
	}
	return send(pack.TakeReadyPack())
}
