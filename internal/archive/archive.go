package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/ps5upload/engine/internal/cancel"
)

// Chunk is one piece of archive member data pushed to the packer.
// Final marks the last chunk of Path; an empty file is delivered as a
// single zero-length, Final chunk (spec.md §4.4 step 3).
type Chunk struct {
	Path  string
	Data  []byte
	Final bool
}

// Handler receives chunks as an archive is streamed. Returning an
// error aborts the walk.
type Handler func(Chunk) error

// Format identifies which archive reader to use.
type Format int

const (
	FormatZip Format = iota
	FormatSevenZip
	FormatRar
	// FormatRaw streams one file's raw bytes as a single member, with
	// no decoding: used to hand a whole RAR archive to the remote for
	// server-side extraction (spec.md §6 "RAR extraction mode").
	FormatRaw
)

// DetectFormat guesses a format from a file extension.
func DetectFormat(path string) (Format, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip, nil
	case strings.HasSuffix(lower, ".7z"):
		return FormatSevenZip, nil
	case strings.HasSuffix(lower, ".rar"):
		return FormatRar, nil
	default:
		return 0, fmt.Errorf("archive: unrecognised extension for %s", path)
	}
}

// Walk streams path's members through h in path-sanitised order.
// Every implementation honours c: it is checked between members and
// between successive chunk reads within a member.
func Walk(ctx context.Context, archivePath string, format Format, c *cancel.Flag, h Handler) error {
	switch format {
	case FormatZip:
		return walkZip(ctx, archivePath, c, h)
	case FormatSevenZip:
		return walkSevenZip(ctx, archivePath, c, h)
	case FormatRar:
		return walkRar(ctx, archivePath, c, h)
	case FormatRaw:
		return walkRaw(ctx, archivePath, c, h)
	default:
		return fmt.Errorf("archive: unknown format %d", format)
	}
}

func checkCancel(ctx context.Context, c *cancel.Flag) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c != nil && c.Cancelled() {
		return context.Canceled
	}
	return nil
}

// chunkSize bounds how much member data is pushed to h per call, so a
// single huge archive entry doesn't force one giant chunk.
const chunkSize = 1 << 20
