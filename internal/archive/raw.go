package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ps5upload/engine/internal/cancel"
)

// walkRaw streams one file's bytes as a single archive member, named
// by its base filename, with no decoding. Used when a RAR source is
// routed to the remote for server-side extraction instead of being
// decoded and repacked client-side (spec.md §6 "RAR extraction mode").
func walkRaw(ctx context.Context, path string, c *cancel.Flag, h Handler) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	buf := make([]byte, chunkSize)
	for {
		if err := checkCancel(ctx, c); err != nil {
			return err
		}
		n, rerr := f.Read(buf)
		final := rerr == io.EOF
		if n > 0 || final {
			data := make([]byte, n)
			copy(data, buf[:n])
			if err := h(Chunk{Path: name, Data: data, Final: final}); err != nil {
				return err
			}
		}
		if final {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("archive: read %s: %w", path, rerr)
		}
	}
}
