package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/bodgit/sevenzip"
	"github.com/ps5upload/engine/internal/cancel"
)

// walkSevenZip streams a 7z archive. bodgit/sevenzip exposes a
// zip-like archive.File list rather than a push callback, but 7z's
// solid-block decoding means each member's Open() still has to be read
// sequentially and in archive order for good throughput, so the
// packer-facing contract (push chunks through h, honour cancellation)
// is identical to the RAR path.
func walkSevenZip(ctx context.Context, archivePath string, c *cancel.Flag, h Handler) error {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("archive: open 7z %s: %w", archivePath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := checkCancel(ctx, c); err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			continue
		}
		safe, err := SanitisePath(f.Name)
		if err != nil {
			return fmt.Errorf("archive: %s: %w", f.Name, err)
		}
		if err := stream7zEntry(ctx, c, f, safe, h); err != nil {
			return err
		}
	}
	return nil
}

func stream7zEntry(ctx context.Context, c *cancel.Flag, f *sevenzip.File, safe string, h Handler) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("archive: open 7z member %s: %w", safe, err)
	}
	defer rc.Close()
	return streamReader(ctx, c, rc, safe, h)
}

// streamReader drains r in chunkSize pieces, pushing each to h and
// marking the final one, honouring cancellation between reads. This
// is the shared bridge for any archive format whose library hands
// back a plain io.ReadCloser per member (7z, RAR), adapting the
// push/pull mismatch spec.md §9 calls out. It keeps one chunk
// buffered so it can tell the true last chunk apart from an
// intermediate one without emitting a spurious trailing empty record.
func streamReader(ctx context.Context, c *cancel.Flag, r io.Reader, path string, h Handler) error {
	buf := make([]byte, chunkSize)
	var pending []byte
	haveAny := false

	flush := func(data []byte, final bool) error {
		haveAny = true
		return h(Chunk{Path: path, Data: data, Final: final})
	}

	for {
		if err := checkCancel(ctx, c); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if pending != nil {
				if ferr := flush(pending, false); ferr != nil {
					return ferr
				}
			}
			pending = chunk
		}
		if err == io.EOF {
			if pending != nil {
				return flush(pending, true)
			}
			if !haveAny {
				return flush(nil, true)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("archive: read %s: %w", path, err)
		}
	}
}
