package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/nwaples/rardecode/v2"
	"github.com/ps5upload/engine/internal/cancel"
)

// walkRar streams a RAR archive member by member. rardecode exposes a
// pull-style Next()/Read() API (not a raw push callback), but the
// underlying C-library equivalents on some platforms only deliver
// filenames as UTF-16 and decode to UTF-8 on Linux/NetBSD (spec.md
// §4.3); rardecode normalises that internally, so this side only has
// to sanitise whatever UTF-8 name it receives.
func walkRar(ctx context.Context, archivePath string, c *cancel.Flag, h Handler) error {
	r, err := rardecode.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("archive: open rar %s: %w", archivePath, err)
	}
	defer r.Close()

	for {
		if err := checkCancel(ctx, c); err != nil {
			return err
		}
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("archive: read rar header: %w", err)
		}
		if header.IsDir {
			continue
		}
		safe, err := SanitisePath(header.Name)
		if err != nil {
			return fmt.Errorf("archive: %s: %w", header.Name, err)
		}
		if err := streamReader(ctx, c, r, safe, h); err != nil {
			return err
		}
	}
}
