package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ps5upload/engine/internal/cancel"
)

// lazyChannelDepth matches spec.md §4.3/§5: capacity 10,000.
const lazyChannelDepth = 10000

// LazySource walks root on a background goroutine, pushing FileEntry
// values through a bounded channel so scanning overlaps uploading.
// Used when resume is off (spec.md §4.3).
type LazySource struct {
	entries chan FileEntry
	errc    chan error
}

// StartLazy begins the background walk and returns immediately.
func StartLazy(ctx context.Context, root string, c *cancel.Flag, onProgress func(ScanProgress)) *LazySource {
	ls := &LazySource{
		entries: make(chan FileEntry, lazyChannelDepth),
		errc:    make(chan error, 1),
	}
	go ls.run(ctx, root, c, onProgress)
	return ls
}

func (ls *LazySource) run(ctx context.Context, root string, c *cancel.Flag, onProgress func(ScanProgress)) {
	defer close(ls.entries)

	info, err := os.Stat(root)
	if err != nil {
		ls.errc <- fmt.Errorf("source: stat %s: %w", root, err)
		return
	}
	if !info.IsDir() {
		ls.entries <- FileEntry{RelPath: filepath.Base(root), AbsPath: root, Size: info.Size(), ModTime: info.ModTime().Unix()}
		return
	}

	var found int
	var bytesSoFar int64
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil || (c != nil && c.Cancelled()) {
			return context.Canceled
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entry := FileEntry{RelPath: toSlash(rel), AbsPath: path, Size: info.Size(), ModTime: info.ModTime().Unix()}
		select {
		case ls.entries <- entry:
		case <-ctx.Done():
			return context.Canceled
		}
		found++
		bytesSoFar += info.Size()
		if onProgress != nil && found%scanReportInterval == 0 {
			onProgress(ScanProgress{FilesFound: found, BytesSoFar: bytesSoFar})
		}
		return nil
	})
	if walkErr != nil && walkErr != context.Canceled {
		ls.errc <- fmt.Errorf("source: walk %s: %w", root, walkErr)
	}
	if onProgress != nil {
		onProgress(ScanProgress{FilesFound: found, BytesSoFar: bytesSoFar})
	}
}

// Entries returns the channel workers receive FileEntry values from.
func (ls *LazySource) Entries() <-chan FileEntry { return ls.entries }

// Err returns a non-blocking check for a scan error; nil if none (yet).
func (ls *LazySource) Err() error {
	select {
	case err := <-ls.errc:
		return err
	default:
		return nil
	}
}
