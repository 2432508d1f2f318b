package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// scanReportInterval matches spec.md §4.3's "every 1,000 files".
const scanReportInterval = 1000

// Eager walks root synchronously and returns a finite, ordered list of
// FileEntry. A single-file root synthesises one entry from the
// basename, per spec.md §4.3.
func Eager(root string, onProgress func(ScanProgress)) ([]FileEntry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source: stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return []FileEntry{{
			RelPath: filepath.Base(root),
			AbsPath: root,
			Size:    info.Size(),
			ModTime: info.ModTime().Unix(),
		}}, nil
	}

	var entries []FileEntry
	var bytesSoFar int64
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("source: stat %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("source: relpath %s: %w", path, err)
		}
		entries = append(entries, FileEntry{
			RelPath: toSlash(rel),
			AbsPath: path,
			Size:    info.Size(),
			ModTime: info.ModTime().Unix(),
		})
		bytesSoFar += info.Size()
		if onProgress != nil && len(entries)%scanReportInterval == 0 {
			onProgress(ScanProgress{FilesFound: len(entries), BytesSoFar: bytesSoFar})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source: walk %s: %w", root, err)
	}
	if onProgress != nil {
		onProgress(ScanProgress{FilesFound: len(entries), BytesSoFar: bytesSoFar})
	}
	// Deterministic order makes bucketing and tests reproducible.
	sort.Slice(entries, func(i, j int) bool { return entries[i].RelPath < entries[j].RelPath })
	return entries, nil
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
