// Package source provides the file-source implementations the
// coordinator hands to workers: an eager directory inventory, a lazy
// background scan, and (via internal/archive) archive-backed sources.
package source

// FileEntry describes one file to be packed and sent.
type FileEntry struct {
	// RelPath is forward-slash normalised, relative to the upload root.
	RelPath string
	// AbsPath is the local filesystem path to open for reading.
	AbsPath string
	Size    int64
	// ModTime is the modification time in epoch seconds, if known
	// (archive sources may leave this at zero).
	ModTime int64
}

// ScanProgress is reported out-of-band while a source is being walked.
type ScanProgress struct {
	FilesFound int
	BytesSoFar int64
}
