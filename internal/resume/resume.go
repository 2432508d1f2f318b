// Package resume implements the pre-upload planning pass that decides
// which local files can be skipped against a pre-existing remote
// destination (spec.md §4.6).
package resume

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/ps5upload/engine/internal/source"
)

// Mode selects how a local file is compared against the remote
// listing to decide whether it can be skipped.
type Mode int

const (
	Off Mode = iota
	Size
	SizeMtime
	SHA256
)

func (m Mode) String() string {
	switch m {
	case Off:
		return "off"
	case Size:
		return "size"
	case SizeMtime:
		return "size_mtime"
	case SHA256:
		return "sha256"
	default:
		return "unknown"
	}
}

// ParseMode parses the four textual modes spec.md §4.6/§6 names.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "off", "":
		return Off, nil
	case "size":
		return Size, nil
	case "size_mtime":
		return SizeMtime, nil
	case "sha256":
		return SHA256, nil
	default:
		return Off, fmt.Errorf("resume: unknown mode %q", s)
	}
}

// RemoteEntry is one remote inventory record.
type RemoteEntry struct {
	Size       int64
	ModTime    int64 // unix seconds, second precision per spec.md §4.6
	HasModTime bool
}

// Inventory is the recursive remote listing, keyed by the same
// forward-slash relative path FileEntry uses.
type Inventory map[string]RemoteEntry

// RemoteHasher fetches the remote's content hash for one relative
// path, used only in SHA256 mode.
type RemoteHasher func(relPath string) (string, error)

// Plan is the outcome of one planning pass.
type Plan struct {
	Keep         []source.FileEntry
	SkippedCount int
	SkippedBytes int64
}

// Compute applies mode against local entries and the remote inventory.
// destExists false means "send everything" (spec.md §4.6 step 1):
// Compute must not be called in that case with a non-empty inventory
// that implies otherwise, but it is harmless either way since an empty
// Inventory behaves identically.
//
// Local files are hashed, and remoteHash is called, only in SHA256
// mode and only for entries whose remote size matches. remoteHash may
// be nil for Off/Size/SizeMtime; in SHA256 mode a nil remoteHash keeps
// every file.
func Compute(mode Mode, destExists bool, local []source.FileEntry, inventory Inventory, remoteHash RemoteHasher) (Plan, error) {
	if mode == Off || !destExists {
		return Plan{Keep: local}, nil
	}

	plan := Plan{Keep: make([]source.FileEntry, 0, len(local))}
	for _, entry := range local {
		skip, err := shouldSkip(mode, entry, inventory, remoteHash)
		if err != nil {
			return Plan{}, err
		}
		if skip {
			plan.SkippedCount++
			plan.SkippedBytes += entry.Size
			continue
		}
		plan.Keep = append(plan.Keep, entry)
	}
	return plan, nil
}

func shouldSkip(mode Mode, entry source.FileEntry, inventory Inventory, remoteHash RemoteHasher) (bool, error) {
	remote, ok := inventory[entry.RelPath]
	if !ok {
		return false, nil
	}
	if remote.Size != entry.Size {
		return false, nil
	}
	switch mode {
	case Size:
		return true, nil
	case SizeMtime:
		return remote.HasModTime && remote.ModTime == entry.ModTime, nil
	case SHA256:
		if remoteHash == nil {
			return false, nil
		}
		localSum, err := hashLocalFile(entry.AbsPath)
		if err != nil {
			return false, err
		}
		remoteSum, err := remoteHash(entry.RelPath)
		if err != nil {
			return false, err
		}
		return localSum == remoteSum, nil
	default:
		return false, nil
	}
}

func hashLocalFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("resume: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("resume: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DisabledForArchive reports whether mode must be forced to Off,
// per spec.md §4.6's last line: "Resume is automatically disabled for
// archive uploads."
func DisabledForArchive(mode Mode, isArchive bool) Mode {
	if isArchive {
		return Off
	}
	return mode
}
