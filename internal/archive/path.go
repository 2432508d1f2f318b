// Package archive adapts ZIP, 7z, and RAR archives into the same
// streaming chunk shape the packer consumes, with a shared path
// sanitiser guarding all three against traversal.
package archive

import (
	"errors"
	"path"
	"strings"
)

// ErrUnsafePath is returned for any archive member name that does not
// sanitise to a safe relative path.
var ErrUnsafePath = errors.New("archive: unsafe path")

// SanitisePath rejects ".." components, a root "/", Windows drive or
// UNC prefixes, and empty final components, per spec.md §4.3. It
// returns the cleaned, forward-slash relative path on success.
func SanitisePath(name string) (string, error) {
	p := strings.ReplaceAll(name, "\\", "/")

	if p == "" || strings.HasPrefix(p, "/") {
		return "", ErrUnsafePath
	}
	if hasWindowsPrefix(p) {
		return "", ErrUnsafePath
	}

	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrUnsafePath
	}
	for _, part := range strings.Split(clean, "/") {
		if part == ".." || part == "" {
			return "", ErrUnsafePath
		}
	}
	return clean, nil
}

func hasWindowsPrefix(p string) bool {
	if len(p) >= 2 && p[1] == ':' {
		return true // e.g. "C:/..."
	}
	return strings.HasPrefix(p, "//") || strings.HasPrefix(p, "\\\\")
}
