package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitisePathAccepted(t *testing.T) {
	for _, in := range []string{"a.txt", "dir/a.txt", "a/b/c.bin", "./a.txt"} {
		got, err := SanitisePath(in)
		assert.NoError(t, err, in)
		assert.NotEmpty(t, got)
	}
}

func TestSanitisePathRejected(t *testing.T) {
	for _, in := range []string{
		"../escape.txt",
		"a/../../escape.txt",
		"/etc/passwd",
		"C:/Windows/system32",
		`\\server\share\file`,
		"",
		"..",
	} {
		_, err := SanitisePath(in)
		assert.ErrorIs(t, err, ErrUnsafePath, in)
	}
}
