package archive

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestWalkZipStreamsEveryMember(t *testing.T) {
	path := writeTestZip(t, map[string]string{
		"a.txt":     "hello",
		"dir/b.txt": "world",
		"empty.txt": "",
	})

	got := map[string][]byte{}
	finals := map[string]bool{}
	err := Walk(context.Background(), path, FormatZip, nil, func(c Chunk) error {
		got[c.Path] = append(got[c.Path], c.Data...)
		if c.Final {
			finals[c.Path] = true
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got["a.txt"]))
	assert.Equal(t, "world", string(got["dir/b.txt"]))
	assert.True(t, finals["a.txt"])
	assert.True(t, finals["dir/b.txt"])
	assert.True(t, finals["empty.txt"])
}

func TestWalkZipRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evil.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("../../etc/passwd")
	require.NoError(t, err)
	_, _ = w.Write([]byte("x"))
	require.NoError(t, zw.Close())
	f.Close()

	err = Walk(context.Background(), path, FormatZip, nil, func(Chunk) error { return nil })
	assert.ErrorIs(t, err, ErrUnsafePath)
}

func TestDetectFormat(t *testing.T) {
	f, err := DetectFormat("game.zip")
	require.NoError(t, err)
	assert.Equal(t, FormatZip, f)

	f, err = DetectFormat("game.7z")
	require.NoError(t, err)
	assert.Equal(t, FormatSevenZip, f)

	f, err = DetectFormat("game.rar")
	require.NoError(t, err)
	assert.Equal(t, FormatRar, f)

	_, err = DetectFormat("game.bin")
	assert.Error(t, err)
}
