package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEagerSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	entries, err := Eager(path, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].RelPath)
	assert.Equal(t, int64(5), entries[0].Size)
}

func TestEagerDirectoryTree(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("22"), 0o644))

	entries, err := Eager(dir, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].RelPath)
	assert.Equal(t, "sub/b.txt", entries[1].RelPath)
}

func TestLazySourceDelivers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("22"), 0o644))

	ls := StartLazy(context.Background(), dir, nil, nil)
	var got []string
	for e := range ls.Entries() {
		got = append(got, e.RelPath)
	}
	assert.NoError(t, ls.Err())
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, got)
}
