package resume

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ps5upload/engine/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{"off": Off, "": Off, "size": Size, "size_mtime": SizeMtime, "sha256": SHA256}
	for in, want := range cases {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("bogus")
	assert.Error(t, err)
}

func TestComputeOffSendsEverything(t *testing.T) {
	local := []source.FileEntry{{RelPath: "a.txt", Size: 5}}
	plan, err := Compute(Off, true, local, Inventory{"a.txt": {Size: 5}}, nil)
	require.NoError(t, err)
	assert.Equal(t, local, plan.Keep)
	assert.Zero(t, plan.SkippedCount)
}

func TestComputeDestMissingSendsEverything(t *testing.T) {
	local := []source.FileEntry{{RelPath: "a.txt", Size: 5}}
	plan, err := Compute(Size, false, local, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, local, plan.Keep)
}

func TestComputeSizeModeSkipsMatchingSize(t *testing.T) {
	local := []source.FileEntry{
		{RelPath: "a.txt", Size: 5},
		{RelPath: "b.txt", Size: 7},
	}
	inv := Inventory{"a.txt": {Size: 5}, "b.txt": {Size: 999}}
	plan, err := Compute(Size, true, local, inv, nil)
	require.NoError(t, err)
	require.Len(t, plan.Keep, 1)
	assert.Equal(t, "b.txt", plan.Keep[0].RelPath)
	assert.Equal(t, 1, plan.SkippedCount)
	assert.Equal(t, int64(5), plan.SkippedBytes)
}

func TestComputeSizeMtimeRequiresBoth(t *testing.T) {
	local := []source.FileEntry{{RelPath: "a.txt", Size: 5, ModTime: 100}}
	invSameSizeDiffTime := Inventory{"a.txt": {Size: 5, ModTime: 200, HasModTime: true}}
	plan, err := Compute(SizeMtime, true, local, invSameSizeDiffTime, nil)
	require.NoError(t, err)
	assert.Len(t, plan.Keep, 1, "different mtime must not be skipped")

	invMatching := Inventory{"a.txt": {Size: 5, ModTime: 100, HasModTime: true}}
	plan, err = Compute(SizeMtime, true, local, invMatching, nil)
	require.NoError(t, err)
	assert.Len(t, plan.Keep, 0)
}

func TestComputeSHA256ModeComparesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	local := []source.FileEntry{{RelPath: "a.txt", AbsPath: path, Size: 5}}
	inv := Inventory{"a.txt": {Size: 5}}

	const matchingHash = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	remoteHash := func(rel string) (string, error) { return matchingHash, nil }
	plan, err := Compute(SHA256, true, local, inv, remoteHash)
	require.NoError(t, err)
	assert.Len(t, plan.Keep, 0)

	mismatchHash := func(rel string) (string, error) { return "not-a-real-hash", nil }
	plan, err = Compute(SHA256, true, local, inv, mismatchHash)
	require.NoError(t, err)
	assert.Len(t, plan.Keep, 1)
}

func TestDisabledForArchive(t *testing.T) {
	assert.Equal(t, Off, DisabledForArchive(SHA256, true))
	assert.Equal(t, Size, DisabledForArchive(Size, false))
}
