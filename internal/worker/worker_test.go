package worker

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/ps5upload/engine/internal/cancel"
	"github.com/ps5upload/engine/internal/codec"
	"github.com/ps5upload/engine/internal/source"
	"github.com/ps5upload/engine/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sliceSource(entries []source.FileEntry) NextFunc {
	i := 0
	return func() (source.FileEntry, bool) {
		if i >= len(entries) {
			return source.FileEntry{}, false
		}
		e := entries[i]
		i++
		return e, true
	}
}

// TestSingleSmallFileEndToEnd is scenario 1 from spec.md §8: a single
// 5-byte file, no compression, one connection, resume off.
func TestSingleSmallFileEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	next := sliceSource([]source.FileEntry{{RelPath: "a.txt", AbsPath: path, Size: 5}})

	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- Run(context.Background(), Config{
			ID:   0,
			Conn: client,
			Mode: codec.None,
			Next: next,
		})
	}()

	f1, err := wire.ReadFrame(server)
	require.NoError(t, err)
	assert.Equal(t, wire.TypePack, f1.Type)

	records, err := wire.DecodeRecords(f1.Payload)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a.txt", records[0].Path)
	assert.Equal(t, []byte("hello"), records[0].Data)

	f2, err := wire.ReadFrame(server)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeFinish, f2.Type)

	result := <-resultCh
	require.NoError(t, result.Err)
	assert.Equal(t, int64(5), result.BytesSent)
	assert.Equal(t, 1, result.FilesSent)
}

func TestWorkerCancellationStopsPromptly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	data := make([]byte, 2<<20)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	client, server := net.Pipe()
	defer client.Close()

	var c cancel.Flag
	next := sliceSource([]source.FileEntry{{RelPath: "big.bin", AbsPath: path, Size: int64(len(data))}})

	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- Run(context.Background(), Config{ID: 0, Conn: client, Mode: codec.None, Next: next, Cancel: &c})
	}()

	c.Cancel()
	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
		}
	}()

	result := <-resultCh
	assert.Error(t, result.Err)
}

func TestEmptyFileGetsZeroLengthRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	next := sliceSource([]source.FileEntry{{RelPath: "empty.txt", AbsPath: path, Size: 0}})
	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- Run(context.Background(), Config{ID: 0, Conn: client, Mode: codec.None, Next: next})
	}()

	f1, err := wire.ReadFrame(server)
	require.NoError(t, err)
	records, err := wire.DecodeRecords(f1.Payload)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Data)

	_, err = wire.ReadFrame(server) // Finish
	require.NoError(t, err)

	result := <-resultCh
	require.NoError(t, result.Err)
	assert.Equal(t, 1, result.FilesSent)
}
