package remote

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startFakeServer accepts one connection at a time and runs handle on
// each, closing the connection when handle returns.
func startFakeServer(t *testing.T, handle func(conn net.Conn, line string)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				line, err := bufio.NewReader(conn).ReadString('\n')
				if err != nil {
					return
				}
				handle(conn, strings.TrimRight(line, "\r\n"))
			}()
		}
	}()
	return ln.Addr().String()
}

func TestExists(t *testing.T) {
	addr := startFakeServer(t, func(conn net.Conn, line string) {
		assert.Equal(t, "EXISTS a.txt", line)
		conn.Write([]byte("1\n"))
	})
	c := NewClient(addr)
	ok, err := c.Exists(context.Background(), "a.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFreeSpace(t *testing.T) {
	addr := startFakeServer(t, func(conn net.Conn, line string) {
		conn.Write([]byte("123456789\n"))
	})
	c := NewClient(addr)
	n, err := c.FreeSpace(context.Background(), "dest")
	require.NoError(t, err)
	assert.Equal(t, int64(123456789), n)
}

func TestListDirRecursiveParsesSizeAndMtime(t *testing.T) {
	addr := startFakeServer(t, func(conn net.Conn, line string) {
		conn.Write([]byte("a.txt 5 1700000000\nsub/b.bin 10\n\n"))
	})
	c := NewClient(addr)
	inv, err := c.ListDirRecursive(context.Background(), "dest")
	require.NoError(t, err)
	require.Contains(t, inv, "a.txt")
	assert.Equal(t, int64(5), inv["a.txt"].Size)
	assert.True(t, inv["a.txt"].HasModTime)
	assert.Equal(t, int64(1700000000), inv["a.txt"].ModTime)

	require.Contains(t, inv, "sub/b.bin")
	assert.False(t, inv["sub/b.bin"].HasModTime)
}

func TestUploadInitReturnsLiveConnOnOK(t *testing.T) {
	addr := startFakeServer(t, func(conn net.Conn, line string) {
		assert.True(t, strings.HasPrefix(line, "UPLOADINIT "))
		conn.Write([]byte("OK\n"))
		time.Sleep(20 * time.Millisecond)
	})
	c := NewClient(addr)
	conn, err := c.UploadInit(context.Background(), "dest/a.txt", "3", false)
	require.NoError(t, err)
	defer conn.Close()
	assert.NotNil(t, conn)
}

func TestUploadInitRequestsTempStaging(t *testing.T) {
	addr := startFakeServer(t, func(conn net.Conn, line string) {
		assert.Equal(t, "UPLOADINIT dest/a.txt 3 true", line)
		conn.Write([]byte("OK\n"))
		time.Sleep(20 * time.Millisecond)
	})
	c := NewClient(addr)
	conn, err := c.UploadInit(context.Background(), "dest/a.txt", "3", true)
	require.NoError(t, err)
	defer conn.Close()
}

func TestUploadInitErrorsOnRefusal(t *testing.T) {
	addr := startFakeServer(t, func(conn net.Conn, line string) {
		conn.Write([]byte("ERR no space\n"))
	})
	c := NewClient(addr)
	_, err := c.UploadInit(context.Background(), "dest/a.txt", "3", false)
	assert.Error(t, err)
}

func TestQueueExtractCarriesMode(t *testing.T) {
	addr := startFakeServer(t, func(conn net.Conn, line string) {
		assert.Equal(t, "EXTRACTQUEUE dest/a.rar turbo", line)
		conn.Write([]byte("OK\n"))
	})
	c := NewClient(addr)
	require.NoError(t, c.QueueExtract(context.Background(), "dest/a.rar", "turbo"))
}

func TestQueueExtractOmitsEmptyMode(t *testing.T) {
	addr := startFakeServer(t, func(conn net.Conn, line string) {
		assert.Equal(t, "EXTRACTQUEUE dest/a.rar", line)
		conn.Write([]byte("OK\n"))
	})
	c := NewClient(addr)
	require.NoError(t, c.QueueExtract(context.Background(), "dest/a.rar", ""))
}

func TestCapabilityForVersion(t *testing.T) {
	assert.Equal(t, false, CapabilityForVersion("1").Zstd)
	assert.Equal(t, true, CapabilityForVersion("2").Zstd)
	assert.Equal(t, false, CapabilityForVersion("2").LZMA)
	assert.Equal(t, true, CapabilityForVersion("v3.1").LZMA)
	assert.Equal(t, false, CapabilityForVersion("garbage").Zstd)
}
