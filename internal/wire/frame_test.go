package wire

import (
	"net"
	"testing"
	"time"

	"github.com/ps5upload/engine/internal/cancel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderSizeIsSixteenBytes(t *testing.T) {
	// spec.md §9 open question: comment said 14, code emitted 16.
	assert.Equal(t, 16, HeaderSize)
}

func TestWriteReadFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		done <- WriteFrame(client, Frame{Type: TypePack, Payload: []byte("hello")}, nil, nil)
	}()

	f, err := ReadFrame(server)
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, TypePack, f.Type)
	assert.Equal(t, []byte("hello"), f.Payload)
}

func TestWriteFrameFinishIsEmpty(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_ = WriteFrame(client, Frame{Type: TypeFinish}, nil, nil)
	}()
	f, err := ReadFrame(server)
	require.NoError(t, err)
	assert.Equal(t, TypeFinish, f.Type)
	assert.Empty(t, f.Payload)
}

func TestReadFrameRejectsBadMagic(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = client.Write(make([]byte, HeaderSize))
	}()
	_, err := ReadFrame(server)
	assert.Error(t, err)
}

func TestWriteFrameCancelledBeforeWrite(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	var c cancel.Flag
	c.Cancel()

	payload := make([]byte, MaxWriteChunk*3)
	err := WriteFrame(client, Frame{Type: TypePack, Payload: payload}, &c, nil)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestWriteFrameProgressCallback(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	var lastSent int
	payload := []byte("0123456789")
	go func() {
		_ = WriteFrame(client, Frame{Type: TypePack, Payload: payload}, nil, func(sent int) {
			lastSent = sent
		})
	}()
	_, err := ReadFrame(server)
	require.NoError(t, err)
	// Give the write goroutine's deferred progress call a moment.
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, len(payload), lastSent)
}
