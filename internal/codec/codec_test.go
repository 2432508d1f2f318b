package codec

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/ps5upload/engine/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compressibleSample(n int) []byte {
	return bytes.Repeat([]byte{0}, n)
}

func randomSample(t *testing.T, n int) []byte {
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	return buf
}

func TestLZ4RoundTrip(t *testing.T) {
	raw := compressibleSample(10 << 20)
	enc := Encode(LZ4, raw)
	assert.Equal(t, wire.TypePackLZ4, enc.FrameType)
	assert.Less(t, len(enc.Payload), 1<<20)

	out, err := Decode(enc.FrameType, enc.Payload)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestZstdRoundTrip(t *testing.T) {
	raw := compressibleSample(1 << 20)
	enc := Encode(Zstd, raw)
	assert.Equal(t, wire.TypePackZstd, enc.FrameType)

	out, err := Decode(enc.FrameType, enc.Payload)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestLZMARoundTrip(t *testing.T) {
	raw := compressibleSample(1 << 20)
	enc := Encode(LZMA, raw)
	assert.Equal(t, wire.TypePackLZMA, enc.FrameType)

	out, err := Decode(enc.FrameType, enc.Payload)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestFallbackToRawOnIncompressibleData(t *testing.T) {
	raw := randomSample(t, 10<<20)
	for _, mode := range []Mode{LZ4, Zstd, LZMA} {
		enc := Encode(mode, raw)
		assert.Equal(t, wire.TypePack, enc.FrameType, mode)
		assert.Equal(t, raw, enc.Payload, mode)
	}
}

func TestNoneModePassesThroughRaw(t *testing.T) {
	raw := []byte("hello")
	enc := Encode(None, raw)
	assert.Equal(t, wire.TypePack, enc.FrameType)
	assert.Equal(t, raw, enc.Payload)
}

func TestAutoSelectDowngradesWithoutCapability(t *testing.T) {
	raw := compressibleSample(1 << 20)
	mode := AutoSelect(raw, Capability{Zstd: false, LZMA: false})
	assert.Equal(t, LZ4, mode)
}

func TestAutoSelectPrefersBestRatio(t *testing.T) {
	raw := compressibleSample(1 << 20)
	mode := AutoSelect(raw, Capability{Zstd: true, LZMA: true})
	assert.Contains(t, []Mode{LZ4, Zstd, LZMA}, mode)

	chosen := len(Encode(mode, raw).Payload)
	for _, m := range []Mode{LZ4, Zstd, LZMA} {
		assert.LessOrEqual(t, chosen, len(Encode(m, raw).Payload), m)
	}
}
