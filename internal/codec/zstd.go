package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdLevel matches spec.md §4.1: level 19.
var zstdLevel = zstd.WithEncoderLevel(zstd.SpeedBestCompression)

func encodeZstd(raw []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstdLevel)
	if err != nil {
		return nil, fmt.Errorf("codec: zstd encoder: %w", err)
	}
	defer enc.Close()

	compressed := enc.EncodeAll(raw, nil)

	out := make([]byte, 4+len(compressed))
	binary.LittleEndian.PutUint32(out[:4], uint32(len(raw)))
	copy(out[4:], compressed)
	return out, nil
}

func decodeZstd(payload []byte) ([]byte, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("codec: zstd payload too short")
	}
	size := binary.LittleEndian.Uint32(payload[:4])
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: zstd decoder: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(payload[4:], make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("codec: zstd decompress: %w", err)
	}
	return out, nil
}
