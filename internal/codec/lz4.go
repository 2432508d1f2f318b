package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// encodeLZ4 compresses raw into the "size-prefixed block" envelope
// spec.md §6 describes: a 4-byte LE uncompressed size followed by a
// single LZ4 block.
func encodeLZ4(raw []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(raw))
	dst := make([]byte, 4+bound)
	binary.LittleEndian.PutUint32(dst[:4], uint32(len(raw)))

	var c lz4.Compressor
	n, err := c.CompressBlock(raw, dst[4:])
	if err != nil {
		return nil, fmt.Errorf("codec: lz4 compress: %w", err)
	}
	if n == 0 {
		// Incompressible input: CompressBlock reports 0 when it can't
		// beat storing raw; the caller's fallback-to-raw rule handles
		// this the same as an undersized compressed result.
		return nil, errLZ4Incompressible
	}
	return dst[:4+n], nil
}

func decodeLZ4(payload []byte) ([]byte, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("codec: lz4 payload too short")
	}
	size := binary.LittleEndian.Uint32(payload[:4])
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(payload[4:], dst)
	if err != nil {
		return nil, fmt.Errorf("codec: lz4 decompress: %w", err)
	}
	return dst[:n], nil
}

const errLZ4Incompressible = codecError("codec: lz4 produced no gain")
