package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// encodeLZMA uses the same [u32 size][stream] envelope as Zstd
// (spec.md §6).
func encodeLZMA(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("codec: lzma writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("codec: lzma compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: lzma close: %w", err)
	}

	out := make([]byte, 4+buf.Len())
	binary.LittleEndian.PutUint32(out[:4], uint32(len(raw)))
	copy(out[4:], buf.Bytes())
	return out, nil
}

func decodeLZMA(payload []byte) ([]byte, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("codec: lzma payload too short")
	}
	size := binary.LittleEndian.Uint32(payload[:4])
	r, err := lzma.NewReader(bytes.NewReader(payload[4:]))
	if err != nil {
		return nil, fmt.Errorf("codec: lzma reader: %w", err)
	}
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("codec: lzma decompress: %w", err)
	}
	return out, nil
}
