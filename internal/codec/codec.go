// Package codec implements the pack compression variants: LZ4, Zstd,
// and LZMA, each with the fallback-to-raw rule spec.md §4.1/§4.4
// requires, plus the auto-select sampler.
package codec

import (
	"fmt"

	"github.com/ps5upload/engine/internal/wire"
)

// Mode selects which codec a worker's sender stage uses.
type Mode int

const (
	None Mode = iota
	LZ4
	Zstd
	LZMA
	Auto
)

func (m Mode) String() string {
	switch m {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	case LZMA:
		return "lzma"
	case Auto:
		return "auto"
	default:
		return "unknown"
	}
}

// ParseMode parses the five textual modes spec.md §6 names.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	case "lzma":
		return LZMA, nil
	case "auto":
		return Auto, nil
	default:
		return None, fmt.Errorf("codec: unknown mode %q", s)
	}
}

// Encoded is a pack ready to be framed: the frame type to use and the
// bytes to send as its payload.
type Encoded struct {
	FrameType uint32
	Payload   []byte
}

// Encode compresses raw with the given mode and applies the
// fallback-to-raw rule: if the compressed+envelope size is not
// strictly smaller than raw (or encoding failed), the raw bytes are
// returned unchanged under wire.TypePack.
func Encode(mode Mode, raw []byte) Encoded {
	switch mode {
	case LZ4:
		if out, err := encodeLZ4(raw); err == nil && len(out) < len(raw) {
			return Encoded{FrameType: wire.TypePackLZ4, Payload: out}
		}
	case Zstd:
		if out, err := encodeZstd(raw); err == nil && len(out) < len(raw) {
			return Encoded{FrameType: wire.TypePackZstd, Payload: out}
		}
	case LZMA:
		if out, err := encodeLZMA(raw); err == nil && len(out) < len(raw) {
			return Encoded{FrameType: wire.TypePackLZMA, Payload: out}
		}
	}
	return Encoded{FrameType: wire.TypePack, Payload: raw}
}

// Decode reverses Encode for a received frame, used by tests exercising
// the round-trip property end to end.
func Decode(frameType uint32, payload []byte) ([]byte, error) {
	switch frameType {
	case wire.TypePack:
		return payload, nil
	case wire.TypePackLZ4:
		return decodeLZ4(payload)
	case wire.TypePackZstd:
		return decodeZstd(payload)
	case wire.TypePackLZMA:
		return decodeLZMA(payload)
	default:
		return nil, errUnknownFrameType
	}
}

type codecError string

func (e codecError) Error() string { return string(e) }

const errUnknownFrameType = codecError("codec: unknown frame type")
