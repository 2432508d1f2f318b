package wire

import "encoding/binary"

// MaxPackSize is the hard cap on a pack's buffer, including the
// 4-byte record-count header.
const MaxPackSize = 16 << 20

// recordHeader is the per-record fixed overhead: 2-byte path length +
// 8-byte data length.
const recordHeader = 2 + 8

// countHeaderSize is the 4-byte LE record count at offset 0 of every
// pack buffer.
const countHeaderSize = 4

// PackBuffer accumulates (path, chunk) records into a single
// length-prefixed block bounded by MaxPackSize. The zero value is not
// usable; use NewPackBuffer.
type PackBuffer struct {
	buf         []byte
	recordCount uint32
	bytesAdded  int64
	filesAdded  int
}

// NewPackBuffer returns an empty pack with its 4-byte count header
// already in place.
func NewPackBuffer() *PackBuffer {
	p := &PackBuffer{buf: make([]byte, countHeaderSize, 64<<10)}
	return p
}

// CanFit reports whether a record of the given path/data lengths
// still fits within MaxPackSize.
func (p *PackBuffer) CanFit(pathLen, dataLen int) bool {
	return int64(len(p.buf))+int64(recordHeader)+int64(pathLen)+int64(dataLen) <= MaxPackSize
}

// Size returns the buffer's current size including the count header.
func (p *PackBuffer) Size() int {
	return len(p.buf)
}

// Available returns how many data bytes a record with the given path
// length could still add before the pack hits MaxPackSize. Zero or
// negative means the pack must be flushed first.
func (p *PackBuffer) Available(pathLen int) int {
	return MaxPackSize - len(p.buf) - recordHeader - pathLen
}

// BytesAdded returns the cumulative payload bytes appended since the
// last reset.
func (p *PackBuffer) BytesAdded() int64 { return p.bytesAdded }

// FilesAdded returns the number of files fully appended (their final
// chunk has landed) since the last reset.
func (p *PackBuffer) FilesAdded() int { return p.filesAdded }

// Empty reports whether any records have been appended.
func (p *PackBuffer) Empty() bool { return p.recordCount == 0 }

// AddRecord appends one record: path length (u16 LE), path bytes,
// data length (u64 LE), data bytes. final marks that data is the last
// chunk of its file, bumping FilesAdded.
//
// Callers must check CanFit first; AddRecord does not re-validate the
// size bound, matching spec.md §4.2's "can_fit then add_record"
// two-step contract.
func (p *PackBuffer) AddRecord(path string, data []byte, final bool) {
	var hdr [recordHeader]byte
	binary.LittleEndian.PutUint16(hdr[0:2], uint16(len(path)))
	p.buf = append(p.buf, hdr[0:2]...)
	p.buf = append(p.buf, path...)

	var dlen [8]byte
	binary.LittleEndian.PutUint64(dlen[:], uint64(len(data)))
	p.buf = append(p.buf, dlen[:]...)
	p.buf = append(p.buf, data...)

	p.recordCount++
	binary.LittleEndian.PutUint32(p.buf[0:4], p.recordCount)
	p.bytesAdded += int64(len(data))
	if final {
		p.filesAdded++
	}
}

// ReadyPack is a closed pack buffer handed from packer to sender.
type ReadyPack struct {
	Bytes        []byte
	BytesInPack  int64
	FilesInPack  int
}

// TakeReadyPack atomically extracts the current buffer into a
// ReadyPack and resets p to a fresh, empty pack.
func (p *PackBuffer) TakeReadyPack() ReadyPack {
	ready := ReadyPack{
		Bytes:       p.buf,
		BytesInPack: p.bytesAdded,
		FilesInPack: p.filesAdded,
	}
	p.buf = make([]byte, countHeaderSize, 64<<10)
	p.recordCount = 0
	p.bytesAdded = 0
	p.filesAdded = 0
	return ready
}

// Record is one decoded (path, data) entry within a pack, used by
// tests exercising the round-trip property.
type Record struct {
	Path string
	Data []byte
}

// DecodeRecords parses a raw pack buffer (count header + records)
// back into a slice of Records, in wire order.
func DecodeRecords(buf []byte) ([]Record, error) {
	if len(buf) < countHeaderSize {
		return nil, errShortPack
	}
	count := binary.LittleEndian.Uint32(buf[0:4])
	off := countHeaderSize
	records := make([]Record, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+2 > len(buf) {
			return nil, errShortPack
		}
		pathLen := int(binary.LittleEndian.Uint16(buf[off : off+2]))
		off += 2
		if off+pathLen+8 > len(buf) {
			return nil, errShortPack
		}
		path := string(buf[off : off+pathLen])
		off += pathLen
		dataLen := int(binary.LittleEndian.Uint64(buf[off : off+8]))
		off += 8
		if off+dataLen > len(buf) {
			return nil, errShortPack
		}
		data := buf[off : off+dataLen]
		off += dataLen
		records = append(records, Record{Path: path, Data: data})
	}
	return records, nil
}

var errShortPack = shortPackError("wire: truncated pack")

type shortPackError string

func (e shortPackError) Error() string { return string(e) }
