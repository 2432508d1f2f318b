package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackBufferCountHeader(t *testing.T) {
	p := NewPackBuffer()
	assert.True(t, p.Empty())
	p.AddRecord("a.txt", []byte("hello"), true)
	p.AddRecord("b.txt", []byte("world"), true)
	assert.Equal(t, uint32(2), recordCountOf(p))
	assert.Equal(t, 2, p.FilesAdded())
}

func recordCountOf(p *PackBuffer) uint32 {
	return p.recordCount
}

func TestPackBufferSizeBound(t *testing.T) {
	p := NewPackBuffer()
	data := make([]byte, 1<<20)
	for p.CanFit(len("f"), len(data)) {
		p.AddRecord("f", data, true)
	}
	assert.LessOrEqual(t, p.Size(), MaxPackSize)
}

func TestPackBufferPartialFileDoesNotCountUntilFinal(t *testing.T) {
	p := NewPackBuffer()
	p.AddRecord("big.bin", []byte("part1"), false)
	assert.Equal(t, 0, p.FilesAdded())
	p.AddRecord("big.bin", []byte("part2"), true)
	assert.Equal(t, 1, p.FilesAdded())
}

func TestTakeReadyPackResets(t *testing.T) {
	p := NewPackBuffer()
	p.AddRecord("x", []byte("1234"), true)
	ready := p.TakeReadyPack()
	assert.Equal(t, int64(4), ready.BytesInPack)
	assert.Equal(t, 1, ready.FilesInPack)
	assert.True(t, p.Empty())
	assert.Equal(t, countHeaderSize, p.Size())
}

func TestRoundTripSingleRecord(t *testing.T) {
	p := NewPackBuffer()
	p.AddRecord("a/b/hello.txt", []byte("hello"), true)
	ready := p.TakeReadyPack()

	records, err := DecodeRecords(ready.Bytes)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a/b/hello.txt", records[0].Path)
	assert.Equal(t, []byte("hello"), records[0].Data)
}

func TestRoundTripMultiRecordFileAcrossPacks(t *testing.T) {
	// Simulate a file too large for one pack: two packs, each holding
	// one record of the same path; concatenating data in order must
	// reproduce the original bytes.
	p1 := NewPackBuffer()
	p1.AddRecord("big.bin", []byte("AAAA"), false)
	pack1 := p1.TakeReadyPack()

	p2 := NewPackBuffer()
	p2.AddRecord("big.bin", []byte("BBBB"), true)
	pack2 := p2.TakeReadyPack()

	recs1, err := DecodeRecords(pack1.Bytes)
	require.NoError(t, err)
	recs2, err := DecodeRecords(pack2.Bytes)
	require.NoError(t, err)

	var reassembled []byte
	for _, r := range append(recs1, recs2...) {
		reassembled = append(reassembled, r.Data...)
	}
	assert.Equal(t, []byte("AAAABBBB"), reassembled)
}

func TestDecodeRecordsRejectsTruncatedPack(t *testing.T) {
	_, err := DecodeRecords([]byte{1, 0, 0})
	assert.Error(t, err)
}
