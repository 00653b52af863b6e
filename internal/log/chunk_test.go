package log

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		ChunkType:        ChunkUser,
		NumEntries:       3,
		NumRecords:       5,
		Timestamp:        1690000000000,
		Epoch:            7,
		ChunkFirstOffset: 42,
		CRC32:            0xdeadbeef,
		DataLen:          128,
		TrailerLen:       16,
	}
	buf := make([]byte, HeaderSize)
	EncodeHeader(buf, h)
	require.Len(t, buf, HeaderSize)

	got, err := DecodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	buf := make([]byte, HeaderSize)
	_, err := DecodeHeader(buf)
	require.ErrorIs(t, err, ErrBadChunkHeader)
}

func TestEncodeChunkRoundTrip(t *testing.T) {
	entries := []Entry{
		NewRecordEntry([]byte("one")),
		NewRecordEntry([]byte("two")),
	}
	dedup := map[string]WriterDedupEntry{
		"writer-a": {Timestamp: 100, Sequence: 1},
	}

	buf, h, numRecords, err := EncodeChunk(1000, 1, 50, entries, dedup)
	require.NoError(t, err)
	require.Equal(t, uint32(2), numRecords)
	require.Equal(t, ChunkUser, h.ChunkType)
	require.Equal(t, uint64(50), h.ChunkFirstOffset)

	gotHeader, err := DecodeHeader(buf[:HeaderSize])
	require.NoError(t, err)
	require.Equal(t, h, gotHeader)

	data := buf[HeaderSize : HeaderSize+h.DataLen]
	require.NoError(t, VerifyCRC(gotHeader, data))

	records, err := ParseUserEntries(data, h.NumEntries, h.ChunkFirstOffset)
	require.NoError(t, err)
	require.Equal(t, []ParsedRecord{
		{Offset: 50, Value: []byte("one")},
		{Offset: 51, Value: []byte("two")},
	}, records)

	trailer := buf[HeaderSize+h.DataLen:]
	gotDedup, err := decodeTrailer(trailer, h.ChunkFirstOffset)
	require.NoError(t, err)
	require.Equal(t, WriterDedupEntry{ChunkID: 50, Timestamp: 100, Sequence: 1}, gotDedup["writer-a"])
}

func TestVerifyCRCDetectsCorruption(t *testing.T) {
	buf, h, _, err := EncodeChunk(1000, 1, 0, []Entry{NewRecordEntry([]byte("x"))}, nil)
	require.NoError(t, err)

	data := buf[HeaderSize : HeaderSize+h.DataLen]
	corrupted := append([]byte(nil), data...)
	corrupted[0] ^= 0xff

	require.NoError(t, VerifyCRC(h, data))
	require.ErrorIs(t, VerifyCRC(h, corrupted), ErrCRCValidationFailure)
}

func TestEncodeZeroWidthChunk(t *testing.T) {
	body := encodeTrackingBody(map[string]uint64{"consumer-a": 10})
	buf, h := EncodeZeroWidthChunk(ChunkTrackingSnapshot, 1, 1, 99, body)
	require.Equal(t, uint32(0), h.NumRecords)
	require.Equal(t, uint64(99), h.ChunkFirstOffset)

	gotHeader, err := DecodeHeader(buf[:HeaderSize])
	require.NoError(t, err)
	data := buf[HeaderSize : HeaderSize+gotHeader.DataLen]
	snap, err := decodeTrackingBody(data)
	require.NoError(t, err)
	require.Equal(t, map[string]uint64{"consumer-a": 10}, snap)
}
