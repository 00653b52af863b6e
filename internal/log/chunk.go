// Package log implements the append-only, segmented log storage engine:
// chunk encoding, segment and index files, the writer/acceptor state
// machine, offset and data readers, and retention.
package log

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// ChunkType discriminates the payload carried by a chunk.
type ChunkType uint8

const (
	ChunkUser         ChunkType = 0
	ChunkTrackingDelta ChunkType = 1
	ChunkTrackingSnapshot ChunkType = 2
	ChunkWriterSnapshot ChunkType = 3
)

func (t ChunkType) String() string {
	switch t {
	case ChunkUser:
		return "user"
	case ChunkTrackingDelta:
		return "tracking_delta"
	case ChunkTrackingSnapshot:
		return "tracking_snapshot"
	case ChunkWriterSnapshot:
		return "writer_snapshot"
	default:
		return fmt.Sprintf("chunk_type(%d)", uint8(t))
	}
}

const (
	chunkMagic   uint32 = 5
	chunkVersion uint32 = 1

	// HeaderSize is the fixed on-disk size of a chunk header, in bytes.
	HeaderSize = 56

	headerReservedBytes = HeaderSize - (4 + 4 + 1 + 2 + 4 + 8 + 8 + 8 + 4 + 4 + 4)
)

// Header is the fixed 56-byte chunk header.
type Header struct {
	ChunkType        ChunkType
	NumEntries       uint16
	NumRecords       uint32
	Timestamp        int64
	Epoch            uint64
	ChunkFirstOffset uint64
	CRC32            uint32
	DataLen          uint32
	TrailerLen       uint32
}

// EncodeHeader writes h's bit-exact 56-byte representation into buf, which
// must be at least HeaderSize bytes.
func EncodeHeader(buf []byte, h Header) {
	binary.BigEndian.PutUint32(buf[0:4], chunkMagic)
	binary.BigEndian.PutUint32(buf[4:8], chunkVersion)
	buf[8] = byte(h.ChunkType)
	binary.BigEndian.PutUint16(buf[9:11], h.NumEntries)
	binary.BigEndian.PutUint32(buf[11:15], h.NumRecords)
	binary.BigEndian.PutUint64(buf[15:23], uint64(h.Timestamp))
	binary.BigEndian.PutUint64(buf[23:31], h.Epoch)
	binary.BigEndian.PutUint64(buf[31:39], h.ChunkFirstOffset)
	binary.BigEndian.PutUint32(buf[39:43], h.CRC32)
	binary.BigEndian.PutUint32(buf[43:47], h.DataLen)
	binary.BigEndian.PutUint32(buf[47:51], h.TrailerLen)
	for i := 51; i < HeaderSize; i++ {
		buf[i] = 0
	}
}

// DecodeHeader parses exactly HeaderSize bytes into a Header. The magic
// and version are each stored as a full big-endian uint32, not as packed
// 4-bit nibbles; an unrecognized magic or version value is a
// bad_chunk_header fatal condition (ErrBadChunkHeader).
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("chunk header: need %d bytes, got %d: %w", HeaderSize, len(buf), ErrBadChunkHeader)
	}
	magic := binary.BigEndian.Uint32(buf[0:4])
	version := binary.BigEndian.Uint32(buf[4:8])
	if magic != chunkMagic || version != chunkVersion {
		return Header{}, fmt.Errorf("chunk header: magic=%d version=%d: %w", magic, version, ErrBadChunkHeader)
	}
	h := Header{
		ChunkType:        ChunkType(buf[8]),
		NumEntries:       binary.BigEndian.Uint16(buf[9:11]),
		NumRecords:       binary.BigEndian.Uint32(buf[11:15]),
		Timestamp:        int64(binary.BigEndian.Uint64(buf[15:23])),
		Epoch:            binary.BigEndian.Uint64(buf[23:31]),
		ChunkFirstOffset: binary.BigEndian.Uint64(buf[31:39]),
		CRC32:            binary.BigEndian.Uint32(buf[39:43]),
		DataLen:          binary.BigEndian.Uint32(buf[43:47]),
		TrailerLen:       binary.BigEndian.Uint32(buf[47:51]),
	}
	return h, nil
}

// crc computes the CRC-32 (IEEE) of a chunk's entry-region bytes.
func crc(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// EncodeChunk assembles a complete USER chunk (header + entries + trailer)
// from the supplied entries and writer-dedup contributions, in the order
// the entries are given — the caller is responsible for any ordering it
// needs. It returns the full byte sequence, the decoded header, and the
// total number of records (simple entries count as one record each;
// sub-batches count as their NumRecords).
func EncodeChunk(timestamp int64, epoch uint64, firstOffset uint64, entries []Entry, dedup map[string]WriterDedupEntry) ([]byte, Header, uint32, error) {
	var dataLen int
	var numRecords uint32
	for _, e := range entries {
		dataLen += e.encodedLen()
		if e.IsBatch {
			numRecords += uint32(e.NumRecords)
		} else {
			numRecords++
		}
	}

	data := make([]byte, dataLen)
	off := 0
	for _, e := range entries {
		off += e.encode(data[off:])
	}

	trailer := encodeTrailer(dedup)
	buf, h := assembleChunk(ChunkUser, timestamp, epoch, firstOffset, uint16(len(entries)), numRecords, data, trailer)
	return buf, h, numRecords, nil
}

// EncodeZeroWidthChunk builds a TRK_DELTA, TRK_SNAPSHOT, or WRT_SNAPSHOT
// chunk. These carry a body instead of entries/trailer and occupy no
// record offsets of their own (NumRecords is always 0, ChunkFirstOffset
// equals the next record offset that follows them).
func EncodeZeroWidthChunk(typ ChunkType, timestamp int64, epoch uint64, firstOffset uint64, body []byte) ([]byte, Header) {
	return assembleChunk(typ, timestamp, epoch, firstOffset, 0, 0, body, nil)
}

func assembleChunk(typ ChunkType, timestamp int64, epoch uint64, firstOffset uint64, numEntries uint16, numRecords uint32, data, trailer []byte) ([]byte, Header) {
	h := Header{
		ChunkType:        typ,
		NumEntries:       numEntries,
		NumRecords:       numRecords,
		Timestamp:        timestamp,
		Epoch:            epoch,
		ChunkFirstOffset: firstOffset,
		CRC32:            crc(data),
		DataLen:          uint32(len(data)),
		TrailerLen:       uint32(len(trailer)),
	}

	buf := make([]byte, HeaderSize+len(data)+len(trailer))
	EncodeHeader(buf, h)
	copy(buf[HeaderSize:], data)
	copy(buf[HeaderSize+len(data):], trailer)
	return buf, h
}

// VerifyCRC recomputes the CRC over data and compares it to the header's
// recorded value. A mismatch is crc_validation_failure — unrecoverable.
func VerifyCRC(h Header, data []byte) error {
	if crc(data) != h.CRC32 {
		return fmt.Errorf("chunk %d: %w", h.ChunkFirstOffset, ErrCRCValidationFailure)
	}
	return nil
}
