package log

import (
	"encoding/binary"
	"fmt"
)

// WriterDedupEntry is the per-writer idempotency record carried in a USER
// chunk's trailer and in WRT_SNAPSHOT chunks.
type WriterDedupEntry struct {
	ChunkID   uint64
	Timestamp uint64
	Sequence  uint64
}

// encodeTrailer concatenates per-writer dedup records:
// WriterIdLen(u8) | WriterId | Timestamp(u64 ms) | Sequence(u64).
// Trailers only carry Timestamp/Sequence — the ChunkID is implicit (the
// chunk being written).
func encodeTrailer(dedup map[string]WriterDedupEntry) []byte {
	if len(dedup) == 0 {
		return nil
	}
	size := 0
	for id := range dedup {
		size += 1 + len(id) + 8 + 8
	}
	buf := make([]byte, size)
	off := 0
	for id, e := range dedup {
		if len(id) > 255 {
			continue
		}
		buf[off] = byte(len(id))
		off++
		off += copy(buf[off:], id)
		binary.BigEndian.PutUint64(buf[off:off+8], e.Timestamp)
		off += 8
		binary.BigEndian.PutUint64(buf[off:off+8], e.Sequence)
		off += 8
	}
	return buf[:off]
}

// decodeTrailer parses a USER chunk's trailer back into writer id ->
// (timestamp, sequence) pairs. chunkID is stamped onto each resulting
// WriterDedupEntry.ChunkID since it is not itself present in the bytes.
func decodeTrailer(buf []byte, chunkID uint64) (map[string]WriterDedupEntry, error) {
	out := map[string]WriterDedupEntry{}
	off := 0
	for off < len(buf) {
		if off+1 > len(buf) {
			return nil, fmt.Errorf("trailer: truncated id length")
		}
		idLen := int(buf[off])
		off++
		if off+idLen+16 > len(buf) {
			return nil, fmt.Errorf("trailer: truncated record")
		}
		id := string(buf[off : off+idLen])
		off += idLen
		ts := binary.BigEndian.Uint64(buf[off : off+8])
		off += 8
		seq := binary.BigEndian.Uint64(buf[off : off+8])
		off += 8
		out[id] = WriterDedupEntry{ChunkID: chunkID, Timestamp: ts, Sequence: seq}
	}
	return out, nil
}

// encodeTrackingBody concatenates IdLen(u8) | Id | Offset(u64) records,
// used for both TRK_DELTA and TRK_SNAPSHOT chunk bodies.
func encodeTrackingBody(tracking map[string]uint64) []byte {
	size := 0
	for id := range tracking {
		size += 1 + len(id) + 8
	}
	buf := make([]byte, size)
	off := 0
	for id, val := range tracking {
		if len(id) > 255 {
			continue
		}
		buf[off] = byte(len(id))
		off++
		off += copy(buf[off:], id)
		binary.BigEndian.PutUint64(buf[off:off+8], val)
		off += 8
	}
	return buf[:off]
}

func decodeTrackingBody(buf []byte) (map[string]uint64, error) {
	out := map[string]uint64{}
	off := 0
	for off < len(buf) {
		if off+1 > len(buf) {
			return nil, fmt.Errorf("tracking body: truncated id length")
		}
		idLen := int(buf[off])
		off++
		if off+idLen+8 > len(buf) {
			return nil, fmt.Errorf("tracking body: truncated record")
		}
		id := string(buf[off : off+idLen])
		off += idLen
		out[id] = binary.BigEndian.Uint64(buf[off : off+8])
		off += 8
	}
	return out, nil
}

// encodeWriterSnapshotBody concatenates IdLen(u8) | Id | Timestamp(u64) |
// Sequence(u64) records for a WRT_SNAPSHOT chunk body.
func encodeWriterSnapshotBody(writers map[string]WriterDedupEntry) []byte {
	size := 0
	for id := range writers {
		size += 1 + len(id) + 16
	}
	buf := make([]byte, size)
	off := 0
	for id, e := range writers {
		if len(id) > 255 {
			continue
		}
		buf[off] = byte(len(id))
		off++
		off += copy(buf[off:], id)
		binary.BigEndian.PutUint64(buf[off:off+8], e.Timestamp)
		off += 8
		binary.BigEndian.PutUint64(buf[off:off+8], e.Sequence)
		off += 8
	}
	return buf[:off]
}

func decodeWriterSnapshotBody(buf []byte, chunkID uint64) (map[string]WriterDedupEntry, error) {
	out := map[string]WriterDedupEntry{}
	off := 0
	for off < len(buf) {
		if off+1 > len(buf) {
			return nil, fmt.Errorf("writer snapshot body: truncated id length")
		}
		idLen := int(buf[off])
		off++
		if off+idLen+16 > len(buf) {
			return nil, fmt.Errorf("writer snapshot body: truncated record")
		}
		id := string(buf[off : off+idLen])
		off += idLen
		ts := binary.BigEndian.Uint64(buf[off : off+8])
		off += 8
		seq := binary.BigEndian.Uint64(buf[off : off+8])
		off += 8
		out[id] = WriterDedupEntry{ChunkID: chunkID, Timestamp: ts, Sequence: seq}
	}
	return out, nil
}
