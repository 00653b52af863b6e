package log

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// CompType identifies the sub-batch compression codec. It occupies 3 bits
// of the sub-batch entry discriminator byte.
type CompType uint8

const (
	CompNone CompType = 0
	CompZstd CompType = 1
	CompGzip CompType = 2
)

const (
	entrySimpleFlag = 0x00
	entryBatchFlag  = 0x80
	entrySizeMask   = 0x7fffffff
)

// Entry is either a simple record or an opaque, optionally-compressed
// sub-batch.
type Entry struct {
	IsBatch    bool
	CompType   CompType
	NumRecords uint16 // only meaningful when IsBatch
	Data       []byte
}

// NewRecordEntry wraps a single application record as a simple entry.
func NewRecordEntry(record []byte) Entry {
	return Entry{IsBatch: false, Data: record}
}

// NewSubBatchEntry wraps a pre-encoded, opaque group of records.
func NewSubBatchEntry(numRecords uint16, comp CompType, data []byte) Entry {
	return Entry{IsBatch: true, CompType: comp, NumRecords: numRecords, Data: data}
}

func (e Entry) encodedLen() int {
	if e.IsBatch {
		return 1 + 2 + 4 + len(e.Data)
	}
	return 4 + len(e.Data)
}

func (e Entry) encode(buf []byte) int {
	if e.IsBatch {
		buf[0] = entryBatchFlag | (byte(e.CompType&0x07) << 4)
		binary.BigEndian.PutUint16(buf[1:3], e.NumRecords)
		binary.BigEndian.PutUint32(buf[3:7], uint32(len(e.Data)))
		copy(buf[7:], e.Data)
		return 7 + len(e.Data)
	}
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(e.Data))&entrySizeMask)
	copy(buf[4:], e.Data)
	return 4 + len(e.Data)
}

// decodeEntries splits a chunk's entry-region bytes back into individual
// entries, using the high-bit discriminator byte.
func decodeEntries(data []byte, numEntries uint16) ([]Entry, error) {
	entries := make([]Entry, 0, numEntries)
	off := 0
	for i := uint16(0); i < numEntries; i++ {
		if off >= len(data) {
			return nil, fmt.Errorf("entry %d: truncated entry region", i)
		}
		if data[off]&0x80 == 0 {
			if off+4 > len(data) {
				return nil, fmt.Errorf("entry %d: truncated simple header", i)
			}
			size := int(binary.BigEndian.Uint32(data[off:off+4]) & entrySizeMask)
			off += 4
			if off+size > len(data) {
				return nil, fmt.Errorf("entry %d: truncated simple payload", i)
			}
			entries = append(entries, Entry{IsBatch: false, Data: data[off : off+size]})
			off += size
		} else {
			if off+7 > len(data) {
				return nil, fmt.Errorf("entry %d: truncated sub-batch header", i)
			}
			comp := CompType((data[off] >> 4) & 0x07)
			numRecords := binary.BigEndian.Uint16(data[off+1 : off+3])
			size := int(binary.BigEndian.Uint32(data[off+3 : off+7]))
			off += 7
			if off+size > len(data) {
				return nil, fmt.Errorf("entry %d: truncated sub-batch payload", i)
			}
			entries = append(entries, Entry{IsBatch: true, CompType: comp, NumRecords: numRecords, Data: data[off : off+size]})
			off += size
		}
	}
	return entries, nil
}

// ParsedRecord is a single record recovered from a USER chunk's entries,
// with its absolute offset.
type ParsedRecord struct {
	Offset uint64
	Value  []byte
}

// ParseUserEntries expands a USER chunk's entries into individual records,
// assigning consecutive offsets starting at firstOffset. Sub-batches are
// decompressed according to their CompType: the reader always gets plain
// records, never raw compressed bytes.
func ParseUserEntries(data []byte, numEntries uint16, firstOffset uint64) ([]ParsedRecord, error) {
	entries, err := decodeEntries(data, numEntries)
	if err != nil {
		return nil, err
	}
	var out []ParsedRecord
	next := firstOffset
	for _, e := range entries {
		if !e.IsBatch {
			out = append(out, ParsedRecord{Offset: next, Value: e.Data})
			next++
			continue
		}
		records, err := splitSubBatch(e)
		if err != nil {
			return nil, fmt.Errorf("sub-batch at offset %d: %w", next, err)
		}
		for _, r := range records {
			out = append(out, ParsedRecord{Offset: next, Value: r})
			next++
		}
	}
	return out, nil
}

// splitSubBatch decompresses (if needed) and splits a sub-batch's opaque
// bytes into its NumRecords individual records. The on-wire framing within
// a sub-batch is itself a sequence of u32-length-prefixed records, matching
// the simple-entry convention so producers can build sub-batches with the
// same primitive.
func splitSubBatch(e Entry) ([][]byte, error) {
	raw := e.Data
	var err error
	switch e.CompType {
	case CompNone:
	case CompZstd:
		raw, err = decompressZstd(raw)
	case CompGzip:
		raw, err = decompressGzip(raw)
	default:
		return nil, fmt.Errorf("unknown sub-batch compression type %d", e.CompType)
	}
	if err != nil {
		return nil, err
	}

	records := make([][]byte, 0, e.NumRecords)
	off := 0
	for i := uint16(0); i < e.NumRecords; i++ {
		if off+4 > len(raw) {
			return nil, fmt.Errorf("sub-batch record %d: truncated", i)
		}
		size := int(binary.BigEndian.Uint32(raw[off : off+4]))
		off += 4
		if off+size > len(raw) {
			return nil, fmt.Errorf("sub-batch record %d: truncated payload", i)
		}
		records = append(records, raw[off:off+size])
		off += size
	}
	return records, nil
}

var zstdDecoder *zstd.Decoder

func init() {
	d, err := zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
	zstdDecoder = d
}

func decompressZstd(data []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(data, nil)
}

func decompressGzip(data []byte) ([]byte, error) {
	r, err := newGzipReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
