package log

import "fmt"

// rawChunk is one physical chunk as read off disk, with enough context
// (its segment's path and on-disk span) for a DataReader to hand it to
// send_file without re-parsing.
type rawChunk struct {
	Header  Header
	Data    []byte
	Trailer []byte
	SegPath string
	FilePos int64
	Len     int64
}

// reader is the position-tracking cursor shared by OffsetReader and
// DataReader. Unlike the writer/acceptor's logical-offset bookkeeping, a
// reader walks chunks in strict physical order — including the
// zero-width TRK_SNAPSHOT/WRT_SNAPSHOT chunks a DataReader must forward
// verbatim to a replica — and re-resolves against a fresh Overview on
// every call so it survives retention deleting segments behind it.
type reader struct {
	dir       string
	committed func() uint64

	segFirst uint64 // first_offset of the segment the cursor is in
	recNum   uint64 // next index record number to read in that segment
	atStart  uint64 // logical offset the caller asked to start at
	served   bool   // whether the first chunk has been served yet
}

// newReader resolves start to a segment and record position. start may
// fall anywhere within a chunk's record span, not just on a chunk
// boundary; the first chunk returned may therefore contain records
// before start, which OffsetReader filters out.
func newReader(dir string, start uint64, committed func() uint64) (*reader, error) {
	segs, err := Overview(dir)
	if err != nil {
		return nil, err
	}
	res := FindSegmentForOffset(start, segs)
	if res.NotFound {
		return nil, fmt.Errorf("reader: offset %d: %w", start, ErrOffsetOutOfRange)
	}
	r := &reader{dir: dir, committed: committed, atStart: start}

	if res.EndOfLog {
		if len(segs) == 0 {
			r.segFirst, r.recNum = 0, 0
			return r, nil
		}
		last := segs[len(segs)-1]
		count, err := indexRecordCount(last.IdxPath)
		if err != nil {
			return nil, err
		}
		r.segFirst, r.recNum = last.FirstOffset, count
		return r, nil
	}

	n, err := findRecordForOffset(res.Seg, start)
	if err != nil {
		return nil, err
	}
	r.segFirst, r.recNum = res.Seg.FirstOffset, n
	return r, nil
}

func indexRecordCount(idxPath string) (uint64, error) {
	idx, err := reopenIndexReadOnly(idxPath)
	if err != nil {
		return 0, err
	}
	defer idx.Close()
	return idx.Count(), nil
}

// findRecordForOffset returns the index record number in seg whose chunk
// spans target (seg must actually contain target per FindSegmentForOffset).
func findRecordForOffset(seg SegInfo, target uint64) (uint64, error) {
	idx, err := reopenIndexReadOnly(seg.IdxPath)
	if err != nil {
		return 0, err
	}
	defer idx.Close()

	count := idx.Count()
	for n := uint64(0); n < count; n++ {
		cur, err := idx.ReadAt(n)
		if err != nil {
			return 0, err
		}
		var end uint64
		if n+1 < count {
			next, err := idx.ReadAt(n + 1)
			if err != nil {
				return 0, err
			}
			end = next.ChunkID
			if end == cur.ChunkID {
				continue // zero-width chunk tied with its successor
			}
		} else {
			end = seg.Last.endOffset()
		}
		if target >= cur.ChunkID && target < end {
			return n, nil
		}
	}
	return 0, ErrSegmentNotFound
}

// nextChunk returns the next physical chunk in file order. It returns
// ErrEndOfStream once the cursor reaches a chunk whose first offset is at
// or beyond the committed ceiling (or the true end of the log, if no
// ceiling function was supplied), and ErrMissingFile if the segment the
// cursor was in has been removed by retention faster than the reader
// could advance past it.
func (r *reader) nextChunk() (rawChunk, error) {
	segs, err := Overview(r.dir)
	if err != nil {
		return rawChunk{}, err
	}

	var cur *SegInfo
	for i := range segs {
		if segs[i].FirstOffset == r.segFirst {
			cur = &segs[i]
			break
		}
	}
	if cur == nil {
		return rawChunk{}, fmt.Errorf("reader: segment %d no longer present: %w", r.segFirst, ErrMissingFile)
	}

	seg, err := openSegmentReadOnly(r.dir, cur.FirstOffset)
	if err != nil {
		return rawChunk{}, err
	}
	defer seg.Close()

	for {
		if r.recNum >= seg.index.Count() {
			idx := indexOf(segs, cur.FirstOffset)
			if idx < 0 || idx+1 >= len(segs) {
				return rawChunk{}, ErrEndOfStream
			}
			next := segs[idx+1]
			r.segFirst, r.recNum = next.FirstOffset, 0
			seg.Close()
			seg, err = openSegmentReadOnly(r.dir, next.FirstOffset)
			if err != nil {
				return rawChunk{}, err
			}
			cur = &next
			continue
		}
		break
	}

	rec, err := seg.index.ReadAt(r.recNum)
	if err != nil {
		return rawChunk{}, err
	}
	if r.committed != nil && rec.ChunkID >= r.committed() {
		return rawChunk{}, ErrEndOfStream
	}

	h, data, trailer, err := seg.ReadChunkAt(int64(rec.FilePos))
	if err != nil {
		return rawChunk{}, err
	}
	r.recNum++

	return rawChunk{
		Header:  h,
		Data:    data,
		Trailer: trailer,
		SegPath: cur.SegPath,
		FilePos: int64(rec.FilePos),
		Len:     HeaderSize + int64(h.DataLen) + int64(h.TrailerLen),
	}, nil
}

func indexOf(segs []SegInfo, firstOffset uint64) int {
	for i, s := range segs {
		if s.FirstOffset == firstOffset {
			return i
		}
	}
	return -1
}
