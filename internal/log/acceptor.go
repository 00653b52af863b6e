package log

import (
	"errors"
	"fmt"
	"os"
	"sort"
)

// AcceptChunk appends a pre-formed chunk exactly as received from a
// leader. It does not parse the USER
// trailer for dedup purposes — writer-dedup state arrives instead via
// WRT_SNAPSHOT chunks the leader interleaves at rollover — but it does
// apply TRK_DELTA/TRK_SNAPSHOT/WRT_SNAPSHOT chunks to keep local state in
// sync for when this acceptor is later promoted to writer.
func (l *Log) AcceptChunk(raw []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.role != RoleAcceptor {
		return errors.New("accept chunk: log was opened in writer role")
	}
	if len(raw) < HeaderSize {
		return fmt.Errorf("accept chunk: %w", ErrBadChunkHeader)
	}
	h, err := DecodeHeader(raw[:HeaderSize])
	if err != nil {
		return err
	}
	if h.ChunkFirstOffset != l.nextOffset {
		return fmt.Errorf("accept chunk: got chunk_id %d, want %d: %w", h.ChunkFirstOffset, l.nextOffset, ErrAcceptChunkOutOfOrder)
	}
	data := raw[HeaderSize : HeaderSize+h.DataLen]
	if err := VerifyCRC(h, data); err != nil {
		return err
	}

	if l.needsNewSegment {
		if err := l.rollover(); err != nil {
			return err
		}
	}
	if err := l.active.AppendChunk(h, raw); err != nil {
		return err
	}

	switch h.ChunkType {
	case ChunkTrackingDelta:
		delta, err := decodeTrackingBody(data)
		if err != nil {
			return err
		}
		for k, v := range delta {
			l.tracking[k] = v
		}
	case ChunkTrackingSnapshot:
		snap, err := decodeTrackingBody(data)
		if err != nil {
			return err
		}
		l.tracking = snap
	case ChunkWriterSnapshot:
		ws, err := decodeWriterSnapshotBody(data, h.ChunkFirstOffset)
		if err != nil {
			return err
		}
		l.writers = ws
	}

	if h.NumRecords > 0 {
		l.nextOffset += uint64(h.NumRecords)
	}
	l.currentEpoch = h.Epoch
	l.tail = TailInfo{NextOffset: l.nextOffset, HasPrevEpoch: true, PrevEpoch: h.Epoch, PrevChunkID: h.ChunkFirstOffset}

	return l.maybeCloseForRollover()
}

// TruncateToEpochOffsets implements the acceptor side of epoch-divergence
// reconciliation: given the leader's descending list of
// (epoch, last_chunk_id) pairs, find the newest one this acceptor's log
// agrees with, discard everything after it, and delete any segment whose
// first offset lies entirely beyond the truncation point. If nothing
// matches (the acceptor diverged before any epoch the leader still
// remembers), the whole log is discarded.
func TruncateToEpochOffsets(dir string, leaderPairs []EpochOffset) error {
	segs, err := Overview(dir)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return nil
	}

	sorted := append([]EpochOffset(nil), leaderPairs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Epoch > sorted[j].Epoch })

	for _, p := range sorted {
		seg, keep, found, err := findChunkExact(segs, p)
		if err != nil {
			return err
		}
		if found {
			return truncateSegmentsAt(dir, segs, seg, keep)
		}
	}

	for _, s := range segs {
		if err := removeSegmentFiles(dir, s.FirstOffset); err != nil {
			return err
		}
	}
	return nil
}

func findChunkExact(segs []SegInfo, p EpochOffset) (SegInfo, uint64, bool, error) {
	for _, seg := range segs {
		if seg.First == nil || seg.Last == nil {
			continue
		}
		if p.LastChunkID < seg.First.ChunkID || p.LastChunkID >= seg.Last.endOffset() {
			continue
		}
		idx, err := reopenIndexReadOnly(seg.IdxPath)
		if err != nil {
			return SegInfo{}, 0, false, err
		}
		count := idx.Count()
		for n := uint64(0); n < count; n++ {
			rec, err := idx.ReadAt(n)
			if err != nil {
				idx.Close()
				return SegInfo{}, 0, false, err
			}
			if rec.ChunkID == p.LastChunkID && rec.Epoch == p.Epoch {
				idx.Close()
				return seg, n + 1, true, nil
			}
		}
		idx.Close()
	}
	return SegInfo{}, 0, false, nil
}

// truncateSegmentsAt cuts target's segment and index files immediately
// after the chunk ending at index record keep-1, then removes every
// later segment in full.
func truncateSegmentsAt(dir string, segs []SegInfo, target SegInfo, keep uint64) error {
	idxFile, err := os.OpenFile(target.IdxPath, os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	idx, err := newIndex(idxFile, 0)
	if err != nil {
		idxFile.Close()
		return err
	}

	rec, err := idx.ReadAt(keep - 1)
	if err != nil {
		idx.Close()
		return err
	}

	segFile, err := os.OpenFile(target.SegPath, os.O_RDWR, 0644)
	if err != nil {
		idx.Close()
		return err
	}
	st, err := newStore(segFile)
	if err != nil {
		idx.Close()
		segFile.Close()
		return err
	}

	hdrBuf := make([]byte, HeaderSize)
	if _, err := st.ReadAt(hdrBuf, int64(rec.FilePos)); err != nil {
		idx.Close()
		st.Close()
		return err
	}
	cutoffHeader, err := DecodeHeader(hdrBuf)
	if err != nil {
		idx.Close()
		st.Close()
		return err
	}
	cutoffPos := int64(rec.FilePos) + HeaderSize + int64(cutoffHeader.DataLen) + int64(cutoffHeader.TrailerLen)

	if err := idx.Truncate(keep); err != nil {
		idx.Close()
		st.Close()
		return err
	}
	if err := idx.Close(); err != nil {
		st.Close()
		return err
	}
	if err := st.file.Truncate(cutoffPos); err != nil {
		st.Close()
		return err
	}
	if err := st.Close(); err != nil {
		return err
	}

	for _, s := range segs {
		if s.FirstOffset > target.FirstOffset {
			if err := removeSegmentFiles(dir, s.FirstOffset); err != nil {
				return err
			}
		}
	}
	return nil
}

func removeSegmentFiles(dir string, firstOffset uint64) error {
	if err := os.Remove(segmentFileName(dir, firstOffset)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(indexFileName(dir, firstOffset)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
