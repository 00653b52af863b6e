package log

import "time"

// WriteRequest describes one USER chunk to append. WriterID is optional;
// when set, Sequence is compared against that writer's last recorded
// sequence to deduplicate a resent chunk.
type WriteRequest struct {
	Entries  []Entry
	WriterID string
	Sequence uint64

	// Timestamp is in epoch milliseconds; zero means "now".
	Timestamp int64
}

// Write appends a USER chunk. It returns the chunk's first offset and
// whether the append was skipped because WriterID/Sequence matched (or
// trailed) the writer's last recorded sequence.
func (l *Log) Write(req WriteRequest) (firstOffset uint64, deduped bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.needsNewSegment {
		if err := l.rollover(); err != nil {
			return 0, false, err
		}
	}

	if req.WriterID != "" {
		if prev, ok := l.writers[req.WriterID]; ok && req.Sequence <= prev.Sequence {
			return prev.ChunkID, true, nil
		}
	}

	ts := req.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	firstOffset = l.nextOffset
	dedup := map[string]WriterDedupEntry{}
	if req.WriterID != "" {
		dedup[req.WriterID] = WriterDedupEntry{ChunkID: firstOffset, Timestamp: uint64(ts), Sequence: req.Sequence}
	}

	buf, h, numRecords, err := EncodeChunk(ts, l.currentEpoch, firstOffset, req.Entries, dedup)
	if err != nil {
		return 0, false, err
	}
	if err := l.active.AppendChunk(h, buf); err != nil {
		return 0, false, err
	}

	l.nextOffset += uint64(numRecords)
	l.tail = TailInfo{NextOffset: l.nextOffset, HasPrevEpoch: true, PrevEpoch: l.currentEpoch, PrevChunkID: firstOffset}
	if req.WriterID != "" {
		l.writers[req.WriterID] = dedup[req.WriterID]
		l.evictWriters()
	}

	if err := l.maybeCloseForRollover(); err != nil {
		return firstOffset, false, err
	}
	return firstOffset, false, nil
}

// WriteTracking records consumer offset progress. An empty delta with
// snapshot=false is a no-op.
func (l *Log) WriteTracking(delta map[string]uint64, snapshot bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(delta) == 0 && !snapshot {
		return nil
	}
	if l.needsNewSegment {
		if err := l.rollover(); err != nil {
			return err
		}
	}

	for k, v := range delta {
		l.tracking[k] = v
	}

	typ := ChunkTrackingDelta
	body := encodeTrackingBody(delta)
	if snapshot {
		typ = ChunkTrackingSnapshot
		body = encodeTrackingBody(l.tracking)
	}

	ts := time.Now().UnixMilli()
	buf, h := EncodeZeroWidthChunk(typ, ts, l.currentEpoch, l.nextOffset, body)
	if err := l.active.AppendChunk(h, buf); err != nil {
		return err
	}
	l.tail = TailInfo{NextOffset: l.nextOffset, HasPrevEpoch: true, PrevEpoch: l.currentEpoch, PrevChunkID: l.nextOffset}
	return l.maybeCloseForRollover()
}

func (l *Log) maybeCloseForRollover() error {
	if l.active.Size() < int64(l.cfg.Segment.MaxSize) {
		return nil
	}
	if err := l.active.Close(); err != nil {
		return err
	}
	l.needsNewSegment = true
	return nil
}

// rollover opens the next segment and, for a writer, seeds it with a
// TRK_SNAPSHOT then a WRT_SNAPSHOT chunk before any real data arrives.
// Both are zero-width, so the first USER chunk still lands at the same
// chunk-id.
func (l *Log) rollover() error {
	seg, err := openSegment(l.dir, l.nextOffset, 0)
	if err != nil {
		return err
	}
	l.active = seg
	l.needsNewSegment = false

	for id, off := range l.tracking {
		if off < l.firstOffset {
			delete(l.tracking, id)
		}
	}
	l.evictWriters()

	if l.role != RoleWriter {
		return nil
	}

	ts := time.Now().UnixMilli()
	trackBody := encodeTrackingBody(l.tracking)
	buf, h := EncodeZeroWidthChunk(ChunkTrackingSnapshot, ts, l.currentEpoch, l.nextOffset, trackBody)
	if err := l.active.AppendChunk(h, buf); err != nil {
		return err
	}
	writerBody := encodeWriterSnapshotBody(l.writers)
	buf2, h2 := EncodeZeroWidthChunk(ChunkWriterSnapshot, ts, l.currentEpoch, l.nextOffset, writerBody)
	return l.active.AppendChunk(h2, buf2)
}

// evictWriters bounds the writer-dedup map to cfg.MaxWriters, dropping
// the least-recently-active writer first.
func (l *Log) evictWriters() {
	for len(l.writers) > l.cfg.MaxWriters {
		var oldestID string
		var oldestTS uint64
		first := true
		for id, e := range l.writers {
			if first || e.Timestamp < oldestTS {
				oldestID, oldestTS, first = id, e.Timestamp, false
			}
		}
		delete(l.writers, oldestID)
	}
}
