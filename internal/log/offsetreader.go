package log

// OffsetReader surfaces individual application records starting at a
// given offset, transparently skipping TRK_DELTA/TRK_SNAPSHOT/
// WRT_SNAPSHOT chunks and expanding sub-batches.
type OffsetReader struct {
	r       *reader
	pending []ParsedRecord
	start   uint64
	served  bool
}

// NewOffsetReader opens a reader positioned at start. committed, if
// non-nil, caps how far the reader may advance — pass nil to read up to
// whatever is physically on disk (acceptor/standalone use), or the
// log's committed-offset accessor to gate a consumer on replicated data
// only.
func NewOffsetReader(dir string, start uint64, committed func() uint64) (*OffsetReader, error) {
	r, err := newReader(dir, start, committed)
	if err != nil {
		return nil, err
	}
	return &OffsetReader{r: r, start: start}, nil
}

// Next returns the next record at or after the reader's current offset.
// It returns ErrEndOfStream when there is nothing further committed to
// read; callers are expected to retry after a data-availability wait.
func (o *OffsetReader) Next() (ParsedRecord, error) {
	for len(o.pending) == 0 {
		chunk, err := o.r.nextChunk()
		if err != nil {
			return ParsedRecord{}, err
		}
		if chunk.Header.ChunkType != ChunkUser {
			continue
		}
		records, err := ParseUserEntries(chunk.Data, chunk.Header.NumEntries, chunk.Header.ChunkFirstOffset)
		if err != nil {
			return ParsedRecord{}, err
		}
		if !o.served {
			o.served = true
			filtered := records[:0]
			for _, rec := range records {
				if rec.Offset >= o.start {
					filtered = append(filtered, rec)
				}
			}
			records = filtered
		}
		o.pending = records
	}

	rec := o.pending[0]
	o.pending = o.pending[1:]
	return rec, nil
}
