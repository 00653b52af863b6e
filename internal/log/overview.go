package log

import (
	"errors"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ChunkMeta is a chunk's position and identifying fields as recorded in
// the index.
type ChunkMeta struct {
	ChunkID    uint64
	Epoch      uint64
	Timestamp  int64
	NumRecords uint32
	FilePos    int64
}

// endOffset is the offset one past this chunk's last record.
func (c ChunkMeta) endOffset() uint64 {
	return c.ChunkID + uint64(c.NumRecords)
}

// SegInfo describes one segment as reconstructed by Overview.
type SegInfo struct {
	FirstOffset uint64
	SegPath     string
	IdxPath     string
	Size        int64
	First       *ChunkMeta // nil for an empty segment
	Last        *ChunkMeta
}

// Overview scans dir for *.index files in ascending filename order and
// reconstructs segment metadata. It is robust to concurrent deletion: any
// ENOENT mid-scan restarts the whole scan, since retention may delete the
// oldest segment while we're reading.
func Overview(dir string) ([]SegInfo, error) {
	for {
		segs, err := scanOnce(dir)
		if errors.Is(err, ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return segs, nil
	}
}

func scanOnce(dir string) ([]SegInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var firstOffsets []uint64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".index") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".index")
		off, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		firstOffsets = append(firstOffsets, off)
	}
	sort.Slice(firstOffsets, func(i, j int) bool { return firstOffsets[i] < firstOffsets[j] })

	segs := make([]SegInfo, 0, len(firstOffsets))
	for _, off := range firstOffsets {
		info, err := readSegInfo(dir, off)
		if err != nil {
			return nil, err
		}
		segs = append(segs, info)
	}
	return segs, nil
}

func readSegInfo(dir string, firstOffset uint64) (SegInfo, error) {
	seg, err := openSegmentReadOnly(dir, firstOffset)
	if err != nil {
		return SegInfo{}, err
	}
	defer seg.Close()

	info := SegInfo{
		FirstOffset: firstOffset,
		SegPath:     segmentFileName(dir, firstOffset),
		IdxPath:     indexFileName(dir, firstOffset),
		Size:        seg.Size(),
	}

	if seg.index.Count() == 0 {
		return info, nil
	}

	firstHeader, err := seg.ReadHeaderAt(fileHeaderSize)
	if err != nil {
		return SegInfo{}, err
	}
	info.First = &ChunkMeta{
		ChunkID:    firstHeader.ChunkFirstOffset,
		Epoch:      firstHeader.Epoch,
		Timestamp:  firstHeader.Timestamp,
		NumRecords: firstHeader.NumRecords,
		FilePos:    fileHeaderSize,
	}

	lastRec, ok := seg.index.Last()
	if !ok {
		return SegInfo{}, ErrSegmentNotFound
	}
	lastHeader, err := seg.ReadHeaderAt(int64(lastRec.FilePos))
	if err != nil {
		return SegInfo{}, err
	}
	info.Last = &ChunkMeta{
		ChunkID:    lastHeader.ChunkFirstOffset,
		Epoch:      lastHeader.Epoch,
		Timestamp:  lastHeader.Timestamp,
		NumRecords: lastHeader.NumRecords,
		FilePos:    int64(lastRec.FilePos),
	}
	return info, nil
}

// Range returns the log's offset range. ok is false for an empty log.
func Range(segs []SegInfo) (first, last uint64, ok bool) {
	if len(segs) == 0 {
		return 0, 0, false
	}
	firstSeg := segs[0]
	if firstSeg.First == nil {
		return 0, 0, false
	}
	lastSeg := segs[len(segs)-1]
	if lastSeg.Last == nil {
		// Only the first segment can legitimately be non-empty while the
		// tail is empty is not expected, but guard defensively by
		// scanning backward for the last non-empty segment.
		for i := len(segs) - 1; i >= 0; i-- {
			if segs[i].Last != nil {
				return firstSeg.First.ChunkID, segs[i].Last.endOffset() - 1, true
			}
		}
		return 0, 0, false
	}
	return firstSeg.First.ChunkID, lastSeg.Last.endOffset() - 1, true
}

// EpochOffset pairs a leader epoch with the highest chunk-id observed in
// it, as produced by LastOffsetEpochs.
type EpochOffset struct {
	Epoch       uint64
	LastChunkID uint64
}

// LastOffsetEpochs walks every index record across segs, aggregating the
// highest chunk-id seen for each contiguous epoch. Epochs
// must be non-decreasing across the walk; a decrease indicates a bug
// upstream.
func LastOffsetEpochs(segs []SegInfo) ([]EpochOffset, error) {
	var out []EpochOffset
	for _, seg := range segs {
		idx, err := reopenIndexReadOnly(seg.IdxPath)
		if err != nil {
			return nil, err
		}
		count := idx.Count()
		for n := uint64(0); n < count; n++ {
			rec, err := idx.ReadAt(n)
			if err != nil {
				idx.Close()
				return nil, err
			}
			if len(out) == 0 {
				out = append(out, EpochOffset{Epoch: rec.Epoch, LastChunkID: rec.ChunkID})
				continue
			}
			last := &out[len(out)-1]
			if rec.Epoch < last.Epoch {
				idx.Close()
				return nil, errEpochDecreased(last.Epoch, rec.Epoch)
			}
			if rec.Epoch == last.Epoch {
				last.LastChunkID = rec.ChunkID
			} else {
				out = append(out, EpochOffset{Epoch: rec.Epoch, LastChunkID: rec.ChunkID})
			}
		}
		idx.Close()
	}
	return out, nil
}

func errEpochDecreased(prev, got uint64) error {
	return &epochDecreasedError{prev: prev, got: got}
}

type epochDecreasedError struct {
	prev, got uint64
}

func (e *epochDecreasedError) Error() string {
	return "log overview: epoch decreased while walking index records (invariant violation)"
}

func reopenIndexReadOnly(path string) (*index, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMissingFile
		}
		return nil, err
	}
	return newIndexReadOnly(f)
}

// FindResult is the outcome of FindSegmentForOffset.
type FindResult struct {
	Found    bool
	EndOfLog bool // off is exactly the next-write offset
	NotFound bool
	Seg      SegInfo
}

// FindSegmentForOffset locates the segment containing off.
func FindSegmentForOffset(off uint64, segs []SegInfo) FindResult {
	if len(segs) == 0 {
		if off == 0 {
			return FindResult{EndOfLog: true}
		}
		return FindResult{NotFound: true}
	}
	for _, seg := range segs {
		if seg.First == nil {
			continue
		}
		lo := seg.First.ChunkID
		hi := seg.Last.endOffset()
		if off >= lo && off < hi {
			return FindResult{Found: true, Seg: seg}
		}
	}
	last := segs[len(segs)-1]
	nextWrite := uint64(0)
	if last.Last != nil {
		nextWrite = last.Last.endOffset()
	} else if last.First != nil {
		nextWrite = last.First.ChunkID
	}
	if off == nextWrite {
		return FindResult{EndOfLog: true, Seg: last}
	}
	return FindResult{NotFound: true}
}

// ScanIndex reads sequential index records from idxPath and returns the
// (chunk_id, file_pos) of the chunk containing targetOff, or io.EOF if
// targetOff is past the last chunk recorded in that index.
// It reads pairs of index records to detect the span [cur.chunk_id,
// next.chunk_id) without touching the segment file; for the final record
// it cross-checks against the chunk header's NumRecords.
func ScanIndex(idxPath string, seg *segment, targetOff uint64) (chunkID uint64, filePos int64, err error) {
	idx, err := reopenIndexReadOnly(idxPath)
	if err != nil {
		return 0, 0, err
	}
	defer idx.Close()

	count := idx.Count()
	if count == 0 {
		return 0, 0, io.EOF
	}
	for n := uint64(0); n < count; n++ {
		cur, err := idx.ReadAt(n)
		if err != nil {
			return 0, 0, err
		}
		if n+1 < count {
			next, err := idx.ReadAt(n + 1)
			if err != nil {
				return 0, 0, err
			}
			if targetOff >= cur.ChunkID && targetOff < next.ChunkID {
				return cur.ChunkID, int64(cur.FilePos), nil
			}
			continue
		}
		// Last record: cross-check against the segment header.
		h, err := seg.ReadHeaderAt(int64(cur.FilePos))
		if err != nil {
			return 0, 0, err
		}
		if targetOff >= cur.ChunkID && targetOff < cur.ChunkID+uint64(h.NumRecords) {
			return cur.ChunkID, int64(cur.FilePos), nil
		}
	}
	return 0, 0, io.EOF
}

// ChunkIDForTimestamp linear-scans seg's index for the first record whose
// timestamp is >= ts and returns its chunk-id.
func ChunkIDForTimestamp(seg SegInfo, ts int64) (uint64, error) {
	idx, err := reopenIndexReadOnly(seg.IdxPath)
	if err != nil {
		return 0, err
	}
	defer idx.Close()

	count := idx.Count()
	for n := uint64(0); n < count; n++ {
		rec, err := idx.ReadAt(n)
		if err != nil {
			return 0, err
		}
		if rec.Timestamp >= ts {
			return rec.ChunkID, nil
		}
	}
	return 0, io.EOF
}
