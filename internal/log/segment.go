package log

import (
	"fmt"
	"os"
	"path/filepath"
)

// segmentFileName and indexFileName follow the fixed naming convention:
// printf("%020d.segment", first_offset) and "%020d.index".
func segmentFileName(dir string, firstOffset uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%020d.segment", firstOffset))
}

func indexFileName(dir string, firstOffset uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%020d.index", firstOffset))
}

// segment pairs a .segment file with its .index file and is owned by a
// single writer or acceptor. It is mutated only up to rollover; after
// that it is read-only except for retention deletion.
type segment struct {
	dir         string
	firstOffset uint64
	store       *store
	index       *index
}

func openSegment(dir string, firstOffset uint64, indexInitialCap uint64) (*segment, error) {
	segFile, err := os.OpenFile(segmentFileName(dir, firstOffset), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	st, err := newStore(segFile)
	if err != nil {
		segFile.Close()
		return nil, err
	}

	idxFile, err := os.OpenFile(indexFileName(dir, firstOffset), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		st.Close()
		return nil, err
	}
	idx, err := newIndex(idxFile, indexInitialCap)
	if err != nil {
		st.Close()
		idxFile.Close()
		return nil, err
	}

	return &segment{dir: dir, firstOffset: firstOffset, store: st, index: idx}, nil
}

// openSegmentReadOnly opens an existing segment pair for reading. Callers
// must tolerate ErrMissingFile, returned when either file does not exist
// because retention deleted it concurrently.
func openSegmentReadOnly(dir string, firstOffset uint64) (*segment, error) {
	segFile, err := os.Open(segmentFileName(dir, firstOffset))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", err, ErrMissingFile)
		}
		return nil, err
	}
	st, err := newStore(segFile)
	if err != nil {
		segFile.Close()
		return nil, err
	}

	idxFile, err := os.OpenFile(indexFileName(dir, firstOffset), os.O_RDONLY, 0644)
	if err != nil {
		st.Close()
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", err, ErrMissingFile)
		}
		return nil, err
	}
	idx, err := newIndexReadOnly(idxFile)
	if err != nil {
		st.Close()
		idxFile.Close()
		return nil, err
	}

	return &segment{dir: dir, firstOffset: firstOffset, store: st, index: idx}, nil
}

// AppendChunk writes a complete, already-encoded chunk (as produced by
// EncodeChunk) to the segment and records its index entry.
func (s *segment) AppendChunk(h Header, chunkBytes []byte) error {
	pos, err := s.store.Append(chunkBytes)
	if err != nil {
		return err
	}
	return s.index.Write(indexRecord{
		ChunkID:   h.ChunkFirstOffset,
		Timestamp: h.Timestamp,
		Epoch:     h.Epoch,
		FilePos:   uint32(pos),
	})
}

// ReadHeaderAt reads and decodes exactly HeaderSize bytes at pos.
func (s *segment) ReadHeaderAt(pos int64) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := s.store.ReadAt(buf, pos); err != nil {
		return Header{}, err
	}
	return DecodeHeader(buf)
}

// ReadChunkAt reads a complete chunk (header + data + trailer) at pos.
func (s *segment) ReadChunkAt(pos int64) (Header, []byte, []byte, error) {
	h, err := s.ReadHeaderAt(pos)
	if err != nil {
		return Header{}, nil, nil, err
	}
	data := make([]byte, h.DataLen)
	if h.DataLen > 0 {
		if _, err := s.store.ReadAt(data, pos+HeaderSize); err != nil {
			return Header{}, nil, nil, err
		}
	}
	var trailer []byte
	if h.TrailerLen > 0 {
		trailer = make([]byte, h.TrailerLen)
		if _, err := s.store.ReadAt(trailer, pos+HeaderSize+int64(h.DataLen)); err != nil {
			return Header{}, nil, nil, err
		}
	}
	return h, data, trailer, nil
}

func (s *segment) Size() int64 {
	return s.store.Size()
}

func (s *segment) Close() error {
	if err := s.store.Close(); err != nil {
		return err
	}
	return s.index.Close()
}

// Remove closes and deletes both files composing the segment.
func (s *segment) Remove() error {
	segPath := s.store.Name()
	idxPath := s.index.Name()
	_ = s.Close()
	if err := os.Remove(segPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(idxPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
