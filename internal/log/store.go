package log

import (
	"bufio"
	"os"
	"sync"
)

// store wraps a .segment file. Chunks are already self-framing (the
// 56-byte header carries DataLen/TrailerLen), so store does no additional
// length-prefixing of its own — it just appends bytes and tracks the
// current write position.
type store struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	size int64
}

const segmentFileHeaderMagic = "OSIL"
const segmentFileHeaderVersion uint32 = 1
const fileHeaderSize = 8

func newStore(f *os.File) (*store, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	s := &store{
		file: f,
		buf:  bufio.NewWriter(f),
		size: fi.Size(),
	}
	if s.size == 0 {
		if err := s.writeFileHeader(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// writeFileHeader writes the header through the same sequential bufio path
// as chunk data so the file offset bookkeeping never diverges from what's
// actually on disk: a pwrite here would not advance the fd's position,
// leaving the next buffered chunk write to land back at offset 0.
func (s *store) writeFileHeader() error {
	hdr := make([]byte, fileHeaderSize)
	copy(hdr, segmentFileHeaderMagic)
	beUint32(hdr[4:8], segmentFileHeaderVersion)
	n, err := s.buf.Write(hdr)
	if err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.size = int64(n)
	return nil
}

// Append writes p at the current end of the file and returns the position
// at which it begins. It flushes before returning so a reader opening the
// segment on a fresh fd (DataReader, OffsetReader, a replica's own store)
// observes the chunk immediately rather than only on Close.
func (s *store) Append(p []byte) (pos int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos = s.size
	n, err := s.buf.Write(p)
	if err != nil {
		return 0, err
	}
	s.size += int64(n)
	if err := s.buf.Flush(); err != nil {
		return 0, err
	}
	return pos, nil
}

// ReadAt reads len(p) bytes starting at pos, flushing any buffered writes
// first so reads observe everything appended so far.
func (s *store) ReadAt(p []byte, pos int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.buf.Flush(); err != nil {
		return 0, err
	}
	return s.file.ReadAt(p, pos)
}

func (s *store) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.file.Close()
}

func (s *store) Name() string {
	return s.file.Name()
}

func beUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
