package log

import (
	"io"
	"os"
)

// DataReader forwards raw, complete chunks — including the zero-width
// TRK_SNAPSHOT/WRT_SNAPSHOT chunks a writer interleaves at rollover — to
// a replica connection byte-for-byte, using sendfile when the
// destination is a plain file descriptor.
type DataReader struct {
	r *reader
}

// NewDataReader opens a reader positioned at start for replica transport.
// committed gates how far the reader may advance (the leader's local
// committed offset for a local follower catch-up, or nil for an
// unbounded read of everything physically on disk).
func NewDataReader(dir string, start uint64, committed func() uint64) (*DataReader, error) {
	r, err := newReader(dir, start, committed)
	if err != nil {
		return nil, err
	}
	return &DataReader{r: r}, nil
}

// Next returns the next raw chunk's header and a send function that
// writes the complete chunk (header, data and trailer) byte-for-byte to
// w.
func (d *DataReader) Next() (Header, func(w io.Writer) error, error) {
	chunk, err := d.r.nextChunk()
	if err != nil {
		return Header{}, nil, err
	}
	send := func(w io.Writer) error {
		return sendChunk(w, chunk.SegPath, chunk.FilePos, chunk.Len)
	}
	return chunk.Header, send, nil
}

// sendChunk writes exactly n bytes starting at offset from path's
// contents into w. When w exposes a raw file descriptor (a *os.File, or
// anything satisfying the same interface net.TCPConn.File() would give
// you) the platform-specific sendfile path in sendfile_*.go is used;
// otherwise it falls back to a buffered copy.
func sendChunk(w io.Writer, path string, offset, n int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if done, err := trySendfile(w, f, offset, n); done {
		return err
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err = io.CopyN(w, f, n)
	return err
}
