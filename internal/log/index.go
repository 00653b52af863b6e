package log

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/tysonmote/gommap"
)

// indexEntryWidth is the fixed 28-byte index record: ChunkId(u64) |
// Timestamp(i64) | Epoch(u64) | FilePos(u32).
const indexEntryWidth = 8 + 8 + 8 + 4

const indexFileHeaderMagic = "OSII"
const indexFileHeaderVersion uint32 = 1

const defaultIndexInitialCap = 4096 * indexEntryWidth

// indexRecord is one parsed 28-byte index record.
type indexRecord struct {
	ChunkID   uint64
	Timestamp int64
	Epoch     uint64
	FilePos   uint32
}

// index wraps a memory-mapped .index file (gommap-backed, grow-by-
// truncate) with a 28-byte chunk-granularity record.
type index struct {
	file     *os.File
	mMap     gommap.MMap
	size     uint64 // bytes used, past the 8-byte file header
	cap      uint64 // mapped capacity, past the file header
	readOnly bool
}

func newIndex(f *os.File, initialCap uint64) (*index, error) {
	if initialCap == 0 {
		initialCap = defaultIndexInitialCap
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	idx := &index{file: f}
	if fi.Size() == 0 {
		if err := os.Truncate(f.Name(), int64(fileHeaderSize+initialCap)); err != nil {
			return nil, err
		}
		idx.cap = initialCap
		idx.size = 0
		if err := idx.mmap(); err != nil {
			return nil, err
		}
		hdr := make([]byte, fileHeaderSize)
		copy(hdr, indexFileHeaderMagic)
		beUint32(hdr[4:8], indexFileHeaderVersion)
		copy(idx.mMap[0:fileHeaderSize], hdr)
		return idx, nil
	}

	idx.size = uint64(fi.Size()) - fileHeaderSize
	idx.cap = idx.size
	if idx.cap < initialCap {
		idx.cap = initialCap
	}
	if err := os.Truncate(f.Name(), int64(fileHeaderSize+idx.cap)); err != nil {
		return nil, err
	}
	if err := idx.mmap(); err != nil {
		return nil, err
	}
	return idx, nil
}

// newIndexReadOnly opens an existing .index file for read-only mapping. It
// never truncates or grows the file — the segment it belongs to is
// immutable once rolled, and growing it here would race a still-live
// writer's own index file of the same name.
func newIndexReadOnly(f *os.File) (*index, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	idx := &index{file: f, readOnly: true}
	idx.size = uint64(fi.Size()) - fileHeaderSize
	idx.cap = idx.size
	if err := idx.mmapReadOnly(); err != nil {
		return nil, err
	}
	// A live writer's index file is pre-sized past its last record (see
	// newIndex) and the unused tail reads as zeros. Every real record
	// points past the segment's file header, so the first record with a
	// zero FilePos marks the end of what has been written.
	var n uint64
	for (n+1)*indexEntryWidth <= idx.size {
		off := fileHeaderSize + n*indexEntryWidth
		if binary.BigEndian.Uint32(idx.mMap[off+24:off+28]) == 0 {
			break
		}
		n++
	}
	idx.size = n * indexEntryWidth
	return idx, nil
}

func (i *index) mmap() error {
	m, err := gommap.Map(i.file.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		return err
	}
	i.mMap = m
	return nil
}

// mmapReadOnly maps with PROT_READ only, matching the O_RDONLY fd the
// index file was opened with. Mapping PROT_WRITE|MAP_SHARED over an
// O_RDONLY fd fails with EACCES on Linux.
func (i *index) mmapReadOnly() error {
	m, err := gommap.Map(i.file.Fd(), gommap.PROT_READ, gommap.MAP_SHARED)
	if err != nil {
		return err
	}
	i.mMap = m
	return nil
}

// grow doubles the mapped capacity so Write never runs out of room.
func (i *index) grow() error {
	if err := i.mMap.UnsafeUnmap(); err != nil {
		return err
	}
	i.cap *= 2
	if err := os.Truncate(i.file.Name(), int64(fileHeaderSize+i.cap)); err != nil {
		return err
	}
	return i.mmap()
}

// Write appends one index record.
func (i *index) Write(rec indexRecord) error {
	if i.size+indexEntryWidth > i.cap {
		if err := i.grow(); err != nil {
			return err
		}
	}
	pos := fileHeaderSize + i.size
	buf := i.mMap[pos : pos+indexEntryWidth]
	binary.BigEndian.PutUint64(buf[0:8], rec.ChunkID)
	binary.BigEndian.PutUint64(buf[8:16], uint64(rec.Timestamp))
	binary.BigEndian.PutUint64(buf[16:24], rec.Epoch)
	binary.BigEndian.PutUint32(buf[24:28], rec.FilePos)
	i.size += indexEntryWidth
	return nil
}

// Count returns the number of index records written.
func (i *index) Count() uint64 {
	return i.size / indexEntryWidth
}

// ReadAt returns the n-th index record (0-based). io.EOF if n is past the
// last written record.
func (i *index) ReadAt(n uint64) (indexRecord, error) {
	pos := n * indexEntryWidth
	if pos+indexEntryWidth > i.size {
		return indexRecord{}, io.EOF
	}
	off := fileHeaderSize + pos
	buf := i.mMap[off : off+indexEntryWidth]
	return indexRecord{
		ChunkID:   binary.BigEndian.Uint64(buf[0:8]),
		Timestamp: int64(binary.BigEndian.Uint64(buf[8:16])),
		Epoch:     binary.BigEndian.Uint64(buf[16:24]),
		FilePos:   binary.BigEndian.Uint32(buf[24:28]),
	}, nil
}

// Last returns the final record, or ok=false for an empty index.
func (i *index) Last() (indexRecord, bool) {
	if i.size == 0 {
		return indexRecord{}, false
	}
	rec, err := i.ReadAt(i.Count() - 1)
	if err != nil {
		return indexRecord{}, false
	}
	return rec, true
}

// Truncate drops all records with position index >= n.
func (i *index) Truncate(n uint64) error {
	newSize := n * indexEntryWidth
	if newSize > i.size {
		return fmt.Errorf("index truncate: %d exceeds current size %d", newSize, i.size)
	}
	i.size = newSize
	return nil
}

func (i *index) Close() error {
	if i.readOnly {
		if err := i.mMap.UnsafeUnmap(); err != nil {
			return err
		}
		return i.file.Close()
	}
	if err := i.mMap.Sync(gommap.MS_SYNC); err != nil {
		return err
	}
	if err := i.mMap.UnsafeUnmap(); err != nil {
		return err
	}
	if err := i.file.Truncate(int64(fileHeaderSize + i.size)); err != nil {
		return err
	}
	return i.file.Close()
}

func (i *index) Name() string {
	return i.file.Name()
}
