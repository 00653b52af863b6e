package log

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestLog(t *testing.T, dir string, role Role, cfg Config) *Log {
	t.Helper()
	cfg.Dir = dir
	if cfg.Name == "" {
		cfg.Name = "test"
	}
	l, err := Open(cfg, role, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestWriteAssignsSequentialOffsets(t *testing.T) {
	l := openTestLog(t, t.TempDir(), RoleWriter, Config{Epoch: 1})

	off1, deduped, err := l.Write(WriteRequest{Entries: []Entry{NewRecordEntry([]byte("a")), NewRecordEntry([]byte("b"))}})
	require.NoError(t, err)
	require.False(t, deduped)
	require.Equal(t, uint64(0), off1)

	off2, _, err := l.Write(WriteRequest{Entries: []Entry{NewRecordEntry([]byte("c"))}})
	require.NoError(t, err)
	require.Equal(t, uint64(2), off2)
	require.Equal(t, uint64(3), l.NextOffset())
}

func TestWriterDeduplication(t *testing.T) {
	l := openTestLog(t, t.TempDir(), RoleWriter, Config{Epoch: 1})

	off, deduped, err := l.Write(WriteRequest{
		Entries: []Entry{NewRecordEntry([]byte("a"))}, WriterID: "w1", Sequence: 1,
	})
	require.NoError(t, err)
	require.False(t, deduped)
	require.Equal(t, uint64(0), off)

	// Resending the same sequence is a no-op and returns the original offset.
	off2, deduped, err := l.Write(WriteRequest{
		Entries: []Entry{NewRecordEntry([]byte("a"))}, WriterID: "w1", Sequence: 1,
	})
	require.NoError(t, err)
	require.True(t, deduped)
	require.Equal(t, off, off2)
	require.Equal(t, uint64(1), l.NextOffset())

	// A higher sequence is accepted normally.
	off3, deduped, err := l.Write(WriteRequest{
		Entries: []Entry{NewRecordEntry([]byte("b"))}, WriterID: "w1", Sequence: 2,
	})
	require.NoError(t, err)
	require.False(t, deduped)
	require.Equal(t, uint64(1), off3)
}

func TestSegmentRollover(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Epoch: 1}
	cfg.Segment.MaxSize = HeaderSize + 16 // force a roll after one small chunk

	l := openTestLog(t, dir, RoleWriter, cfg)

	_, _, err := l.Write(WriteRequest{Entries: []Entry{NewRecordEntry([]byte("abcdefgh"))}})
	require.NoError(t, err)

	// The next write should land in a freshly-opened segment preceded by
	// a TRK_SNAPSHOT then a WRT_SNAPSHOT chunk.
	_, _, err = l.Write(WriteRequest{Entries: []Entry{NewRecordEntry([]byte("i"))}})
	require.NoError(t, err)

	segs, err := Overview(dir)
	require.NoError(t, err)
	require.Len(t, segs, 2)

	newSeg, err := openSegmentReadOnly(dir, segs[1].FirstOffset)
	require.NoError(t, err)
	defer newSeg.Close()

	rec0, err := newSeg.index.ReadAt(0)
	require.NoError(t, err)
	h0, err := newSeg.ReadHeaderAt(int64(rec0.FilePos))
	require.NoError(t, err)
	require.Equal(t, ChunkTrackingSnapshot, h0.ChunkType)

	rec1, err := newSeg.index.ReadAt(1)
	require.NoError(t, err)
	h1, err := newSeg.ReadHeaderAt(int64(rec1.FilePos))
	require.NoError(t, err)
	require.Equal(t, ChunkWriterSnapshot, h1.ChunkType)

	rec2, err := newSeg.index.ReadAt(2)
	require.NoError(t, err)
	h2, err := newSeg.ReadHeaderAt(int64(rec2.FilePos))
	require.NoError(t, err)
	require.Equal(t, ChunkUser, h2.ChunkType)
}

func TestWriteTrackingSkipsEmptyDelta(t *testing.T) {
	l := openTestLog(t, t.TempDir(), RoleWriter, Config{Epoch: 1})
	require.NoError(t, l.WriteTracking(nil, false))
	require.Equal(t, uint64(0), l.NextOffset())
	require.Equal(t, uint64(0), l.active.index.Count())
}

func TestRecoveryRestoresWriterState(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Epoch: 1}

	l := openTestLog(t, dir, RoleWriter, cfg)
	_, _, err := l.Write(WriteRequest{
		Entries: []Entry{NewRecordEntry([]byte("a"))}, WriterID: "w1", Sequence: 5,
	})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	reopened, err := Open(cfg, RoleWriter, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, uint64(1), reopened.NextOffset())
	require.Equal(t, uint64(5), reopened.writers["w1"].Sequence)
}
