package log

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSegmentAppendAndReadChunk(t *testing.T) {
	dir := t.TempDir()

	seg, err := openSegment(dir, 0, 0)
	require.NoError(t, err)
	defer seg.Close()

	buf, h, _, err := EncodeChunk(1000, 1, 0, []Entry{NewRecordEntry([]byte("hi"))}, nil)
	require.NoError(t, err)

	require.NoError(t, seg.AppendChunk(h, buf))
	require.Equal(t, uint64(1), seg.index.Count())

	rec, ok := seg.index.Last()
	require.True(t, ok)
	require.Equal(t, uint64(0), rec.ChunkID)

	gotHeader, data, _, err := seg.ReadChunkAt(int64(rec.FilePos))
	require.NoError(t, err)
	require.Equal(t, h, gotHeader)

	records, err := ParseUserEntries(data, gotHeader.NumEntries, gotHeader.ChunkFirstOffset)
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), records[0].Value)
}

func TestSegmentReopenRecoversIndex(t *testing.T) {
	dir := t.TempDir()

	seg, err := openSegment(dir, 0, 0)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		buf, h, _, err := EncodeChunk(1000, 1, uint64(i), []Entry{NewRecordEntry([]byte("x"))}, nil)
		require.NoError(t, err)
		require.NoError(t, seg.AppendChunk(h, buf))
	}
	require.NoError(t, seg.Close())

	reopened, err := openSegment(dir, 0, 0)
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, uint64(3), reopened.index.Count())
}

func TestOpenSegmentReadOnlyMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := openSegmentReadOnly(dir, 0)
	require.ErrorIs(t, err, ErrMissingFile)
}

func TestSegmentRemove(t *testing.T) {
	dir := t.TempDir()
	seg, err := openSegment(dir, 0, 0)
	require.NoError(t, err)
	require.NoError(t, seg.Remove())

	_, err = openSegmentReadOnly(dir, 0)
	require.ErrorIs(t, err, ErrMissingFile)
}
