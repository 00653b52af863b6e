package log

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func writeUserChunk(t *testing.T, seg *segment, epoch, firstOffset uint64, value string) {
	t.Helper()
	buf, h, _, err := EncodeChunk(1000, epoch, firstOffset, []Entry{NewRecordEntry([]byte(value))}, nil)
	require.NoError(t, err)
	require.NoError(t, seg.AppendChunk(h, buf))
}

func TestOverviewEmptyDir(t *testing.T) {
	dir := t.TempDir()
	segs, err := Overview(dir)
	require.NoError(t, err)
	require.Empty(t, segs)

	_, _, ok := Range(segs)
	require.False(t, ok)
}

func TestOverviewSingleSegment(t *testing.T) {
	dir := t.TempDir()
	seg, err := openSegment(dir, 0, 0)
	require.NoError(t, err)
	writeUserChunk(t, seg, 1, 0, "a")
	writeUserChunk(t, seg, 1, 1, "b")
	require.NoError(t, seg.Close())

	segs, err := Overview(dir)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	require.Equal(t, uint64(0), segs[0].First.ChunkID)
	require.Equal(t, uint64(1), segs[0].Last.ChunkID)

	first, last, ok := Range(segs)
	require.True(t, ok)
	require.Equal(t, uint64(0), first)
	require.Equal(t, uint64(1), last)
}

func TestFindSegmentForOffset(t *testing.T) {
	dir := t.TempDir()
	seg, err := openSegment(dir, 0, 0)
	require.NoError(t, err)
	writeUserChunk(t, seg, 1, 0, "a")
	require.NoError(t, seg.Close())

	segs, err := Overview(dir)
	require.NoError(t, err)

	res := FindSegmentForOffset(0, segs)
	require.True(t, res.Found)

	res = FindSegmentForOffset(1, segs)
	require.True(t, res.EndOfLog)

	res = FindSegmentForOffset(5, segs)
	require.True(t, res.NotFound)
}

func TestLastOffsetEpochsAggregatesContiguousRuns(t *testing.T) {
	dir := t.TempDir()
	seg, err := openSegment(dir, 0, 0)
	require.NoError(t, err)
	writeUserChunk(t, seg, 1, 0, "a")
	writeUserChunk(t, seg, 1, 1, "b")
	writeUserChunk(t, seg, 2, 2, "c")
	require.NoError(t, seg.Close())

	segs, err := Overview(dir)
	require.NoError(t, err)

	epochs, err := LastOffsetEpochs(segs)
	require.NoError(t, err)
	require.Equal(t, []EpochOffset{
		{Epoch: 1, LastChunkID: 1},
		{Epoch: 2, LastChunkID: 2},
	}, epochs)
}

func TestScanIndex(t *testing.T) {
	dir := t.TempDir()
	seg, err := openSegment(dir, 0, 0)
	require.NoError(t, err)
	writeUserChunk(t, seg, 1, 0, "a")
	writeUserChunk(t, seg, 1, 1, "b")

	chunkID, pos, err := ScanIndex(seg.index.Name(), seg, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), chunkID)
	require.Positive(t, pos)
	require.NoError(t, seg.Close())
}
