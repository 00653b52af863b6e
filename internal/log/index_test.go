package log

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexWriteAndReadAt(t *testing.T) {
	dir := t.TempDir()
	f, err := os.OpenFile(dir+"/0.index", os.O_RDWR|os.O_CREATE, 0644)
	require.NoError(t, err)

	idx, err := newIndex(f, indexEntryWidth*2)
	require.NoError(t, err)

	want := []indexRecord{
		{ChunkID: 0, Timestamp: 10, Epoch: 1, FilePos: 8},
		{ChunkID: 1, Timestamp: 20, Epoch: 1, FilePos: 40},
	}
	for _, r := range want {
		require.NoError(t, idx.Write(r))
	}
	require.Equal(t, uint64(2), idx.Count())

	for n, r := range want {
		got, err := idx.ReadAt(uint64(n))
		require.NoError(t, err)
		require.Equal(t, r, got)
	}

	_, err = idx.ReadAt(2)
	require.ErrorIs(t, err, io.EOF)
	require.NoError(t, idx.Close())
}

func TestIndexGrowsPastInitialCapacity(t *testing.T) {
	dir := t.TempDir()
	f, err := os.OpenFile(dir+"/0.index", os.O_RDWR|os.O_CREATE, 0644)
	require.NoError(t, err)

	idx, err := newIndex(f, indexEntryWidth) // capacity for exactly one record
	require.NoError(t, err)

	for n := uint64(0); n < 5; n++ {
		require.NoError(t, idx.Write(indexRecord{ChunkID: n, FilePos: uint32(n)}))
	}
	require.Equal(t, uint64(5), idx.Count())
	require.NoError(t, idx.Close())
}

func TestIndexTruncate(t *testing.T) {
	dir := t.TempDir()
	f, err := os.OpenFile(dir+"/0.index", os.O_RDWR|os.O_CREATE, 0644)
	require.NoError(t, err)
	idx, err := newIndex(f, 0)
	require.NoError(t, err)

	for n := uint64(0); n < 4; n++ {
		require.NoError(t, idx.Write(indexRecord{ChunkID: n}))
	}
	require.NoError(t, idx.Truncate(2))
	require.Equal(t, uint64(2), idx.Count())
	require.NoError(t, idx.Close())
}
