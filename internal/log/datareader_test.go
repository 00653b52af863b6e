package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDataReaderForwardsRawChunksInOrder(t *testing.T) {
	dir := t.TempDir()
	l := openTestLog(t, dir, RoleWriter, Config{Epoch: 1})
	_, _, err := l.Write(WriteRequest{Entries: []Entry{NewRecordEntry([]byte("a"))}})
	require.NoError(t, err)
	_, _, err = l.Write(WriteRequest{Entries: []Entry{NewRecordEntry([]byte("b"))}})
	require.NoError(t, err)

	dr, err := NewDataReader(dir, 0, l.NextOffset)
	require.NoError(t, err)

	var chunkTypes []ChunkType
	for {
		h, send, err := dr.Next()
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		require.NoError(t, err)
		chunkTypes = append(chunkTypes, h.ChunkType)

		var buf bytes.Buffer
		require.NoError(t, send(&buf))
		require.Equal(t, int(HeaderSize)+int(h.DataLen)+int(h.TrailerLen), buf.Len())
	}
	require.Equal(t, []ChunkType{ChunkUser, ChunkUser}, chunkTypes)
}

func TestDataReaderForwardsSnapshotChunksOnRollover(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Epoch: 1}
	cfg.Segment.MaxSize = HeaderSize + 16

	l := openTestLog(t, dir, RoleWriter, cfg)
	_, _, err := l.Write(WriteRequest{Entries: []Entry{NewRecordEntry([]byte("abcdefgh"))}})
	require.NoError(t, err)
	_, _, err = l.Write(WriteRequest{Entries: []Entry{NewRecordEntry([]byte("i"))}})
	require.NoError(t, err)

	dr, err := NewDataReader(dir, 0, l.NextOffset)
	require.NoError(t, err)

	var chunkTypes []ChunkType
	for {
		h, _, err := dr.Next()
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		require.NoError(t, err)
		chunkTypes = append(chunkTypes, h.ChunkType)
	}
	require.Equal(t, []ChunkType{ChunkUser, ChunkTrackingSnapshot, ChunkWriterSnapshot, ChunkUser}, chunkTypes)
}
