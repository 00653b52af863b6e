package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOffsetReaderReadsCommittedRecords(t *testing.T) {
	dir := t.TempDir()
	l := openTestLog(t, dir, RoleWriter, Config{Epoch: 1})

	_, _, err := l.Write(WriteRequest{Entries: []Entry{NewRecordEntry([]byte("a")), NewRecordEntry([]byte("b"))}})
	require.NoError(t, err)
	_, _, err = l.Write(WriteRequest{Entries: []Entry{NewRecordEntry([]byte("c"))}})
	require.NoError(t, err)

	committed := l.NextOffset
	r, err := NewOffsetReader(dir, 0, committed)
	require.NoError(t, err)

	var got []string
	for {
		rec, err := r.Next()
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		require.NoError(t, err)
		got = append(got, string(rec.Value))
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestOffsetReaderStartsMidChunk(t *testing.T) {
	dir := t.TempDir()
	l := openTestLog(t, dir, RoleWriter, Config{Epoch: 1})
	_, _, err := l.Write(WriteRequest{Entries: []Entry{
		NewRecordEntry([]byte("a")), NewRecordEntry([]byte("b")), NewRecordEntry([]byte("c")),
	}})
	require.NoError(t, err)

	r, err := NewOffsetReader(dir, 1, l.NextOffset)
	require.NoError(t, err)

	rec, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, uint64(1), rec.Offset)
	require.Equal(t, "b", string(rec.Value))
}

func TestOffsetReaderRejectsOffsetOutOfRange(t *testing.T) {
	dir := t.TempDir()
	l := openTestLog(t, dir, RoleWriter, Config{Epoch: 1})
	_, _, err := l.Write(WriteRequest{Entries: []Entry{NewRecordEntry([]byte("a"))}})
	require.NoError(t, err)

	_, err = NewOffsetReader(dir, 99, l.NextOffset)
	require.ErrorIs(t, err, ErrOffsetOutOfRange)
}
