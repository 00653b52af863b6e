package log

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAcceptChunkAppliesInOrder(t *testing.T) {
	writerDir := t.TempDir()
	writer := openTestLog(t, writerDir, RoleWriter, Config{Epoch: 1})

	_, _, err := writer.Write(WriteRequest{Entries: []Entry{NewRecordEntry([]byte("a"))}})
	require.NoError(t, err)
	_, _, err = writer.Write(WriteRequest{Entries: []Entry{NewRecordEntry([]byte("b"))}})
	require.NoError(t, err)

	segs, err := Overview(writerDir)
	require.NoError(t, err)
	seg, err := openSegmentReadOnly(writerDir, segs[0].FirstOffset)
	require.NoError(t, err)
	defer seg.Close()

	acceptorDir := t.TempDir()
	acceptor := openTestLog(t, acceptorDir, RoleAcceptor, Config{Epoch: 1})

	count := seg.index.Count()
	for n := uint64(0); n < count; n++ {
		rec, err := seg.index.ReadAt(n)
		require.NoError(t, err)
		h, err := seg.ReadHeaderAt(int64(rec.FilePos))
		require.NoError(t, err)
		raw := make([]byte, HeaderSize+int(h.DataLen)+int(h.TrailerLen))
		_, err = seg.store.ReadAt(raw, int64(rec.FilePos))
		require.NoError(t, err)
		require.NoError(t, acceptor.AcceptChunk(raw))
	}

	require.Equal(t, writer.NextOffset(), acceptor.NextOffset())
}

func TestAcceptChunkRejectsOutOfOrder(t *testing.T) {
	acceptor := openTestLog(t, t.TempDir(), RoleAcceptor, Config{Epoch: 1})

	buf, h, _, err := EncodeChunk(1000, 1, 5, []Entry{NewRecordEntry([]byte("x"))}, nil)
	require.NoError(t, err)
	_ = h

	err = acceptor.AcceptChunk(buf)
	require.ErrorIs(t, err, ErrAcceptChunkOutOfOrder)
}

func TestAcceptChunkDetectsCorruption(t *testing.T) {
	acceptor := openTestLog(t, t.TempDir(), RoleAcceptor, Config{Epoch: 1})

	buf, _, _, err := EncodeChunk(1000, 1, 0, []Entry{NewRecordEntry([]byte("x"))}, nil)
	require.NoError(t, err)
	buf[HeaderSize] ^= 0xff // corrupt the first data byte

	err = acceptor.AcceptChunk(buf)
	require.ErrorIs(t, err, ErrCRCValidationFailure)
}

func TestTruncateToEpochOffsetsDiscardsDivergentTail(t *testing.T) {
	dir := t.TempDir()
	l := openTestLog(t, dir, RoleWriter, Config{Epoch: 1})
	_, _, err := l.Write(WriteRequest{Entries: []Entry{NewRecordEntry([]byte("a"))}})
	require.NoError(t, err)
	_, _, err = l.Write(WriteRequest{Entries: []Entry{NewRecordEntry([]byte("b"))}})
	require.NoError(t, err)
	_, _, err = l.Write(WriteRequest{Entries: []Entry{NewRecordEntry([]byte("c"))}})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	segs, err := Overview(dir)
	require.NoError(t, err)
	epochs, err := LastOffsetEpochs(segs)
	require.NoError(t, err)

	// Pretend the leader only remembers up through chunk 1 at epoch 1.
	err = TruncateToEpochOffsets(dir, []EpochOffset{{Epoch: 1, LastChunkID: 1}})
	require.NoError(t, err)

	segs, err = Overview(dir)
	require.NoError(t, err)
	_, last, ok := Range(segs)
	require.True(t, ok)
	require.Equal(t, uint64(1), last)
	_ = epochs
}
