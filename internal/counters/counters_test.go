package counters

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryLazyRegistersAndDeletes(t *testing.T) {
	r := NewRegistry()
	c := r.Log("demo")
	c.NextOffset.Store(10)

	require.Equal(t, uint64(10), r.Log("demo").NextOffset.Load())

	snaps := r.Snapshots()
	require.Len(t, snaps, 1)
	require.Equal(t, "demo", snaps[0].Name)
	require.Equal(t, uint64(10), snaps[0].NextOffset)

	r.DeleteLog("demo")
	require.Empty(t, r.Snapshots())
}

func TestRegistryReaderCounters(t *testing.T) {
	r := NewRegistry()
	rc := r.Reader("demo/replica-1")
	rc.ChunksSent.Store(5)

	require.Equal(t, uint64(5), r.Reader("demo/replica-1").ChunksSent.Load())
	r.DeleteReader("demo/replica-1")
	require.Equal(t, uint64(0), r.Reader("demo/replica-1").ChunksSent.Load())
}
