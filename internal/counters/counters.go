// Package counters tracks per-log and per-replica-reader progress
// metrics, lazily registered on first use and removed with DeleteLog or
// DeleteReader.
package counters

import (
	"sort"
	"sync"
	"sync/atomic"
)

// LogCounters are the running figures tracked for a single stream:
// current first/committed/next offsets and epoch, plus byte and chunk
// totals used by the admin overview surface.
type LogCounters struct {
	FirstOffset     atomic.Uint64
	CommittedOffset atomic.Uint64
	NextOffset      atomic.Uint64
	Epoch           atomic.Uint64
	BytesWritten    atomic.Uint64
	ChunksWritten   atomic.Uint64
}

// ReaderCounters track one replica reader's lag behind the leader's
// committed offset.
type ReaderCounters struct {
	ReaderOffset atomic.Uint64
	ChunksSent   atomic.Uint64
	BytesSent    atomic.Uint64
}

// Registry holds the counters for every open log and reader, keyed by
// name, so an admin surface can enumerate them without each log needing
// to know about HTTP.
type Registry struct {
	mu      sync.RWMutex
	logs    map[string]*LogCounters
	readers map[string]*ReaderCounters
}

func NewRegistry() *Registry {
	return &Registry{
		logs:    make(map[string]*LogCounters),
		readers: make(map[string]*ReaderCounters),
	}
}

// Log returns the named log's counters, creating them on first use.
func (r *Registry) Log(name string) *LogCounters {
	r.mu.RLock()
	c, ok := r.logs[name]
	r.mu.RUnlock()
	if ok {
		return c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.logs[name]; ok {
		return c
	}
	c = &LogCounters{}
	r.logs[name] = c
	return c
}

// DeleteLog removes a log's counters, e.g. once its directory is deleted.
func (r *Registry) DeleteLog(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.logs, name)
}

// Reader returns the named reader's counters (keyed by log name +
// reader id), creating them on first use.
func (r *Registry) Reader(key string) *ReaderCounters {
	r.mu.RLock()
	c, ok := r.readers[key]
	r.mu.RUnlock()
	if ok {
		return c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.readers[key]; ok {
		return c
	}
	c = &ReaderCounters{}
	r.readers[key] = c
	return c
}

// DeleteReader removes a reader's counters when its connection closes.
func (r *Registry) DeleteReader(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.readers, key)
}

// Snapshot is a point-in-time view of a log's counters for the admin
// overview endpoint.
type Snapshot struct {
	Name            string `json:"name"`
	FirstOffset     uint64 `json:"first_offset"`
	CommittedOffset uint64 `json:"committed_offset"`
	NextOffset      uint64 `json:"next_offset"`
	Epoch           uint64 `json:"epoch"`
	BytesWritten    uint64 `json:"bytes_written"`
	ChunksWritten   uint64 `json:"chunks_written"`
}

// Snapshots returns a stable-ordered snapshot of every registered log's
// counters.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.logs))
	for name, c := range r.logs {
		out = append(out, Snapshot{
			Name:            name,
			FirstOffset:     c.FirstOffset.Load(),
			CommittedOffset: c.CommittedOffset.Load(),
			NextOffset:      c.NextOffset.Load(),
			Epoch:           c.Epoch.Load(),
			BytesWritten:    c.BytesWritten.Load(),
			ChunksWritten:   c.ChunksWritten.Load(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
