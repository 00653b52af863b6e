package log

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

// Role distinguishes a log opened to originate new chunks (the leader)
// from one opened to apply chunks handed to it by a leader (a follower).
type Role int

const (
	RoleWriter Role = iota
	RoleAcceptor
)

// TailInfo is the (next_offset, previous_epoch_offset) pair exchanged
// during replica truncation negotiation.
type TailInfo struct {
	NextOffset   uint64
	HasPrevEpoch bool
	PrevEpoch    uint64
	PrevChunkID  uint64
}

// Log is a single segmented stream: the active segment plus the writer
// or acceptor state machine's in-memory tracking and writer-dedup maps.
type Log struct {
	mu     sync.Mutex
	cfg    Config
	role   Role
	dir    string
	logger *zap.Logger

	active *segment

	nextOffset   uint64
	firstOffset  uint64
	currentEpoch uint64
	tail         TailInfo

	needsNewSegment bool

	tracking map[string]uint64
	writers  map[string]WriterDedupEntry
}

// Open initializes a Log, handling three recovery cases:
//  1. empty directory — create the first segment at offset 0.
//  2. the most recent segment has chunks — recover tail_info from its
//     last chunk and verify the on-disk epoch hasn't advanced past cfg.Epoch.
//  3. the most recent segment exists but is empty — recover tail_info
//     from the segment before it, if any (a rollover that crashed before
//     its first write); otherwise this is equivalent to case 1.
func Open(cfg Config, role Role, logger *zap.Logger) (*Log, error) {
	cfg.setDefaults()
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	segs, err := Overview(cfg.Dir)
	if err != nil {
		return nil, err
	}

	l := &Log{
		cfg:      cfg,
		role:     role,
		dir:      cfg.Dir,
		logger:   logger,
		tracking: map[string]uint64{},
		writers:  map[string]WriterDedupEntry{},
	}

	if len(segs) == 0 {
		seg, err := openSegment(cfg.Dir, 0, 0)
		if err != nil {
			return nil, err
		}
		l.active = seg
		l.currentEpoch = cfg.Epoch
		return l, nil
	}

	last := segs[len(segs)-1]
	if last.Last != nil {
		if last.Last.Epoch > cfg.Epoch {
			return nil, fmt.Errorf("log %s: on-disk epoch %d exceeds opening epoch %d: %w", cfg.Name, last.Last.Epoch, cfg.Epoch, ErrInvalidEpoch)
		}
		seg, err := openSegment(cfg.Dir, last.FirstOffset, 0)
		if err != nil {
			return nil, err
		}
		l.active = seg
		l.nextOffset = last.Last.endOffset()
		l.tail = TailInfo{NextOffset: l.nextOffset, HasPrevEpoch: true, PrevEpoch: last.Last.Epoch, PrevChunkID: last.Last.ChunkID}
		l.currentEpoch = last.Last.Epoch
		if cfg.Epoch > l.currentEpoch {
			l.currentEpoch = cfg.Epoch
		}
	} else {
		seg, err := openSegment(cfg.Dir, last.FirstOffset, 0)
		if err != nil {
			return nil, err
		}
		l.active = seg
		l.currentEpoch = cfg.Epoch
		if len(segs) >= 2 {
			if prev := segs[len(segs)-2]; prev.Last != nil {
				l.nextOffset = last.FirstOffset
				l.tail = TailInfo{NextOffset: l.nextOffset, HasPrevEpoch: true, PrevEpoch: prev.Last.Epoch, PrevChunkID: prev.Last.ChunkID}
				l.currentEpoch = prev.Last.Epoch
				if cfg.Epoch > l.currentEpoch {
					l.currentEpoch = cfg.Epoch
				}
			}
		}
	}

	tracking, writers, err := recoverState(l.active)
	if err != nil {
		return nil, err
	}
	l.tracking = tracking
	l.writers = writers
	l.firstOffset = firstOffsetOf(segs)
	return l, nil
}

// recoverState replays one segment's chunks to rebuild the in-memory
// tracking and writer-dedup maps. Recovery only re-reads the most recent
// segment: a TRK_DELTA or USER trailer written to an older, already-rolled
// segment is lost if that segment's own TRK_SNAPSHOT/WRT_SNAPSHOT
// predecessor isn't present in the segment being scanned.
func recoverState(seg *segment) (map[string]uint64, map[string]WriterDedupEntry, error) {
	tracking := map[string]uint64{}
	writers := map[string]WriterDedupEntry{}

	count := seg.index.Count()
	for n := uint64(0); n < count; n++ {
		rec, err := seg.index.ReadAt(n)
		if err != nil {
			return nil, nil, err
		}
		h, data, trailer, err := seg.ReadChunkAt(int64(rec.FilePos))
		if err != nil {
			return nil, nil, err
		}
		switch h.ChunkType {
		case ChunkTrackingDelta:
			delta, err := decodeTrackingBody(data)
			if err != nil {
				return nil, nil, err
			}
			for k, v := range delta {
				tracking[k] = v
			}
		case ChunkTrackingSnapshot:
			snap, err := decodeTrackingBody(data)
			if err != nil {
				return nil, nil, err
			}
			tracking = snap
		case ChunkWriterSnapshot:
			ws, err := decodeWriterSnapshotBody(data, h.ChunkFirstOffset)
			if err != nil {
				return nil, nil, err
			}
			writers = ws
		case ChunkUser:
			if len(trailer) == 0 {
				continue
			}
			delta, err := decodeTrailer(trailer, h.ChunkFirstOffset)
			if err != nil {
				return nil, nil, err
			}
			for k, v := range delta {
				writers[k] = v
			}
		}
	}
	return tracking, writers, nil
}

func firstOffsetOf(segs []SegInfo) uint64 {
	for _, s := range segs {
		if s.First != nil {
			return s.First.ChunkID
		}
	}
	return 0
}

func (l *Log) Dir() string { return l.dir }

func (l *Log) NextOffset() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextOffset
}

func (l *Log) Tail() TailInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tail
}

func (l *Log) FirstOffset() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.firstOffset
}

// SetFirstOffset records the offset of the oldest chunk retention still
// keeps around; rollover uses it to drop tracking entries for consumers
// whose recorded offset has already been reclaimed.
func (l *Log) SetFirstOffset(off uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.firstOffset = off
}

func (l *Log) Epoch() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentEpoch
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active.Close()
}
