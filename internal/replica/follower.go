// Package replica runs the follower side of replication: on start it
// reconciles against the leader's per-epoch high-water marks (truncating
// any locally-diverged tail), then streams and applies chunks as an
// acceptor.
package replica

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	streamlog "github.com/lipandr/streamlog/internal/log"
)

// LeaderConn abstracts the transport to a leader; a real implementation
// dials the leader's replication port and speaks whatever wire protocol
// carries raw chunk bytes.
type LeaderConn interface {
	// LastOffsetEpochs returns the leader's (epoch, last_chunk_id) pairs
	// used for truncation negotiation, in any order:
	// TruncateToEpochOffsets tries them newest epoch first.
	LastOffsetEpochs() ([]streamlog.EpochOffset, error)
	// StreamChunks returns a reader yielding a sequential run of
	// complete, self-framing chunks starting at fromOffset. It returns
	// io.EOF once it has nothing further buffered; the follower
	// re-requests from its new NextOffset.
	StreamChunks(fromOffset uint64) (io.Reader, error)
}

// Follower owns one acceptor-mode Log and drives it from a LeaderConn.
// id uniquely names this running replica instance for logging/registry
// purposes — it is not persisted and is regenerated on every restart.
type Follower struct {
	id     string
	log    *streamlog.Log
	conn   LeaderConn
	logger *zap.Logger
}

// ID returns this follower instance's generated identifier.
func (f *Follower) ID() string { return f.id }

// NewFollower reconciles dir against the leader's epoch history before
// opening it, then opens it in acceptor mode.
func NewFollower(cfg streamlog.Config, conn LeaderConn, logger *zap.Logger) (*Follower, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pairs, err := conn.LastOffsetEpochs()
	if err != nil {
		return nil, err
	}
	if err := streamlog.TruncateToEpochOffsets(cfg.Dir, pairs); err != nil {
		return nil, err
	}
	l, err := streamlog.Open(cfg, streamlog.RoleAcceptor, logger)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	logger.Info("follower registered", zap.String("replica_id", id), zap.String("log", cfg.Name))
	return &Follower{id: id, log: l, conn: conn, logger: logger}, nil
}

// Run streams chunks from the leader and applies them until ctx is
// canceled or an unrecoverable error occurs. A fatal AcceptChunk error is
// returned as-is; the supervising process decides whether to restart.
func (f *Follower) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r, err := f.conn.StreamChunks(f.log.NextOffset())
		if err != nil {
			return err
		}
		if err := f.drain(r); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	}
}

func (f *Follower) drain(r io.Reader) error {
	hdr := make([]byte, streamlog.HeaderSize)
	for {
		if _, err := io.ReadFull(r, hdr); err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return err
		}
		h, err := streamlog.DecodeHeader(hdr)
		if err != nil {
			return err
		}

		rest := make([]byte, int(h.DataLen)+int(h.TrailerLen))
		if len(rest) > 0 {
			if _, err := io.ReadFull(r, rest); err != nil {
				return err
			}
		}

		raw := make([]byte, 0, len(hdr)+len(rest))
		raw = append(raw, hdr...)
		raw = append(raw, rest...)
		if err := f.log.AcceptChunk(raw); err != nil {
			f.logger.Error("accept chunk failed", zap.Error(err))
			return err
		}
	}
}

// NextOffset exposes the follower's current replication position.
func (f *Follower) NextOffset() uint64 { return f.log.NextOffset() }

// Close closes the underlying log.
func (f *Follower) Close() error { return f.log.Close() }
