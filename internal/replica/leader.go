package replica

import (
	"encoding/binary"
	"errors"
	"io"
	"net"

	"go.uber.org/zap"

	streamlog "github.com/lipandr/streamlog/internal/log"
)

// LeaderServer is the replication-transport side a writer runs: accept a
// connection, read the follower's requested start offset as an 8-byte
// big-endian offset, then stream every chunk from there on using
// DataReader. The connection is closed once the reader catches up to
// Committed, matching the client-side Follower.drain's
// io.EOF-means-retry contract.
type LeaderServer struct {
	Dir       string
	Committed func() uint64
	Logger    *zap.Logger
}

func (s *LeaderServer) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.serve(conn)
	}
}

func (s *LeaderServer) serve(conn net.Conn) {
	defer conn.Close()
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var offBuf [8]byte
	if _, err := io.ReadFull(conn, offBuf[:]); err != nil {
		logger.Warn("replica handshake failed", zap.Error(err))
		return
	}
	from := binary.BigEndian.Uint64(offBuf[:])

	dr, err := streamlog.NewDataReader(s.Dir, from, s.Committed)
	if err != nil {
		logger.Warn("replica data reader failed", zap.Uint64("from", from), zap.Error(err))
		return
	}

	for {
		_, send, err := dr.Next()
		if err != nil {
			if !errors.Is(err, streamlog.ErrEndOfStream) {
				logger.Warn("replica stream ended with error", zap.Error(err))
			}
			return
		}
		if err := send(conn); err != nil {
			return
		}
	}
}
