package replica

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	streamlog "github.com/lipandr/streamlog/internal/log"
)

// TCPLeaderConn is the default LeaderConn: it fetches epoch history from
// the leader's admin HTTP overview endpoint and streams chunks over a
// plain TCP connection using LeaderServer's handshake.
type TCPLeaderConn struct {
	ReplAddr  string // host:port LeaderServer listens on
	OverviewURL string // e.g. http://host:8080/logs/demo/overview
	HTTPClient  *http.Client
}

func (c *TCPLeaderConn) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *TCPLeaderConn) LastOffsetEpochs() ([]streamlog.EpochOffset, error) {
	resp, err := c.client().Get(c.OverviewURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("overview %s: status %d", c.OverviewURL, resp.StatusCode)
	}

	var segs []streamlog.SegInfo
	if err := json.NewDecoder(resp.Body).Decode(&segs); err != nil {
		return nil, err
	}
	return streamlog.LastOffsetEpochs(segs)
}

func (c *TCPLeaderConn) StreamChunks(fromOffset uint64) (io.Reader, error) {
	conn, err := net.Dial("tcp", c.ReplAddr)
	if err != nil {
		return nil, err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], fromOffset)
	if _, err := conn.Write(buf[:]); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
