//go:build !linux

package log

import (
	"io"
	"os"
)

// trySendfile has no portable zero-copy path outside Linux; sendChunk
// falls back to a buffered copy.
func trySendfile(w io.Writer, src *os.File, offset, n int64) (handled bool, err error) {
	return false, nil
}
