//go:build linux

package log

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// fdWriter is satisfied by *os.File and by the result of
// (*net.TCPConn).File(), letting a replica transport opt into zero-copy
// transmission without this package importing net.
type fdWriter interface {
	Fd() uintptr
}

// trySendfile uses unix.Sendfile to copy n bytes at offset from src
// straight through the kernel page cache to w's file descriptor,
// avoiding a userspace copy. It reports handled=false when w does not
// expose a raw descriptor, so the caller falls back to a buffered copy.
func trySendfile(w io.Writer, src *os.File, offset, n int64) (handled bool, err error) {
	fw, ok := w.(fdWriter)
	if !ok {
		return false, nil
	}
	dstFd := int(fw.Fd())
	srcFd := int(src.Fd())

	remaining := n
	off := offset
	for remaining > 0 {
		sent, err := unix.Sendfile(dstFd, srcFd, &off, int(remaining))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return true, err
		}
		if sent == 0 {
			return true, io.ErrShortWrite
		}
		remaining -= int64(sent)
	}
	return true, nil
}
