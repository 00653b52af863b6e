// Package logerrs classifies the sentinel errors internal/log returns
// into a recoverable/fatal split, so a supervising process
// (cmd/streamlogd, cmd/streamlog-replica) has one place to decide
// whether to retry a request or crash and restart the task.
package logerrs

import (
	streamlog "github.com/lipandr/streamlog/internal/log"
)

// Severity is how a supervising process should react to an error
// surfaced from the log engine.
type Severity int

const (
	// Recoverable means the caller should handle the condition in place
	// (reject the request, retry, rebuild an overview) without tearing
	// anything down.
	Recoverable Severity = iota
	// Fatal means the owning task must stop; the supervisor is
	// responsible for deciding whether and how to restart it.
	Fatal
)

func (s Severity) String() string {
	if s == Fatal {
		return "fatal"
	}
	return "recoverable"
}

// Classify reports the severity of err as returned by internal/log.
func Classify(err error) Severity {
	if streamlog.IsRecoverable(err) {
		return Recoverable
	}
	return Fatal
}
