package log

import "errors"

// Recoverable errors — the caller is expected to handle these.
var (
	// ErrOffsetOutOfRange is returned when a reader's requested offset
	// does not lie within the log's current range.
	ErrOffsetOutOfRange = errors.New("offset out of range")

	// ErrInvalidLastOffsetEpoch is returned when a follower's previous
	// epoch/offset pair does not match what the leader's log records at
	// that position. The caller should truncate and retry.
	ErrInvalidLastOffsetEpoch = errors.New("invalid last offset epoch")

	// ErrMissingFile is returned when a segment or index file vanished
	// during a read path, most often because retention deleted it
	// concurrently. Recoverable by rebuilding the overview and retrying.
	ErrMissingFile = errors.New("missing segment or index file")

	// ErrEndOfStream indicates a reader has caught up to the end of
	// what is currently available (not an error condition by itself).
	ErrEndOfStream = errors.New("end of stream")
)

// Fatal errors crash the owning task; the supervising process is
// responsible for restart or remediation. The core never silently
// swallows them.
var (
	// ErrBadChunkHeader is bad_chunk_header: the magic or version field
	// of a chunk header did not match the expected value.
	ErrBadChunkHeader = errors.New("bad chunk header")

	// ErrCRCValidationFailure is crc_validation_failure: on-disk
	// corruption detected by CRC mismatch.
	ErrCRCValidationFailure = errors.New("crc validation failure")

	// ErrInvalidEpoch is invalid_epoch: the log on disk has advanced
	// beyond the epoch the writer claims to be opening at.
	ErrInvalidEpoch = errors.New("invalid epoch")

	// ErrAcceptChunkOutOfOrder is accept_chunk_out_of_order: a
	// replication gap; the supervisor must restart the follower.
	ErrAcceptChunkOutOfOrder = errors.New("accept chunk out of order")

	// ErrSegmentNotFound is segment_not_found: an invariant violation
	// during lookup (a well-formed log should never produce this).
	ErrSegmentNotFound = errors.New("segment not found")
)

// IsRecoverable reports whether err (or something it wraps) is one of the
// kinds callers are expected to handle rather than crash on.
func IsRecoverable(err error) bool {
	switch {
	case errors.Is(err, ErrOffsetOutOfRange),
		errors.Is(err, ErrInvalidLastOffsetEpoch),
		errors.Is(err, ErrMissingFile),
		errors.Is(err, ErrEndOfStream):
		return true
	default:
		return false
	}
}
