package log

import "time"

// RetentionSpec is one retention rule evaluated against a log's segments,
// in order, by EvaluateRetention.
type RetentionSpec struct {
	MaxBytes uint64        // 0 disables this rule
	MaxAge   time.Duration // 0 disables this rule
}

// Config carries every knob a log needs at open time, grouping segment
// sizing under a nested Segment struct.
type Config struct {
	Dir  string
	Name string

	// Epoch is the leader term this writer/acceptor is opening at.
	Epoch uint64

	Segment struct {
		// MaxSize rolls a new segment once the active one reaches or
		// exceeds this many bytes. Default 500 MB.
		MaxSize uint64
	}

	Retention []RetentionSpec

	// MaxWriters bounds the in-memory writer-dedup map, default 255.
	MaxWriters int
}

const (
	defaultMaxSegmentSize uint64 = 500 * 1024 * 1024
	defaultMaxWriters            = 255
)

func (c *Config) setDefaults() {
	if c.Segment.MaxSize == 0 {
		c.Segment.MaxSize = defaultMaxSegmentSize
	}
	if c.MaxWriters == 0 {
		c.MaxWriters = defaultMaxWriters
	}
}
