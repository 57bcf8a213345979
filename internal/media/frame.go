// Package media holds the frame type shared by all video sources.
package media

import (
	"time"

	"github.com/google/uuid"
)

// Frame is a single video frame with metadata.
type Frame struct {
	// Seq is the monotonic sequence number within one source instance.
	Seq uint64
	// Timestamp is when the frame was captured or decoded.
	Timestamp time.Time
	// Width in pixels.
	Width int
	// Height in pixels.
	Height int
	// Data is the raw frame payload.
	Data []byte
	// Source names the instance that produced the frame.
	Source string
	// TraceID correlates the frame across the processing pipeline.
	TraceID string
}

// NewTraceID returns a fresh trace identifier for a frame.
func NewTraceID() string {
	return uuid.NewString()
}
