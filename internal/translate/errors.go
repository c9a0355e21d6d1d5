package translate

import "errors"

// Sentinel errors returned by Queue.Enqueue.
var (
	// ErrQueueFull is returned when the queue already holds maxQueueSize
	// pending items and cannot accept another.
	ErrQueueFull = errors.New("translate: queue full")
	// ErrDuplicateSegment is returned when a segment id is already active
	// or already queued; the caller should log a warning and drop.
	ErrDuplicateSegment = errors.New("translate: duplicate segment id")
)
