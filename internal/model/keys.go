package model

import (
	"fmt"
	"hash/fnv"
	"time"
)

// segmentKeyFromWindow derives a coalescer routing key from a segment's
// time window, when the recognizer reports one.
func segmentKeyFromWindow(startMs, endMs int64) string {
	return fmt.Sprintf("w:%d-%d", startMs, endMs)
}

// segmentKeyFromText derives a fallback coalescer routing key from a
// timestamp and a hash of the segment text, for recognizers that don't
// report a time window on interim results.
func segmentKeyFromText(ts time.Time, text string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return fmt.Sprintf("t:%d-%x", ts.UnixMilli(), h.Sum64())
}
