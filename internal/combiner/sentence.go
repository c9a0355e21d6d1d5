// Package combiner aggregates final ASR segments into sentence-sized
// units and paragraph-sized units for history-grade re-translation and
// display.
package combiner

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/hubenschmidt/univoice/internal/model"
)

// SentenceConfig holds the Sentence Combiner's tuning knobs.
type SentenceConfig struct {
	TimeoutMs   int64
	MaxSegments int
	MinSegments int
}

// DefaultSentenceConfig returns the documented defaults.
func DefaultSentenceConfig() SentenceConfig {
	return SentenceConfig{TimeoutMs: 2000, MaxSegments: 10, MinSegments: 2}
}

// SentenceEmitFunc receives a completed CombinedSentence.
type SentenceEmitFunc func(model.CombinedSentence)

// SentenceCombiner buffers contiguous final segments and emits a
// CombinedSentence when one of four emission rules fires: end-of-sentence
// punctuation, silence timeout, a full buffer, or a session-stop flush.
type SentenceCombiner struct {
	cfg  SentenceConfig
	emit SentenceEmitFunc

	segments  []model.TranscriptSegment
	lastFinal time.Time
}

// NewSentenceCombiner creates a combiner for one session.
func NewSentenceCombiner(cfg SentenceConfig, emit SentenceEmitFunc) *SentenceCombiner {
	return &SentenceCombiner{cfg: cfg, emit: emit}
}

// AddFinal appends a final segment and emits a CombinedSentence if rule 1
// (end-of-sentence punctuation) or rule 3 (max-segments) fires. Rule 1 is
// exempt from the MinSegments gate: a one-segment sentence still counts.
// Rule 2 (timeout) is evaluated by Tick, since it depends on whether
// another final segment ever arrives.
func (c *SentenceCombiner) AddFinal(seg model.TranscriptSegment) {
	c.segments = append(c.segments, seg)
	c.lastFinal = seg.Timestamp

	if endsSentence(seg.Text) {
		c.flush()
		return
	}
	if len(c.segments) >= c.cfg.maxSegmentsOrDefault() && len(c.segments) >= c.cfg.minSegmentsOrOne() {
		c.flush()
	}
}

// Tick evaluates the silence-timeout rule (rule 2): if no further final
// segment has arrived for TimeoutMs since the last one, and the buffer
// meets MinSegments, flush. Callers invoke this on a periodic timer or
// whenever idle time is observed.
func (c *SentenceCombiner) Tick(now time.Time) {
	if len(c.segments) == 0 {
		return
	}
	if len(c.segments) < c.cfg.minSegmentsOrOne() {
		return
	}
	elapsed := now.Sub(c.lastFinal).Milliseconds()
	if elapsed >= c.cfg.TimeoutMs {
		c.flush()
	}
}

// Flush force-emits any buffered segments regardless of rules, used on
// session stop.
func (c *SentenceCombiner) Flush() {
	if len(c.segments) > 0 {
		c.flush()
	}
}

func (c *SentenceCombiner) flush() {
	segs := c.segments
	c.segments = nil

	ids := make([]string, len(segs))
	var text strings.Builder
	for i, s := range segs {
		ids[i] = s.ID
		if i > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(s.Text)
	}

	cs := model.CombinedSentence{
		CombinedID:   uuid.NewString(),
		SegmentIDs:   ids,
		OriginalText: text.String(),
		StartMs:      segs[0].StartMs,
		EndMs:        segs[len(segs)-1].EndMs,
		SegmentCount: len(segs),
	}
	if c.emit != nil {
		c.emit(cs)
	}
}

func (c SentenceConfig) minSegmentsOrOne() int {
	if c.MinSegments <= 0 {
		return 1
	}
	return c.MinSegments
}

func (c SentenceConfig) maxSegmentsOrDefault() int {
	if c.MaxSegments <= 0 {
		return 10
	}
	return c.MaxSegments
}

// endsSentence reports whether text ends with sentence-final punctuation
// (ASCII .!? or the CJK full-width 。．！？). Only the tail of an
// already-final segment needs testing, so no mid-stream boundary scan is
// required.
func endsSentence(text string) bool {
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	if text == "" {
		return false
	}
	r := []rune(text)
	last := r[len(r)-1]
	switch last {
	case '.', '!', '?', '。', '．', '！', '？':
		return true
	default:
		return false
	}
}
