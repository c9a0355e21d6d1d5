package combiner

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hubenschmidt/univoice/internal/model"
)

// ParagraphConfig holds the Paragraph Builder's tuning knobs.
type ParagraphConfig struct {
	MinDuration      time.Duration
	MaxDuration      time.Duration
	SilenceThreshold time.Duration
	// MinBreakLen is the minimum accumulated rune length before the
	// natural-break heuristic (sentence-final punctuation) is honored,
	// so short fragments don't close a paragraph prematurely.
	MinBreakLen int
	Clean       bool
}

// DefaultParagraphConfig returns the documented defaults.
func DefaultParagraphConfig() ParagraphConfig {
	return ParagraphConfig{
		MinDuration:      20 * time.Second,
		MaxDuration:      60 * time.Second,
		SilenceThreshold: 2 * time.Second,
		MinBreakLen:      80,
		Clean:            true,
	}
}

// ParagraphEmitFunc receives a completed Paragraph.
type ParagraphEmitFunc func(model.Paragraph)

// ParagraphBuilder groups final segments into 20-60s paragraphs.
type ParagraphBuilder struct {
	cfg  ParagraphConfig
	emit ParagraphEmitFunc

	segIDs    []string
	text      strings.Builder
	startTime time.Time
	lastSeg   time.Time
}

// NewParagraphBuilder creates a builder for one session.
func NewParagraphBuilder(cfg ParagraphConfig, emit ParagraphEmitFunc) *ParagraphBuilder {
	return &ParagraphBuilder{cfg: cfg, emit: emit}
}

// AddFinal appends a final segment, closing the paragraph if a close
// rule fires: max duration reached, min duration reached
// with a silence gap since the last segment, or a natural sentence
// break past the minimum length.
func (b *ParagraphBuilder) AddFinal(seg model.TranscriptSegment) {
	now := seg.Timestamp
	if len(b.segIDs) == 0 {
		b.startTime = now
	} else if gap := now.Sub(b.lastSeg); gap >= b.cfg.SilenceThreshold && now.Sub(b.startTime) >= b.cfg.MinDuration {
		b.flush(b.lastSeg)
		b.startTime = now
	}

	b.segIDs = append(b.segIDs, seg.ID)
	if b.text.Len() > 0 {
		b.text.WriteByte(' ')
	}
	b.text.WriteString(seg.Text)
	b.lastSeg = now

	elapsed := now.Sub(b.startTime)
	if elapsed >= b.cfg.MaxDuration {
		b.flush(now)
		return
	}
	if elapsed >= b.cfg.MinDuration && b.text.Len() >= b.cfg.MinBreakLen && endsSentence(seg.Text) {
		b.flush(now)
	}
}

// Tick closes the in-progress paragraph if the silence gap since the
// last segment has grown past SilenceThreshold while MinDuration has
// already elapsed, without waiting for the next segment to arrive.
func (b *ParagraphBuilder) Tick(now time.Time) {
	if len(b.segIDs) == 0 {
		return
	}
	if now.Sub(b.lastSeg) >= b.cfg.SilenceThreshold && now.Sub(b.startTime) >= b.cfg.MinDuration {
		b.flush(now)
	}
}

// Flush force-closes the in-progress paragraph regardless of duration
// rules, used on session stop.
func (b *ParagraphBuilder) Flush(now time.Time) {
	if len(b.segIDs) > 0 {
		b.flush(now)
	}
}

func (b *ParagraphBuilder) flush(endTime time.Time) {
	ids := b.segIDs
	raw := b.text.String()
	start := b.startTime

	b.segIDs = nil
	b.text.Reset()

	p := model.Paragraph{
		ParagraphID: uuid.NewString(),
		SegmentIDs:  ids,
		RawText:     raw,
		Status:      model.ParagraphCollecting,
		StartTime:   start,
		EndTime:     endTime,
	}
	if b.cfg.Clean {
		p.CleanedText = Clean(raw)
	}
	p.Status = model.ParagraphCompleted

	if b.emit != nil {
		b.emit(p)
	}
}
