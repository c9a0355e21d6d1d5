package session

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// writerChannelBuffer is how many persistence messages can queue before
// the background drain goroutine writes them to the store.
const writerChannelBuffer = 64

type writerMsg struct {
	kind     string // "session_create", "session_end", "sentence", "summary"
	session  Descriptor
	endedAt  time.Time
	sentence SentenceEntry
	summary  SummaryEntry
}

// Writer persists session memory asynchronously via a buffered channel
// drained by one background goroutine. All methods are nil-safe (no-op
// on nil receiver) so persistence is optional.
type Writer struct {
	store *Store
	ch    chan writerMsg
	done  chan struct{}
}

// NewWriter creates a Writer bound to store. One Writer serves every
// session; callers MUST call Close() once, at shutdown, to flush pending
// writes and stop the goroutine.
func NewWriter(store *Store) *Writer {
	w := &Writer{
		store: store,
		ch:    make(chan writerMsg, writerChannelBuffer),
		done:  make(chan struct{}),
	}
	go w.drain()
	return w
}

func (w *Writer) drain() {
	defer close(w.done)
	for msg := range w.ch {
		if err := w.dispatch(msg); err != nil {
			slog.Warn("session persistence write failed", "kind", msg.kind, "error", err)
		}
	}
}

func (w *Writer) dispatch(m writerMsg) error {
	switch m.kind {
	case "session_create":
		return w.store.CreateSession(m.session)
	case "session_end":
		return w.store.EndSession(m.session.ID, m.endedAt)
	case "sentence":
		return w.store.InsertSentence(m.sentence)
	case "summary":
		return w.store.InsertSummary(m.summary)
	}
	return nil
}

// StartSession records a new session descriptor.
func (w *Writer) StartSession(d Descriptor) {
	if w == nil {
		return
	}
	w.ch <- writerMsg{kind: "session_create", session: d}
}

// EndSession records the session's end time.
func (w *Writer) EndSession(sessionID string, endedAt time.Time) {
	if w == nil {
		return
	}
	w.ch <- writerMsg{kind: "session_end", session: Descriptor{ID: sessionID}, endedAt: endedAt}
}

// RecordSentence persists one bilingual sentence entry.
func (w *Writer) RecordSentence(sessionID, segmentID, sourceText, targetText, tier string, highQuality bool) {
	if w == nil {
		return
	}
	w.ch <- writerMsg{kind: "sentence", sentence: SentenceEntry{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		SegmentID:     segmentID,
		SourceText:    sourceText,
		TargetText:    targetText,
		Tier:          tier,
		IsHighQuality: highQuality,
		CreatedAt:     time.Now(),
	}}
}

// RecordSummary persists one summary entry.
func (w *Writer) RecordSummary(sessionID, sourceText, targetText string, wordCount, threshold int, isFinal bool, start, end time.Time) {
	if w == nil {
		return
	}
	w.ch <- writerMsg{kind: "summary", summary: SummaryEntry{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		SourceText: sourceText,
		TargetText: targetText,
		WordCount:  wordCount,
		Threshold:  threshold,
		IsFinal:    isFinal,
		StartedAt:  start,
		EndedAt:    end,
	}}
}

// Close drains pending writes and shuts down the background goroutine.
func (w *Writer) Close() {
	if w == nil {
		return
	}
	close(w.ch)
	<-w.done
}
