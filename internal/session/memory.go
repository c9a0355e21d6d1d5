// Package session implements Session Memory: an in-memory
// accumulation of a session's final segments, translations, and
// summaries, plus an optional Postgres-backed persistence collaborator
// satisfying the external "session memory service" contract.
package session

import (
	"sync"

	"github.com/hubenschmidt/univoice/internal/model"
)

// History is a snapshot of a session's accumulated state, returned by
// getHistory.
type History struct {
	Translations []model.Translation
	Summaries    []model.Summary
	Sentences    []model.CombinedSentence
	Paragraphs   []model.Paragraph
	Total        int
}

// Memory accumulates one session's final artifacts in process memory.
// C8 is the sole owner of the mutable pipeline state; Memory is its
// storage collaborator, not an independent mutator.
type Memory struct {
	mu sync.Mutex

	sessionID    string
	segments     []model.TranscriptSegment
	translations []model.Translation
	summaries    []model.Summary
	sentences    []model.CombinedSentence
	paragraphs   []model.Paragraph
}

// NewMemory creates an empty Memory for sessionID.
func NewMemory(sessionID string) *Memory {
	return &Memory{sessionID: sessionID}
}

// AddSegment records a final transcript segment.
func (m *Memory) AddSegment(seg model.TranscriptSegment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments = append(m.segments, seg)
}

// AddTranslation records a translation, realtime or history-tier.
func (m *Memory) AddTranslation(tr model.Translation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.translations = append(m.translations, tr)
}

// AddSummary records a progressive or final summary.
func (m *Memory) AddSummary(s model.Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, s)
}

// AddSentence records a CombinedSentence awaiting or past history
// re-translation.
func (m *Memory) AddSentence(cs model.CombinedSentence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentences = append(m.sentences, cs)
}

// AddParagraph records a completed Paragraph.
func (m *Memory) AddParagraph(p model.Paragraph) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paragraphs = append(m.paragraphs, p)
}

// GetFullHistory returns a windowed view of the session's bilingual
// translation history, plus the full summary/sentence/paragraph lists,
// per the getHistory command's `{limit, offset}` contract.
func (m *Memory) GetFullHistory(limit, offset int) History {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	total := len(m.translations)
	window := windowSlice(m.translations, offset, limit)

	return History{
		Translations: window,
		Summaries:    append([]model.Summary(nil), m.summaries...),
		Sentences:    append([]model.CombinedSentence(nil), m.sentences...),
		Paragraphs:   append([]model.Paragraph(nil), m.paragraphs...),
		Total:        total,
	}
}

func windowSlice(all []model.Translation, offset, limit int) []model.Translation {
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]model.Translation, end-offset)
	copy(out, all[offset:end])
	return out
}

// ClearHistory discards all accumulated state for the session.
func (m *Memory) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments = nil
	m.translations = nil
	m.summaries = nil
	m.sentences = nil
	m.paragraphs = nil
}

// FullSourceText concatenates every final segment's text, used to build
// the vocabulary/final-report prompts.
func (m *Memory) FullSourceText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, s := range m.segments {
		total += len(s.Text) + 1
	}
	buf := make([]byte, 0, total)
	for i, s := range m.segments {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, s.Text...)
	}
	return string(buf)
}

// SummaryCount returns the number of summaries recorded so far.
func (m *Memory) SummaryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.summaries)
}
