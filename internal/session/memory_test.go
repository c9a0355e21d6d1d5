package session

import (
	"testing"
	"time"

	"github.com/hubenschmidt/univoice/internal/model"
)

func TestMemoryGetFullHistoryWindowsTranslations(t *testing.T) {
	m := NewMemory("sess-1")
	for i := 0; i < 5; i++ {
		m.AddTranslation(model.Translation{ID: string(rune('a' + i)), Timestamp: time.Now()})
	}

	h := m.GetFullHistory(2, 1)
	if h.Total != 5 {
		t.Fatalf("total = %d, want 5", h.Total)
	}
	if len(h.Translations) != 2 {
		t.Fatalf("window len = %d, want 2", len(h.Translations))
	}
	if h.Translations[0].ID != "b" {
		t.Fatalf("window[0].ID = %q, want %q", h.Translations[0].ID, "b")
	}
}

func TestMemoryGetFullHistoryDefaultsLimit(t *testing.T) {
	m := NewMemory("sess-1")
	m.AddTranslation(model.Translation{ID: "only"})

	h := m.GetFullHistory(0, 0)
	if len(h.Translations) != 1 {
		t.Fatalf("len = %d, want 1", len(h.Translations))
	}
}

func TestMemoryGetFullHistoryOffsetPastEndReturnsEmpty(t *testing.T) {
	m := NewMemory("sess-1")
	m.AddTranslation(model.Translation{ID: "only"})

	h := m.GetFullHistory(10, 50)
	if len(h.Translations) != 0 {
		t.Fatalf("len = %d, want 0", len(h.Translations))
	}
	if h.Total != 1 {
		t.Fatalf("total = %d, want 1", h.Total)
	}
}

func TestMemoryClearHistory(t *testing.T) {
	m := NewMemory("sess-1")
	m.AddTranslation(model.Translation{ID: "t"})
	m.AddSummary(model.Summary{ID: "s"})
	m.AddSentence(model.CombinedSentence{CombinedID: "c"})
	m.AddParagraph(model.Paragraph{ParagraphID: "p"})

	m.ClearHistory()

	h := m.GetFullHistory(100, 0)
	if h.Total != 0 || len(h.Summaries) != 0 || len(h.Sentences) != 0 || len(h.Paragraphs) != 0 {
		t.Fatalf("expected all history cleared, got %+v", h)
	}
}

func TestMemoryFullSourceTextJoinsSegments(t *testing.T) {
	m := NewMemory("sess-1")
	m.AddSegment(model.TranscriptSegment{Text: "hello"})
	m.AddSegment(model.TranscriptSegment{Text: "world"})

	if got := m.FullSourceText(); got != "hello world" {
		t.Fatalf("FullSourceText() = %q, want %q", got, "hello world")
	}
}
