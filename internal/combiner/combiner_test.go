package combiner

import (
	"testing"
	"time"

	"github.com/hubenschmidt/univoice/internal/model"
)

func seg(id, text string, t time.Time, startMs, endMs int64) model.TranscriptSegment {
	return model.TranscriptSegment{ID: id, Text: text, IsFinal: true, Timestamp: t, StartMs: startMs, EndMs: endMs}
}

func TestSentenceCombinerEmitsOnPunctuation(t *testing.T) {
	base := time.Unix(0, 0)
	var got []model.CombinedSentence
	c := NewSentenceCombiner(DefaultSentenceConfig(), func(cs model.CombinedSentence) { got = append(got, cs) })

	c.AddFinal(seg("1", "Life asks", base, 0, 500))
	c.AddFinal(seg("2", "questions.", base.Add(500*time.Millisecond), 500, 1000))

	if len(got) != 1 {
		t.Fatalf("got %d sentences, want 1", len(got))
	}
	if got[0].OriginalText != "Life asks questions." {
		t.Fatalf("text = %q", got[0].OriginalText)
	}
	if got[0].SegmentCount != 2 {
		t.Fatalf("segment count = %d, want 2", got[0].SegmentCount)
	}
}

func TestSentenceCombinerPunctuationFiresOnFirstSegment(t *testing.T) {
	// rule 1 is exempt from the MinSegments gate
	base := time.Unix(0, 0)
	var got []model.CombinedSentence
	cfg := DefaultSentenceConfig()
	cfg.MinSegments = 2
	c := NewSentenceCombiner(cfg, func(cs model.CombinedSentence) { got = append(got, cs) })

	c.AddFinal(seg("1", "Hello.", base, 0, 300))
	if len(got) != 1 {
		t.Fatalf("punctuation on first segment should emit, got %d", len(got))
	}
}

func TestSentenceCombinerMinSegmentsGatesTimeout(t *testing.T) {
	base := time.Unix(0, 0)
	var got []model.CombinedSentence
	cfg := DefaultSentenceConfig()
	cfg.MinSegments = 2
	cfg.TimeoutMs = 1000
	c := NewSentenceCombiner(cfg, func(cs model.CombinedSentence) { got = append(got, cs) })

	c.AddFinal(seg("1", "hello", base, 0, 300))
	c.Tick(base.Add(5 * time.Second))
	if len(got) != 0 {
		t.Fatalf("timeout rule fired below MinSegments: %d", len(got))
	}
}

func TestSentenceCombinerMaxSegmentsForcesFlush(t *testing.T) {
	base := time.Unix(0, 0)
	var got []model.CombinedSentence
	cfg := DefaultSentenceConfig()
	cfg.MaxSegments = 3
	c := NewSentenceCombiner(cfg, func(cs model.CombinedSentence) { got = append(got, cs) })

	c.AddFinal(seg("1", "one", base, 0, 100))
	c.AddFinal(seg("2", "two", base.Add(100*time.Millisecond), 100, 200))
	c.AddFinal(seg("3", "three", base.Add(200*time.Millisecond), 200, 300))

	if len(got) != 1 {
		t.Fatalf("got %d sentences, want 1 forced by MaxSegments", len(got))
	}
}

func TestSentenceCombinerTickTimesOut(t *testing.T) {
	base := time.Unix(0, 0)
	var got []model.CombinedSentence
	cfg := DefaultSentenceConfig()
	cfg.TimeoutMs = 1000
	c := NewSentenceCombiner(cfg, func(cs model.CombinedSentence) { got = append(got, cs) })

	c.AddFinal(seg("1", "one", base, 0, 100))
	c.AddFinal(seg("2", "two", base.Add(50*time.Millisecond), 100, 200))
	c.Tick(base.Add(50 * time.Millisecond))
	if len(got) != 0 {
		t.Fatal("flushed before timeout elapsed")
	}
	c.Tick(base.Add(1200 * time.Millisecond))
	if len(got) != 1 {
		t.Fatalf("got %d sentences after timeout tick, want 1", len(got))
	}
}

func TestSentenceCombinerFlush(t *testing.T) {
	base := time.Unix(0, 0)
	var got []model.CombinedSentence
	c := NewSentenceCombiner(DefaultSentenceConfig(), func(cs model.CombinedSentence) { got = append(got, cs) })

	c.AddFinal(seg("1", "partial", base, 0, 100))
	c.Flush()

	if len(got) != 1 {
		t.Fatalf("got %d sentences after Flush, want 1", len(got))
	}
}

func TestParagraphBuilderClosesOnMaxDuration(t *testing.T) {
	base := time.Unix(0, 0)
	var got []model.Paragraph
	cfg := DefaultParagraphConfig()
	cfg.MaxDuration = 2 * time.Second
	cfg.MinDuration = time.Second
	cfg.SilenceThreshold = time.Hour
	b := NewParagraphBuilder(cfg, func(p model.Paragraph) { got = append(got, p) })

	b.AddFinal(seg("1", "hello there", base, 0, 500))
	b.AddFinal(seg("2", "world", base.Add(2500*time.Millisecond), 2500, 3000))

	if len(got) != 1 {
		t.Fatalf("got %d paragraphs, want 1 closed by MaxDuration", len(got))
	}
}

func TestParagraphBuilderClosesOnSilenceGapAfterMinDuration(t *testing.T) {
	base := time.Unix(0, 0)
	var got []model.Paragraph
	cfg := DefaultParagraphConfig()
	cfg.MinDuration = time.Second
	cfg.MaxDuration = time.Hour
	cfg.SilenceThreshold = 500 * time.Millisecond
	b := NewParagraphBuilder(cfg, func(p model.Paragraph) { got = append(got, p) })

	b.AddFinal(seg("1", "hello there", base, 0, 500))
	b.AddFinal(seg("2", "world", base.Add(2*time.Second), 2000, 2500))

	if len(got) != 1 {
		t.Fatalf("got %d paragraphs, want 1 closed by silence gap", len(got))
	}
	if len(got[0].SegmentIDs) != 1 {
		t.Fatalf("first paragraph should only contain seg 1, got %v", got[0].SegmentIDs)
	}
}

func TestParagraphBuilderFlush(t *testing.T) {
	base := time.Unix(0, 0)
	var got []model.Paragraph
	b := NewParagraphBuilder(DefaultParagraphConfig(), func(p model.Paragraph) { got = append(got, p) })

	b.AddFinal(seg("1", "hello", base, 0, 100))
	b.Flush(base.Add(time.Second))

	if len(got) != 1 {
		t.Fatalf("got %d paragraphs after Flush, want 1", len(got))
	}
	if got[0].Status != model.ParagraphCompleted {
		t.Fatalf("status = %v, want completed", got[0].Status)
	}
}

func TestCleanStripsFillerWordsAndDuplicates(t *testing.T) {
	in := "um so the the system is is like really fast uh yeah"
	out := Clean(in)
	if out == in {
		t.Fatal("expected cleaning to change the text")
	}
	for _, bad := range []string{"um", "uh", "like"} {
		if containsWord(out, bad) {
			t.Fatalf("cleaned text still contains filler %q: %q", bad, out)
		}
	}
}

func TestCleanCapitalizesSentences(t *testing.T) {
	out := Clean("hello there. this is a test")
	if out[0] != 'H' {
		t.Fatalf("expected capitalized first letter, got %q", out)
	}
}

func containsWord(s, word string) bool {
	for _, tok := range splitWords(s) {
		if tok == word {
			return true
		}
	}
	return false
}

func splitWords(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ' ' {
			if cur != "" {
				out = append(out, toLower(cur))
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, toLower(cur))
	}
	return out
}

func toLower(s string) string {
	b := []rune(s)
	for i, r := range b {
		if r >= 'A' && r <= 'Z' {
			b[i] = r + 32
		}
	}
	return string(b)
}
