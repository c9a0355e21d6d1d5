package summarize

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeSummarizer struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string, first bool, sourceLanguage string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return "summary:" + text, nil
}

func (f *fakeSummarizer) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error) {
	return "translated:" + text, nil
}

func waitForCond(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestCountWordsSpaceSeparated(t *testing.T) {
	if n := CountWords("hello there world", "en"); n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
}

func TestCountWordsCharacterBased(t *testing.T) {
	// "こんにちは世界" is 7 characters; the two punctuation marks must not count.
	if n := CountWords("こんにちは、世界。", "ja"); n != 7 {
		t.Fatalf("count = %d, want 7", n)
	}
}

func TestEngineFiresThresholdsInOrder(t *testing.T) {
	sum := &fakeSummarizer{}
	var mu sync.Mutex
	var fired []int
	cfg := Config{Thresholds: []int{2, 4}, SourceLanguage: "en", TargetLanguage: "fr", PacingDelay: time.Millisecond}
	e := NewEngine(cfg, sum, func(src, tgt string, wc, threshold int, start, end time.Time) {
		mu.Lock()
		fired = append(fired, threshold)
		mu.Unlock()
	}, nil, nil)

	now := time.Unix(0, 0)
	e.Add("one two", now)
	e.Add("three four", now.Add(time.Second))

	waitForCond(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fired) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if fired[0] != 2 || fired[1] != 4 {
		t.Fatalf("fired = %v, want [2 4]", fired)
	}
}

func TestEngineEachThresholdFiresOnce(t *testing.T) {
	sum := &fakeSummarizer{}
	var mu sync.Mutex
	count := 0
	cfg := Config{Thresholds: []int{2}, SourceLanguage: "en", PacingDelay: time.Millisecond}
	e := NewEngine(cfg, sum, func(src, tgt string, wc, threshold int, start, end time.Time) {
		mu.Lock()
		count++
		mu.Unlock()
	}, nil, nil)

	now := time.Unix(0, 0)
	e.Add("one two three", now)
	e.Add("four five six", now.Add(time.Second))

	waitForCond(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 1
	})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("threshold fired %d times, want exactly 1", count)
	}
}

func TestEngineCharacterLanguageMultiplier(t *testing.T) {
	sum := &fakeSummarizer{}
	var mu sync.Mutex
	var fired []int
	cfg := Config{Thresholds: []int{1}, CharLanguageMultiplier: 4, SourceLanguage: "ja", PacingDelay: time.Millisecond}
	e := NewEngine(cfg, sum, func(src, tgt string, wc, threshold int, start, end time.Time) {
		mu.Lock()
		fired = append(fired, threshold)
		mu.Unlock()
	}, nil, nil)

	now := time.Unix(0, 0)
	// 3 characters: below the effective threshold of 1*4
	e.Add("こんに", now)
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	if len(fired) != 0 {
		mu.Unlock()
		t.Fatalf("threshold fired at %d chars, want none below multiplier boundary", 3)
	}
	mu.Unlock()

	// 4th character crosses 1*4 exactly
	e.Add("ち", now.Add(time.Second))
	waitForCond(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fired) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if fired[0] != 1 {
		t.Fatalf("fired threshold = %d, want base threshold 1", fired[0])
	}
}

func TestEngineFinalizeSessionEmitsRemaining(t *testing.T) {
	sum := &fakeSummarizer{}
	var final bool
	cfg := Config{Thresholds: []int{1000}, SourceLanguage: "en", PacingDelay: time.Millisecond}
	e := NewEngine(cfg, sum, nil, func(src, tgt string, wc int, start, end time.Time) {
		final = true
	}, nil)

	e.Add("not enough to hit threshold", time.Unix(0, 0))
	e.FinalizeSession(time.Unix(10, 0))

	if !final {
		t.Fatal("expected FinalizeSession to emit the final summary")
	}
}

func TestEngineFinalizeSessionNoOpWhenNothingPending(t *testing.T) {
	sum := &fakeSummarizer{}
	called := false
	e := NewEngine(DefaultConfig(), sum, nil, func(string, string, int, time.Time, time.Time) {
		called = true
	}, nil)

	e.FinalizeSession(time.Now())
	if called {
		t.Fatal("should not emit final summary with no accumulated text")
	}
}
