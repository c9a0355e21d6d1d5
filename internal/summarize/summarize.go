// Package summarize implements the Summary Engine: cumulative word
// counting, progressive summary generation at configured thresholds, and
// the end-of-session final summary. Jobs drain through a single worker
// with a pacing delay between them, keeping summaries strictly ordered.
package summarize

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"
)

// charBasedLanguages lists source languages counted by character rather
// than by whitespace-separated token.
var charBasedLanguages = map[string]bool{"ja": true}

// Config holds the Summary Engine's tuning knobs.
type Config struct {
	Thresholds             []int
	CharLanguageMultiplier int
	SourceLanguage         string
	TargetLanguage         string
	PacingDelay            time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Thresholds:             []int{400, 800, 1600, 2400},
		CharLanguageMultiplier: 4,
		PacingDelay:            time.Second,
	}
}

func (c Config) multiplier() int {
	if charBasedLanguages[c.SourceLanguage] {
		if c.CharLanguageMultiplier > 0 {
			return c.CharLanguageMultiplier
		}
		return 4
	}
	return 1
}

// CountWords counts source text with a language-aware rule:
// whitespace-separated tokens for most languages, remaining characters
// (after stripping punctuation/whitespace) for character-based ones.
func CountWords(text, language string) int {
	if charBasedLanguages[language] {
		n := 0
		for _, r := range text {
			if unicode.IsSpace(r) || unicode.IsPunct(r) {
				continue
			}
			n++
		}
		return n
	}
	return len(strings.Fields(text))
}

// Summarizer performs the two LLM calls a summary job needs: producing
// the source-language summary, then translating it to the target
// language (identity when source equals target).
type Summarizer interface {
	Summarize(ctx context.Context, text string, first bool, sourceLanguage string) (string, error)
	Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error)
}

// ProgressiveFunc receives a fired threshold's bilingual summary.
type ProgressiveFunc func(sourceText, targetText string, wordCount, threshold int, start, end time.Time)

// FinalFunc receives the end-of-session summary.
type FinalFunc func(sourceText, targetText string, wordCount int, start, end time.Time)

// ErrorFunc receives a job failure; the threshold stays marked fired
// regardless (no retry).
type ErrorFunc func(threshold int, err error)

type job struct {
	base      int
	threshold int
	endTime   time.Time
}

// Engine is the Summary Engine: one per session.
type Engine struct {
	cfg        Config
	summarizer Summarizer

	onProgressive ProgressiveFunc
	onFinal       FinalFunc
	onError       ErrorFunc

	mu               sync.Mutex
	sessionStart     time.Time
	totalWordCount   int
	reachedThreshold map[int]bool
	cumulativeText   strings.Builder
	sinceLastText    strings.Builder
	lastSummary      string
	lastProcessedEnd time.Time
	pending          []job
	processing       bool
}

// NewEngine creates a Summary Engine for one session.
func NewEngine(cfg Config, summarizer Summarizer, onProgressive ProgressiveFunc, onFinal FinalFunc, onError ErrorFunc) *Engine {
	if cfg.PacingDelay <= 0 {
		cfg.PacingDelay = time.Second
	}
	if len(cfg.Thresholds) == 0 {
		cfg = DefaultConfig()
	}
	return &Engine{
		cfg:              cfg,
		summarizer:       summarizer,
		onProgressive:    onProgressive,
		onFinal:          onFinal,
		onError:          onError,
		reachedThreshold: make(map[int]bool),
	}
}

// Add appends a realtime translation's source text to the cumulative
// count, enqueuing a summary job for every newly-crossed threshold.
func (e *Engine) Add(sourceText string, at time.Time) {
	e.mu.Lock()
	if e.sessionStart.IsZero() {
		e.sessionStart = at
	}
	if e.cumulativeText.Len() > 0 {
		e.cumulativeText.WriteByte(' ')
	}
	e.cumulativeText.WriteString(sourceText)
	if e.sinceLastText.Len() > 0 {
		e.sinceLastText.WriteByte(' ')
	}
	e.sinceLastText.WriteString(sourceText)

	e.totalWordCount = CountWords(e.cumulativeText.String(), e.cfg.SourceLanguage)

	var newJobs []job
	mult := e.cfg.multiplier()
	for _, base := range e.cfg.Thresholds {
		tPrime := base * mult
		if e.totalWordCount >= tPrime && !e.reachedThreshold[tPrime] {
			e.reachedThreshold[tPrime] = true
			newJobs = append(newJobs, job{base: base, threshold: tPrime, endTime: at})
		}
	}
	e.pending = append(e.pending, newJobs...)
	needsWorker := !e.processing && len(newJobs) > 0
	if needsWorker {
		e.processing = true
	}
	e.mu.Unlock()

	if needsWorker {
		go e.drain()
	}
}

// drain processes queued jobs strictly sequentially, observing the
// configured pacing delay between them.
func (e *Engine) drain() {
	for {
		e.mu.Lock()
		if len(e.pending) == 0 {
			e.processing = false
			e.mu.Unlock()
			return
		}
		j := e.pending[0]
		e.pending = e.pending[1:]
		first := e.lastProcessedEnd.IsZero()
		start := e.lastProcessedEnd
		if start.IsZero() {
			start = e.sessionStart
		}
		text := e.sinceLastText.String()
		e.sinceLastText.Reset()
		prevSummary := e.lastSummary
		wordCount := e.totalWordCount
		e.mu.Unlock()

		e.runJob(j, first, prevSummary, text, wordCount, start)

		time.Sleep(e.cfg.PacingDelay)
	}
}

func (e *Engine) runJob(j job, first bool, prevSummary, textSinceLast string, wordCount int, start time.Time) {
	ctx := context.Background()
	input := textSinceLast
	if !first && prevSummary != "" {
		input = prevSummary + "\n\n" + textSinceLast
	}

	sourceSummary, err := e.summarizer.Summarize(ctx, input, first, e.cfg.SourceLanguage)
	if err != nil {
		if e.onError != nil {
			e.onError(j.base, err)
		}
		return
	}

	targetSummary := sourceSummary
	if e.cfg.TargetLanguage != "" && e.cfg.TargetLanguage != e.cfg.SourceLanguage {
		targetSummary, err = e.summarizer.Translate(ctx, sourceSummary, e.cfg.SourceLanguage, e.cfg.TargetLanguage)
		if err != nil {
			if e.onError != nil {
				e.onError(j.base, err)
			}
			return
		}
	}

	e.mu.Lock()
	e.lastSummary = sourceSummary
	e.lastProcessedEnd = j.endTime
	e.mu.Unlock()

	if e.onProgressive != nil {
		e.onProgressive(sourceSummary, targetSummary, wordCount, j.base, start, j.endTime)
	}
}

// FinalizeSession emits the end-of-session summary if any source text
// accumulated since the last processed threshold remains unsummarized.
func (e *Engine) FinalizeSession(now time.Time) {
	e.mu.Lock()
	if e.sinceLastText.Len() == 0 {
		e.mu.Unlock()
		return
	}
	start := e.lastProcessedEnd
	if start.IsZero() {
		start = e.sessionStart
	}
	full := e.cumulativeText.String()
	wordCount := e.totalWordCount
	e.sinceLastText.Reset()
	e.mu.Unlock()

	ctx := context.Background()
	sourceSummary, err := e.summarizer.Summarize(ctx, full, true, e.cfg.SourceLanguage)
	if err != nil {
		if e.onError != nil {
			e.onError(-1, err)
		}
		return
	}
	targetSummary := sourceSummary
	if e.cfg.TargetLanguage != "" && e.cfg.TargetLanguage != e.cfg.SourceLanguage {
		targetSummary, err = e.summarizer.Translate(ctx, sourceSummary, e.cfg.SourceLanguage, e.cfg.TargetLanguage)
		if err != nil {
			targetSummary = ""
		}
	}
	if e.onFinal != nil {
		e.onFinal(sourceSummary, targetSummary, wordCount, start, now)
	}
}

// WordCount returns the current cumulative source word count.
func (e *Engine) WordCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalWordCount
}
