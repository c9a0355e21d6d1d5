// Package orchestrator implements the Pipeline Orchestrator: the
// owner of the session lifecycle and the only mutator of session state.
// It wires the ASR adapter, coalescer, combiners, translation queue,
// summary engine, and session memory behind one validated event stream.
// The long-lived session object with a buffered event channel and an
// emit helper is the same shape as a managed conversation stream; here
// it fans one transcript stream out to the full
// coalesce/combine/translate/summarize graph. Sessions end through
// StopListening; Pipeline has no separate Close.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hubenschmidt/univoice/internal/asr"
	"github.com/hubenschmidt/univoice/internal/coalescer"
	"github.com/hubenschmidt/univoice/internal/combiner"
	"github.com/hubenschmidt/univoice/internal/events"
	"github.com/hubenschmidt/univoice/internal/metrics"
	"github.com/hubenschmidt/univoice/internal/model"
	"github.com/hubenschmidt/univoice/internal/session"
	"github.com/hubenschmidt/univoice/internal/summarize"
	"github.com/hubenschmidt/univoice/internal/translate"
	"github.com/hubenschmidt/univoice/internal/vocabulary"
)

// Recognizer is the subset of the ASR adapter the orchestrator drives.
type Recognizer interface {
	Connect(ctx context.Context, sourceLanguage string) error
	SendAudio(frame []byte)
	Events() <-chan asr.Event
	Disconnect()
	IsConnected() bool
}

// RecognizerFactory builds a fresh recognizer connection per session;
// the adapter is single-use by design.
type RecognizerFactory func() Recognizer

// Config holds the orchestrator's wiring and tuning knobs.
type Config struct {
	// BypassCoalescer selects the direct segment-emission path instead
	// of the debouncing coalescer. Exactly one of the two paths runs.
	BypassCoalescer bool

	Coalescer coalescer.Config
	Sentence  combiner.SentenceConfig
	Paragraph combiner.ParagraphConfig
	Queue     translate.Config
	Summary   summarize.Config

	// TickInterval drives the combiners' timeout rules.
	TickInterval time.Duration
	// StopGrace bounds how long stopListening waits for in-flight
	// translations before abandoning them.
	StopGrace time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns the documented defaults for every subsystem.
func DefaultConfig() Config {
	return Config{
		Coalescer:    coalescer.DefaultConfig(),
		Sentence:     combiner.DefaultSentenceConfig(),
		Paragraph:    combiner.DefaultParagraphConfig(),
		Queue:        translate.DefaultConfig(),
		Summary:      summarize.DefaultConfig(),
		TickInterval: 500 * time.Millisecond,
		StopGrace:    3 * time.Second,
	}
}

// Pipeline owns one session at a time and survives across sessions so
// history remains queryable after stopListening.
type Pipeline struct {
	cfg           Config
	log           *slog.Logger
	newRecognizer RecognizerFactory
	translator    translate.Handler
	summarizer    summarize.Summarizer
	vocab         *vocabulary.Generator
	writer        *session.Writer

	events chan events.Event

	mu             sync.Mutex
	state          events.PipelineState
	correlationID  string
	sourceLanguage string
	targetLanguage string
	startedAt      time.Time

	rec        Recognizer
	queue      *translate.Queue
	segments   *coalescer.Manager
	sentences  *combiner.SentenceCombiner
	paragraphs *combiner.ParagraphBuilder
	summary    *summarize.Engine
	memory     *session.Memory
	partials   map[string]*strings.Builder
	vocabCount int

	stopTick chan struct{}
	wg       sync.WaitGroup
}

// New creates an idle Pipeline. writer may be nil when persistence is
// not configured.
func New(cfg Config, newRecognizer RecognizerFactory, translator translate.Handler, summarizer summarize.Summarizer, vocab *vocabulary.Generator, writer *session.Writer) *Pipeline {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 500 * time.Millisecond
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 3 * time.Second
	}
	return &Pipeline{
		cfg:           cfg,
		log:           log,
		newRecognizer: newRecognizer,
		translator:    translator,
		summarizer:    summarizer,
		vocab:         vocab,
		writer:        writer,
		events:        make(chan events.Event, 1024),
		state:         events.StateIdle,
		memory:        session.NewMemory(""),
		partials:      make(map[string]*strings.Builder),
	}
}

// Events returns the pipeline's outbound validated event stream.
func (p *Pipeline) Events() <-chan events.Event { return p.events }

// State returns the current lifecycle state.
func (p *Pipeline) State() events.PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// StartListening transitions idle→starting→listening, connecting the
// recognizer and wiring a fresh session graph. A connect failure
// transitions to error and emits DEEPGRAM_CONNECTION_FAILED.
func (p *Pipeline) StartListening(ctx context.Context, sourceLanguage, targetLanguage, correlationID string) error {
	p.mu.Lock()
	if p.state != events.StateIdle {
		p.mu.Unlock()
		return fmt.Errorf("%w: startListening in %s", ErrInvalidState, p.state)
	}
	p.state = events.StateStarting
	p.correlationID = correlationID
	p.sourceLanguage = sourceLanguage
	p.targetLanguage = targetLanguage
	p.startedAt = time.Now()
	p.mu.Unlock()

	p.emitStatus(correlationID, events.StateStarting, events.StateIdle)

	rec := p.newRecognizer()
	if err := rec.Connect(ctx, sourceLanguage); err != nil {
		p.mu.Lock()
		p.state = events.StateError
		p.mu.Unlock()
		p.emitError(correlationID, events.CodeDeepgramConnectionFailed, err.Error(), false)
		p.emitStatus(correlationID, events.StateError, events.StateStarting)
		metrics.Errors.WithLabelValues("asr", events.CodeDeepgramConnectionFailed).Inc()
		return err
	}

	p.mu.Lock()
	p.rec = rec
	p.memory = session.NewMemory(correlationID)
	p.partials = make(map[string]*strings.Builder)
	p.wireSessionLocked(correlationID, sourceLanguage, targetLanguage)
	p.stopTick = make(chan struct{})
	p.state = events.StateListening
	p.mu.Unlock()

	p.emitStatus(correlationID, events.StateListening, events.StateStarting)

	p.wg.Add(2)
	go p.consumeASR(rec, correlationID)
	go p.tickLoop(p.stopTick)

	metrics.SessionsActive.Inc()
	metrics.SessionsTotal.Inc()
	p.writer.StartSession(session.Descriptor{
		ID:             correlationID,
		SourceLanguage: sourceLanguage,
		TargetLanguage: targetLanguage,
		StartedAt:      time.Now(),
	})
	p.log.Info("session started", "correlation_id", correlationID, "source", sourceLanguage, "target", targetLanguage)
	return nil
}

// wireSessionLocked constructs the per-session components. Their
// callbacks close over the session's correlation id and languages, so
// late async completions still tag the session that produced them.
// Caller must hold p.mu.
func (p *Pipeline) wireSessionLocked(correlationID, sourceLanguage, targetLanguage string) {
	mem := p.memory

	p.queue = translate.New(p.cfg.Queue, p.translator,
		func(req translate.Request, delta string) { p.onTranslatePartial(correlationID, req, delta) },
		func(req translate.Request, text string) { p.onTranslateComplete(correlationID, req, text) },
		func(req translate.Request, err error) { p.onTranslateError(correlationID, req, err) },
	)

	if !p.cfg.BypassCoalescer {
		p.segments = coalescer.NewManager(p.cfg.Coalescer, nil, func(cs model.CoalescedSegment) {
			status := events.SegmentProcessing
			if cs.IsFinal {
				status = events.SegmentCompleted
			}
			p.emitEvent(events.NewSegmentEvent(correlationID, events.SegmentData{
				SegmentID:   cs.SegmentKey,
				Text:        cs.Text,
				Translation: cs.Translation,
				Status:      status,
				Metadata:    map[string]string{"holdMs": strconv.FormatInt(cs.HoldMs, 10)},
			}))
		})
	} else {
		p.segments = nil
	}

	// the combiner callbacks run while p.mu is held (AddFinal/Tick are
	// called under it), so they capture the queue directly instead of
	// re-acquiring the lock
	queue := p.queue

	p.sentences = combiner.NewSentenceCombiner(p.cfg.Sentence, func(cs model.CombinedSentence) {
		mem.AddSentence(cs)
		p.emitEvent(events.NewCombinedSentenceEvent(correlationID, events.CombinedSentenceData{
			CombinedID:   cs.CombinedID,
			SegmentIDs:   cs.SegmentIDs,
			OriginalText: cs.OriginalText,
			StartMs:      cs.StartMs,
			EndMs:        cs.EndMs,
			SegmentCount: cs.SegmentCount,
		}))
		p.enqueueHistory(queue, "history_"+cs.CombinedID, cs.CombinedID, cs.OriginalText, sourceLanguage, targetLanguage, false)
	})

	p.paragraphs = combiner.NewParagraphBuilder(p.cfg.Paragraph, func(par model.Paragraph) {
		mem.AddParagraph(par)
		p.emitEvent(events.NewParagraphCompleteEvent(correlationID, events.ParagraphCompleteData{
			ParagraphID: par.ParagraphID,
			RawText:     par.RawText,
			CleanedText: par.CleanedText,
			StartTime:   par.StartTime.UnixMilli(),
			EndTime:     par.EndTime.UnixMilli(),
			SegmentIDs:  par.SegmentIDs,
		}))
		p.enqueueHistory(queue, "paragraph_"+par.ParagraphID, par.ParagraphID, par.RawText, sourceLanguage, targetLanguage, true)
	})

	sumCfg := p.cfg.Summary
	sumCfg.SourceLanguage = sourceLanguage
	sumCfg.TargetLanguage = targetLanguage
	p.summary = summarize.NewEngine(sumCfg, p.summarizer,
		func(sourceText, targetText string, wordCount, threshold int, start, end time.Time) {
			mem.AddSummary(model.Summary{
				ID:         uuid.NewString(),
				SourceText: sourceText,
				TargetText: targetText,
				WordCount:  wordCount,
				Threshold:  threshold,
				StartTime:  start,
				EndTime:    end,
			})
			p.writer.RecordSummary(correlationID, sourceText, targetText, wordCount, threshold, false, start, end)
			metrics.SummaryThresholdsFired.Inc()
			metrics.SummaryWordCount.Set(float64(wordCount))
			p.emitEvent(events.NewProgressiveSummaryEvent(correlationID, events.ProgressiveSummaryData{
				SourceText:     sourceText,
				TargetText:     targetText,
				SourceLanguage: sourceLanguage,
				TargetLanguage: targetLanguage,
				WordCount:      wordCount,
				Threshold:      threshold,
				StartTime:      start.UnixMilli(),
				EndTime:        end.UnixMilli(),
			}))
		},
		func(sourceText, targetText string, wordCount int, start, end time.Time) {
			mem.AddSummary(model.Summary{
				ID:         uuid.NewString(),
				SourceText: sourceText,
				TargetText: targetText,
				WordCount:  wordCount,
				StartTime:  start,
				EndTime:    end,
				IsFinal:    true,
			})
			p.writer.RecordSummary(correlationID, sourceText, targetText, wordCount, 0, true, start, end)
			p.emitEvent(events.NewSummaryEvent(correlationID, events.SummaryData{
				SourceText:     sourceText,
				TargetText:     targetText,
				SourceLanguage: sourceLanguage,
				TargetLanguage: targetLanguage,
				WordCount:      wordCount,
				StartTime:      start.UnixMilli(),
				EndTime:        end.UnixMilli(),
				IsFinal:        true,
			}))
		},
		func(threshold int, err error) {
			p.log.Warn("progressive summary failed", "threshold", threshold, "error", err)
			metrics.Errors.WithLabelValues("summary", events.CodeProgressiveSummaryGenerationError).Inc()
			p.emitError(correlationID, events.CodeProgressiveSummaryGenerationError, err.Error(), true)
		},
	)
}

// SendAudio forwards one raw PCM frame to the recognizer; frames are
// dropped while no session is listening.
func (p *Pipeline) SendAudio(frame []byte) {
	p.mu.Lock()
	rec := p.rec
	listening := p.state == events.StateListening
	p.mu.Unlock()
	if listening && rec != nil {
		rec.SendAudio(frame)
	}
}

// consumeASR drains the recognizer's event channel for one session.
func (p *Pipeline) consumeASR(rec Recognizer, correlationID string) {
	defer p.wg.Done()
	for ev := range rec.Events() {
		switch ev.Kind {
		case asr.KindTranscript:
			p.handleTranscript(correlationID, ev.Segment)
		case asr.KindUtteranceEnd:
			p.tickCombiners(time.Now())
		case asr.KindError:
			p.handleASRError(correlationID, ev)
		case asr.KindConnected:
			p.log.Info("recognizer connected", "correlation_id", correlationID)
		case asr.KindDisconnected:
			p.log.Info("recognizer disconnected", "correlation_id", correlationID,
				"close_code", ev.CloseCode, "close_class", ev.CloseClass)
		case asr.KindMetadata:
			p.log.Debug("recognizer metadata", "correlation_id", correlationID)
		}
	}
}

func (p *Pipeline) handleASRError(correlationID string, ev asr.Event) {
	if ev.Recoverable {
		code := events.CodeParseError
		if ev.CloseCode != 0 {
			code = events.CodeDeepgramConnectionFailed
		}
		metrics.Errors.WithLabelValues("asr", code).Inc()
		p.emitError(correlationID, code, ev.Err.Error(), true)
		return
	}

	p.mu.Lock()
	stopping := p.state == events.StateStopping || p.state == events.StateIdle
	prev := p.state
	if !stopping {
		p.state = events.StateError
	}
	p.mu.Unlock()
	if stopping {
		return
	}
	metrics.Errors.WithLabelValues("asr", events.CodeDeepgramConnectionFailed).Inc()
	p.emitError(correlationID, events.CodeDeepgramConnectionFailed, ev.Err.Error(), false)
	p.emitStatus(correlationID, events.StateError, prev)
}

// handleTranscript runs for every recognizer result: the asr event is
// always emitted; finals additionally feed memory, both combiners, and
// the realtime translation tier.
func (p *Pipeline) handleTranscript(correlationID string, seg model.TranscriptSegment) {
	p.emitEvent(events.NewASREvent(correlationID, events.ASRData{
		Text:       seg.Text,
		Confidence: seg.Confidence,
		IsFinal:    seg.IsFinal,
		Language:   seg.Language,
		SegmentID:  seg.ID,
	}))

	p.mu.Lock()
	segments := p.segments
	queue := p.queue
	src, tgt := p.sourceLanguage, p.targetLanguage
	if seg.IsFinal {
		p.memory.AddSegment(seg)
		p.sentences.AddFinal(seg)
		p.paragraphs.AddFinal(seg)
	}
	p.mu.Unlock()

	if segments != nil {
		segments.Update(seg.SegmentKey(), coalescer.Update{
			Text:       seg.Text,
			Confidence: seg.Confidence,
			IsFinal:    seg.IsFinal,
		})
	} else if seg.IsFinal {
		// bypass path: finals go straight out without debouncing
		p.emitEvent(events.NewSegmentEvent(correlationID, events.SegmentData{
			SegmentID: seg.ID,
			Text:      seg.Text,
			Status:    events.SegmentCompleted,
		}))
	}

	if !seg.IsFinal || queue == nil {
		return
	}

	err := queue.Enqueue(translate.Request{
		SegmentID:      seg.ID,
		OriginalText:   seg.Text,
		SourceLanguage: src,
		TargetLanguage: tgt,
		Timestamp:      time.Now(),
		Priority:       model.PriorityNormal,
		Tier:           model.TierRealtime,
	})
	switch err {
	case nil:
	case translate.ErrQueueFull:
		metrics.TranslateQueueRejected.Inc()
		p.emitError(correlationID, events.CodeTranslationQueueError, "translation queue full, segment dropped", true)
	case translate.ErrDuplicateSegment:
		p.log.Warn("duplicate translation request dropped", "segment_id", seg.ID)
	}
	p.publishQueueGauges()
}

// enqueueHistory queues a low-priority high-quality re-translation for
// a combined sentence or paragraph. Failure here is non-fatal. It must
// not touch p.mu: the combiner callbacks invoke it with the lock held.
func (p *Pipeline) enqueueHistory(queue *translate.Queue, segmentID, targetID, text, src, tgt string, isParagraph bool) {
	if queue == nil {
		return
	}
	err := queue.Enqueue(translate.Request{
		SegmentID:      segmentID,
		OriginalText:   text,
		SourceLanguage: src,
		TargetLanguage: tgt,
		Timestamp:      time.Now(),
		Priority:       model.PriorityLow,
		Tier:           model.TierHistory,
		TargetID:       targetID,
		IsParagraph:    isParagraph,
	})
	if err != nil {
		p.log.Warn("history translation enqueue failed", "target_id", targetID, "error", err)
		return
	}
	st := queue.Stats()
	metrics.TranslateQueueDepth.Set(float64(st.QueuedCount))
	metrics.TranslateQueueActive.Set(float64(st.ActiveCount))
}

func (p *Pipeline) onTranslatePartial(correlationID string, req translate.Request, delta string) {
	if req.Tier != model.TierRealtime {
		return
	}
	p.mu.Lock()
	b := p.partials[req.SegmentID]
	if b == nil {
		b = &strings.Builder{}
		p.partials[req.SegmentID] = b
	}
	b.WriteString(delta)
	accumulated := b.String()
	p.mu.Unlock()

	p.emitEvent(events.NewTranslationEvent(correlationID, events.TranslationData{
		OriginalText:   req.OriginalText,
		TranslatedText: accumulated,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		IsFinal:        false,
		SegmentID:      req.SegmentID,
	}))
}

func (p *Pipeline) onTranslateComplete(correlationID string, req translate.Request, text string) {
	highQuality := req.Tier == model.TierHistory

	p.mu.Lock()
	delete(p.partials, req.SegmentID)
	mem := p.memory
	engine := p.summary
	p.mu.Unlock()

	tr := model.Translation{
		ID:             uuid.NewString(),
		Original:       req.OriginalText,
		Translated:     text,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Confidence:     1,
		IsFinal:        true,
		Timestamp:      time.Now(),
		Tier:           req.Tier,
		SegmentID:      req.SegmentID,
		IsHighQuality:  highQuality,
		TargetID:       req.TargetID,
		IsParagraph:    req.IsParagraph,
	}
	mem.AddTranslation(tr)
	p.writer.RecordSentence(correlationID, req.SegmentID, req.OriginalText, text, req.Tier.String(), highQuality)

	p.emitEvent(events.NewTranslationEvent(correlationID, events.TranslationData{
		OriginalText:   req.OriginalText,
		TranslatedText: text,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Confidence:     1,
		IsFinal:        true,
		SegmentID:      req.SegmentID,
		IsHighQuality:  highQuality,
		TargetID:       req.TargetID,
		IsParagraph:    req.IsParagraph,
	}))

	if req.Tier == model.TierRealtime && engine != nil {
		engine.Add(req.OriginalText, time.Now())
	}
	p.publishQueueGauges()
}

func (p *Pipeline) onTranslateError(correlationID string, req translate.Request, err error) {
	p.mu.Lock()
	delete(p.partials, req.SegmentID)
	p.mu.Unlock()

	if req.Tier == model.TierHistory {
		// history-tier failure is swallowed beyond a warning
		p.log.Warn("history translation failed", "target_id", req.TargetID, "error", err)
		return
	}
	metrics.Errors.WithLabelValues("translate", events.CodeTranslationFailed).Inc()
	p.emitError(correlationID, events.CodeTranslationFailed,
		fmt.Sprintf("segment %s: %v", req.SegmentID, err), false)
	p.publishQueueGauges()
}

// tickLoop periodically evaluates the combiners' elapsed-time rules.
func (p *Pipeline) tickLoop(stop chan struct{}) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			p.tickCombiners(now)
		}
	}
}

func (p *Pipeline) tickCombiners(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sentences != nil {
		p.sentences.Tick(now)
	}
	if p.paragraphs != nil {
		p.paragraphs.Tick(now)
	}
}

// StopListening transitions an active session through stopping back to
// idle: flush the aggregators, wait (bounded) for in-flight
// translations, disconnect the recognizer, and produce the final
// summary.
func (p *Pipeline) StopListening(correlationID string) error {
	p.mu.Lock()
	if p.state != events.StateListening && p.state != events.StateStarting && p.state != events.StateError {
		p.mu.Unlock()
		return fmt.Errorf("%w: stopListening in %s", ErrInvalidState, p.state)
	}
	prev := p.state
	p.state = events.StateStopping
	rec := p.rec
	queue := p.queue
	segments := p.segments
	engine := p.summary
	stopTick := p.stopTick
	p.stopTick = nil
	p.mu.Unlock()

	p.emitStatus(correlationID, events.StateStopping, prev)

	if stopTick != nil {
		close(stopTick)
	}

	now := time.Now()
	p.mu.Lock()
	if p.sentences != nil {
		p.sentences.Flush()
	}
	if p.paragraphs != nil {
		p.paragraphs.Flush(now)
	}
	p.mu.Unlock()

	if segments != nil {
		segments.FlushAll()
	}

	if queue != nil {
		p.drainQueue(queue)
	}

	if rec != nil {
		rec.Disconnect()
	}
	p.wg.Wait()

	if segments != nil {
		segments.Close()
	}

	if engine != nil {
		engine.FinalizeSession(time.Now())
	}

	p.writer.EndSession(correlationID, time.Now())

	p.mu.Lock()
	p.state = events.StateIdle
	p.rec = nil
	p.queue = nil
	p.segments = nil
	p.mu.Unlock()

	p.emitStatus(correlationID, events.StateIdle, events.StateStopping)
	metrics.SessionsActive.Dec()
	p.log.Info("session stopped", "correlation_id", correlationID)
	return nil
}

// drainQueue waits up to StopGrace for in-flight and queued items to
// finish; anything still pending afterwards is abandoned.
func (p *Pipeline) drainQueue(queue *translate.Queue) {
	deadline := time.Now().Add(p.cfg.StopGrace)
	for time.Now().Before(deadline) {
		st := queue.Stats()
		if st.ActiveCount == 0 && st.QueuedCount == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	st := queue.Stats()
	p.log.Warn("abandoning in-flight translations on stop",
		"active", st.ActiveCount, "queued", st.QueuedCount)
}

// History returns a windowed snapshot of the session's accumulated
// state, per the getHistory command.
func (p *Pipeline) History(limit, offset int) session.History {
	p.mu.Lock()
	mem := p.memory
	p.mu.Unlock()
	return mem.GetFullHistory(limit, offset)
}

// ClearHistory discards all accumulated session state.
func (p *Pipeline) ClearHistory() {
	p.mu.Lock()
	mem := p.memory
	p.vocabCount = 0
	p.mu.Unlock()
	mem.ClearHistory()
}

// GenerateVocabulary extracts key terms from the session's source text
// and emits a vocabulary event.
func (p *Pipeline) GenerateVocabulary(ctx context.Context, correlationID string) error {
	p.mu.Lock()
	mem := p.memory
	p.mu.Unlock()

	text := mem.FullSourceText()
	if strings.TrimSpace(text) == "" {
		return ErrNoSession
	}

	items, err := p.vocab.Extract(ctx, text)
	if err != nil {
		p.emitError(correlationID, "VOCABULARY_GENERATION_FAILED", err.Error(), true)
		return err
	}

	data := events.VocabularyData{TotalTerms: len(items), Items: make([]events.VocabularyItem, len(items))}
	for i, it := range items {
		data.Items[i] = events.VocabularyItem{Term: it.Term, Definition: it.Definition, Context: it.Context}
	}

	p.mu.Lock()
	p.vocabCount = len(items)
	p.mu.Unlock()

	p.emitEvent(events.NewVocabularyEvent(correlationID, data))
	return nil
}

// GenerateFinalReport produces the Markdown end-of-session report and
// emits a finalReport event.
func (p *Pipeline) GenerateFinalReport(ctx context.Context, correlationID string) error {
	p.mu.Lock()
	mem := p.memory
	src := p.sourceLanguage
	vocabCount := p.vocabCount
	p.mu.Unlock()

	text := mem.FullSourceText()
	if strings.TrimSpace(text) == "" {
		return ErrNoSession
	}
	hist := mem.GetFullHistory(0, 0)

	report, err := p.vocab.Report(ctx, text, hist.Summaries)
	if err != nil {
		p.emitError(correlationID, "FINAL_REPORT_GENERATION_FAILED", err.Error(), true)
		return err
	}

	p.emitEvent(events.NewFinalReportEvent(correlationID, events.FinalReportData{
		Report:          report,
		TotalWordCount:  summarize.CountWords(text, src),
		SummaryCount:    len(hist.Summaries),
		VocabularyCount: vocabCount,
	}))
	return nil
}

// TranslateParagraph re-translates one paragraph on user demand at
// high priority, falling back to a direct translator call when no
// session queue is live.
func (p *Pipeline) TranslateParagraph(params events.TranslateParagraphParams) error {
	req := translate.Request{
		SegmentID:      "paragraph_" + params.ParagraphID,
		OriginalText:   params.SourceText,
		SourceLanguage: params.SourceLanguage,
		TargetLanguage: params.TargetLanguage,
		Timestamp:      time.Now(),
		Priority:       model.PriorityHigh,
		Tier:           model.TierHistory,
		TargetID:       params.ParagraphID,
		IsParagraph:    true,
	}

	p.mu.Lock()
	queue := p.queue
	p.mu.Unlock()

	if queue != nil {
		return queue.Enqueue(req)
	}

	correlationID := params.CorrelationID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Queue.RequestTimeout)
		defer cancel()
		text, err := p.translator.Translate(ctx, req, nil)
		if err != nil {
			p.log.Warn("paragraph translation failed", "paragraph_id", params.ParagraphID, "error", err)
			return
		}
		p.onTranslateComplete(correlationID, req, text)
	}()
	return nil
}

// --- emission helpers ---

// emitEvent validates and delivers an event without blocking; the
// channel buffer is the observer's back-pressure allowance.
func (p *Pipeline) emitEvent(ev events.Event, buildErr error) {
	if buildErr != nil {
		p.log.Error("event construction failed", "error", buildErr)
		return
	}
	if err := events.Validate(ev); err != nil {
		p.log.Error("invalid event rejected at boundary", "type", ev.Type, "error", err)
		p.emitError(ev.CorrelationID, events.CodeInvalidEvent, err.Error(), false)
		return
	}
	select {
	case p.events <- ev:
	default:
		p.log.Warn("event channel full, dropping", "type", ev.Type)
	}
}

func (p *Pipeline) emitError(correlationID, code, message string, recoverable bool) {
	ev, err := events.NewErrorEvent(correlationID, events.ErrorData{
		Code:        code,
		Message:     message,
		Recoverable: recoverable,
	})
	if err != nil {
		p.log.Error("error event construction failed", "error", err)
		return
	}
	select {
	case p.events <- ev:
	default:
		p.log.Warn("event channel full, dropping error event", "code", code)
	}
}

func (p *Pipeline) emitStatus(correlationID string, state, previous events.PipelineState) {
	p.mu.Lock()
	uptime := int64(0)
	if !p.startedAt.IsZero() {
		uptime = time.Since(p.startedAt).Milliseconds()
	}
	p.mu.Unlock()

	p.emitEvent(events.NewStatusEvent(correlationID, events.StatusData{
		State:         state,
		PreviousState: previous,
		UptimeMs:      uptime,
	}))
}

func (p *Pipeline) publishQueueGauges() {
	p.mu.Lock()
	queue := p.queue
	p.mu.Unlock()
	if queue == nil {
		return
	}
	st := queue.Stats()
	metrics.TranslateQueueDepth.Set(float64(st.QueuedCount))
	metrics.TranslateQueueActive.Set(float64(st.ActiveCount))
}
