// Package translate implements the bounded-concurrency, priority-ordered
// translation queue and the streaming translator it dispatches to. Each
// completion (or failure) frees a slot and pulls the next head item, so
// at most maxConcurrency requests are ever in flight.
package translate

import (
	"context"
	"sync"
	"time"

	"github.com/hubenschmidt/univoice/internal/model"
)

// Config holds the Translation Queue's tuning knobs.
type Config struct {
	MaxConcurrency   int
	MaxQueueSize     int
	RequestTimeout   time.Duration
	MaxRetries       int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 3,
		MaxQueueSize:   100,
		RequestTimeout: 30 * time.Second,
		MaxRetries:     1,
	}
}

// Request is one queued translation item.
type Request struct {
	SegmentID      string
	OriginalText   string
	SourceLanguage string
	TargetLanguage string
	Timestamp      time.Time
	Priority       model.Priority
	Attempts       int
	Tier           model.Tier
	// TargetID is the CombinedSentence or Paragraph id a history-tier
	// request re-translates; empty for realtime-tier requests.
	TargetID    string
	IsParagraph bool
}

// Handler performs one translation, streaming partial deltas through
// onPartial and returning the final translated text.
type Handler interface {
	Translate(ctx context.Context, req Request, onPartial func(string)) (string, error)
}

// PartialFunc is invoked with each streamed delta for a request.
type PartialFunc func(Request, string)

// CompleteFunc is invoked once a request finishes successfully.
type CompleteFunc func(Request, string)

// ErrorFunc is invoked when a request exhausts its retries and fails.
type ErrorFunc func(Request, error)

// Stats are the queue's point-in-time statistics.
type Stats struct {
	ActiveCount             int
	QueuedCount             int
	CompletedCount          int64
	ErrorCount              int64
	AverageProcessingTimeMs float64
}

// Queue is the bounded-concurrency, priority-ordered translation queue.
type Queue struct {
	cfg     Config
	handler Handler

	onPartial  PartialFunc
	onComplete CompleteFunc
	onError    ErrorFunc

	mu sync.Mutex
	// queues[model.PriorityLow], queues[model.PriorityNormal],
	// queues[model.PriorityHigh] hold FIFO-ordered pending requests.
	queues    [3][]Request
	queuedSet map[string]bool
	active    map[string]struct{}

	completedCount    int64
	errorCount        int64
	totalProcessingMs int64
}

// New creates a Queue. handler performs the actual translation work;
// onPartial/onComplete/onError may be nil.
func New(cfg Config, handler Handler, onPartial PartialFunc, onComplete CompleteFunc, onError ErrorFunc) *Queue {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 3
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &Queue{
		cfg:        cfg,
		handler:    handler,
		onPartial:  onPartial,
		onComplete: onComplete,
		onError:    onError,
		queuedSet:  make(map[string]bool),
		active:     make(map[string]struct{}),
	}
}

// Enqueue adds req to the queue, ordered by priority class with FIFO
// order within a class. It rejects duplicates (same segment id already
// active or queued) and rejects once the queue is at capacity.
func (q *Queue) Enqueue(req Request) error {
	q.mu.Lock()
	if q.queuedSet[req.SegmentID] {
		q.mu.Unlock()
		return ErrDuplicateSegment
	}
	if _, ok := q.active[req.SegmentID]; ok {
		q.mu.Unlock()
		return ErrDuplicateSegment
	}
	if q.queuedLenLocked() >= q.cfg.MaxQueueSize {
		q.mu.Unlock()
		return ErrQueueFull
	}

	class := int(req.Priority)
	q.queues[class] = append(q.queues[class], req)
	q.queuedSet[req.SegmentID] = true
	q.mu.Unlock()

	q.dispatch()
	return nil
}

func (q *Queue) queuedLenLocked() int {
	n := 0
	for _, c := range q.queues {
		n += len(c)
	}
	return n
}

// Stats returns a snapshot of the queue's statistics.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	avg := 0.0
	if q.completedCount > 0 {
		avg = float64(q.totalProcessingMs) / float64(q.completedCount)
	}
	return Stats{
		ActiveCount:             len(q.active),
		QueuedCount:             q.queuedLenLocked(),
		CompletedCount:          q.completedCount,
		ErrorCount:              q.errorCount,
		AverageProcessingTimeMs: avg,
	}
}

// dispatch pulls the next eligible request, if capacity and work both
// exist, and runs it on its own goroutine. High-priority items are
// always taken before normal, and normal before low.
func (q *Queue) dispatch() {
	q.mu.Lock()
	if len(q.active) >= q.cfg.MaxConcurrency {
		q.mu.Unlock()
		return
	}
	req, ok := q.popNextLocked()
	if !ok {
		q.mu.Unlock()
		return
	}
	q.active[req.SegmentID] = struct{}{}
	q.mu.Unlock()

	go q.run(req)
}

// popNextLocked removes and returns the head of the highest non-empty
// priority class. Caller must hold q.mu.
func (q *Queue) popNextLocked() (Request, bool) {
	for class := int(model.PriorityHigh); class >= int(model.PriorityLow); class-- {
		if len(q.queues[class]) == 0 {
			continue
		}
		req := q.queues[class][0]
		q.queues[class] = q.queues[class][1:]
		delete(q.queuedSet, req.SegmentID)
		return req, true
	}
	return Request{}, false
}

func (q *Queue) run(req Request) {
	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	onPartial := func(delta string) {
		if q.onPartial != nil {
			q.onPartial(req, delta)
		}
	}

	text, err := q.handler.Translate(ctx, req, onPartial)
	elapsed := time.Since(start).Milliseconds()

	q.mu.Lock()
	delete(q.active, req.SegmentID)

	if err != nil && req.Attempts < q.cfg.MaxRetries {
		req.Attempts++
		class := int(req.Priority)
		q.queues[class] = append([]Request{req}, q.queues[class]...)
		q.queuedSet[req.SegmentID] = true
		q.mu.Unlock()
		q.dispatch()
		return
	}

	if err != nil {
		q.errorCount++
		q.mu.Unlock()
		if q.onError != nil {
			q.onError(req, err)
		}
		q.dispatch()
		return
	}

	q.completedCount++
	q.totalProcessingMs += elapsed
	q.mu.Unlock()

	if q.onComplete != nil {
		q.onComplete(req, text)
	}
	q.dispatch()
}
