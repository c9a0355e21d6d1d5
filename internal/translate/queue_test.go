package translate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hubenschmidt/univoice/internal/model"
)

// blockingHandler lets tests control exactly when each request completes,
// so active-count and ordering assertions are deterministic.
type blockingHandler struct {
	mu      sync.Mutex
	release map[string]chan struct{}
	seen    []string
	fail    map[string]bool
}

func newBlockingHandler() *blockingHandler {
	return &blockingHandler{release: make(map[string]chan struct{}), fail: make(map[string]bool)}
}

func (h *blockingHandler) Translate(ctx context.Context, req Request, onPartial func(string)) (string, error) {
	h.mu.Lock()
	h.seen = append(h.seen, req.SegmentID)
	ch, ok := h.release[req.SegmentID]
	if !ok {
		ch = make(chan struct{})
		h.release[req.SegmentID] = ch
	}
	fail := h.fail[req.SegmentID]
	h.mu.Unlock()

	select {
	case <-ch:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if fail {
		return "", fmt.Errorf("forced failure")
	}
	return "translated:" + req.OriginalText, nil
}

func (h *blockingHandler) releaseSeg(id string) {
	h.mu.Lock()
	ch, ok := h.release[id]
	if !ok {
		ch = make(chan struct{})
		h.release[id] = ch
	}
	h.mu.Unlock()
	close(ch)
}

func waitFor(t *testing.T, cond func() bool) {
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

func TestQueueConcurrencyBound(t *testing.T) {
	h := newBlockingHandler()
	cfg := DefaultConfig()
	cfg.MaxConcurrency = 2
	q := New(cfg, h, nil, nil, nil)

	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("seg-%d", i)
		if err := q.Enqueue(Request{SegmentID: id, OriginalText: id, Priority: model.PriorityNormal}); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	waitFor(t, func() bool { return q.Stats().ActiveCount == 2 })
	if stats := q.Stats(); stats.ActiveCount > cfg.MaxConcurrency {
		t.Fatalf("active = %d, exceeds max concurrency %d", stats.ActiveCount, cfg.MaxConcurrency)
	}

	for i := 0; i < 4; i++ {
		h.releaseSeg(fmt.Sprintf("seg-%d", i))
	}
	waitFor(t, func() bool { return q.Stats().CompletedCount == 4 })
}

func TestQueuePriorityOrdering(t *testing.T) {
	h := newBlockingHandler()
	cfg := DefaultConfig()
	cfg.MaxConcurrency = 1
	q := New(cfg, h, nil, nil, nil)

	// Fill the single active slot so subsequent enqueues just queue.
	if err := q.Enqueue(Request{SegmentID: "occupy", OriginalText: "x", Priority: model.PriorityNormal}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return q.Stats().ActiveCount == 1 })

	if err := q.Enqueue(Request{SegmentID: "low-1", OriginalText: "l", Priority: model.PriorityLow}); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(Request{SegmentID: "high-1", OriginalText: "h", Priority: model.PriorityHigh}); err != nil {
		t.Fatal(err)
	}

	h.releaseSeg("occupy")
	waitFor(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.seen) >= 2
	})

	h.mu.Lock()
	order := append([]string(nil), h.seen...)
	h.mu.Unlock()
	if order[1] != "high-1" {
		t.Fatalf("dispatch order = %v, want high priority dispatched before low", order)
	}

	h.releaseSeg("high-1")
	h.releaseSeg("low-1")
	waitFor(t, func() bool { return q.Stats().CompletedCount == 3 })
}

func TestQueueDuplicateSegmentRejected(t *testing.T) {
	h := newBlockingHandler()
	q := New(DefaultConfig(), h, nil, nil, nil)

	if err := q.Enqueue(Request{SegmentID: "dup", OriginalText: "a", Priority: model.PriorityNormal}); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(Request{SegmentID: "dup", OriginalText: "b", Priority: model.PriorityNormal}); err != ErrDuplicateSegment {
		t.Fatalf("err = %v, want ErrDuplicateSegment", err)
	}
	h.releaseSeg("dup")
	waitFor(t, func() bool { return q.Stats().CompletedCount == 1 })
}

func TestQueueFullRejectsEnqueue(t *testing.T) {
	h := newBlockingHandler()
	cfg := DefaultConfig()
	cfg.MaxConcurrency = 1
	cfg.MaxQueueSize = 1
	q := New(cfg, h, nil, nil, nil)

	if err := q.Enqueue(Request{SegmentID: "occupy", OriginalText: "x", Priority: model.PriorityNormal}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return q.Stats().ActiveCount == 1 })

	if err := q.Enqueue(Request{SegmentID: "q1", OriginalText: "x", Priority: model.PriorityNormal}); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(Request{SegmentID: "q2", OriginalText: "x", Priority: model.PriorityNormal}); err != ErrQueueFull {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}

	h.releaseSeg("occupy")
	h.releaseSeg("q1")
	waitFor(t, func() bool { return q.Stats().CompletedCount == 2 })
}

func TestQueueRetriesOnceThenDrops(t *testing.T) {
	h := newBlockingHandler()
	h.fail["flaky"] = true
	cfg := DefaultConfig()
	cfg.MaxRetries = 1
	cfg.MaxConcurrency = 1

	var errs int
	var mu sync.Mutex
	q := New(cfg, h, nil, nil, func(req Request, err error) {
		mu.Lock()
		errs++
		mu.Unlock()
	})

	if err := q.Enqueue(Request{SegmentID: "flaky", OriginalText: "x", Priority: model.PriorityNormal}); err != nil {
		t.Fatal(err)
	}
	// Closed channels never block again, so one release unblocks both the
	// initial attempt and its automatic retry.
	h.releaseSeg("flaky")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return errs == 1
	})
	if stats := q.Stats(); stats.ErrorCount != 1 {
		t.Fatalf("error count = %d, want 1", stats.ErrorCount)
	}
}

func TestQueueCompletionInvokesCallback(t *testing.T) {
	h := newBlockingHandler()
	done := make(chan Request, 1)
	q := New(DefaultConfig(), h, nil, func(req Request, text string) {
		done <- req
	}, nil)

	if err := q.Enqueue(Request{SegmentID: "ok", OriginalText: "hi", Priority: model.PriorityHigh}); err != nil {
		t.Fatal(err)
	}
	h.releaseSeg("ok")

	select {
	case req := <-done:
		if req.SegmentID != "ok" {
			t.Fatalf("segment id = %q", req.SegmentID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion callback never fired")
	}
}
