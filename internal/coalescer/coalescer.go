package coalescer

import (
	"sync"
	"time"

	"github.com/hubenschmidt/univoice/internal/metrics"
	"github.com/hubenschmidt/univoice/internal/model"
)

// Config holds the coalescer's timing parameters.
type Config struct {
	DebounceMs      int64
	ForceCommitMs   int64
	CleanupInterval time.Duration
	MaxInactive     time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		DebounceMs:      160,
		ForceCommitMs:   1100,
		CleanupInterval: 30 * time.Second,
		MaxInactive:     60 * time.Second,
	}
}

// Update is one evolving-text observation delivered to a coalescer.
type Update struct {
	Text        string
	Translation string
	Confidence  float64
	IsFinal     bool
}

func (u Update) tuple() model.Tuple {
	return model.Tuple{Text: u.Text, Translation: u.Translation, IsFinal: u.IsFinal}
}

// EmitFunc receives a settled CoalescedSegment.
type EmitFunc func(model.CoalescedSegment)

// Metrics snapshots a single coalescer's counters.
type Metrics struct {
	EmittedCount           int64
	SuppressedCount        int64
	DuplicateSuppressions  int64
	TotalSegments          int64
	totalHoldMs            int64
}

// AvgHoldMs is the mean hold duration across all emissions so far.
func (m Metrics) AvgHoldMs() float64 {
	if m.EmittedCount == 0 {
		return 0
	}
	return float64(m.totalHoldMs) / float64(m.EmittedCount)
}

// Coalescer owns the debounce/force-commit state for a single
// segmentKey. It is not safe for concurrent use from multiple
// goroutines; SegmentManager serializes access per key.
type Coalescer struct {
	key    string
	cfg    Config
	clock  Clock
	emit   EmitFunc

	mu sync.Mutex

	pending     *Update
	firstAt     time.Time
	lastEmitted *model.Tuple
	debounce    Timer
	forceCommit Timer
	lastActive  time.Time

	metrics Metrics
}

// New creates a coalescer for segmentKey, invoking emit when an update
// settles.
func New(key string, cfg Config, clock Clock, emit EmitFunc) *Coalescer {
	if clock == nil {
		clock = RealClock()
	}
	return &Coalescer{key: key, cfg: cfg, clock: clock, emit: emit, lastActive: clock.Now()}
}

// Update feeds a new observation. The rules:
//   - identical tuples to the last emitted one, or to the update already
//     pending, never re-emit and are counted as duplicate suppressions;
//   - a transition to isFinal=true with a changed tuple emits immediately;
//   - otherwise the debounce timer is (re)armed, bounded by a force-commit
//     timer measured from the first unemitted update.
func (c *Coalescer) Update(u Update) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastActive = c.clock.Now()
	c.metrics.TotalSegments++

	tup := u.tuple()
	if (c.lastEmitted != nil && *c.lastEmitted == tup) || (c.pending != nil && c.pending.tuple() == tup) {
		c.metrics.SuppressedCount++
		c.metrics.DuplicateSuppressions++
		metrics.CoalescerSuppressed.Inc()
		return
	}

	wasFinal := c.lastEmitted != nil && c.lastEmitted.IsFinal
	justTurnedFinal := u.IsFinal && !wasFinal

	c.pending = &u
	if c.firstAt.IsZero() {
		c.firstAt = c.clock.Now()
	}

	if justTurnedFinal {
		c.emitLocked()
		return
	}

	c.armDebounceLocked()
	c.armForceCommitLocked()
}

func (c *Coalescer) armDebounceLocked() {
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = c.clock.AfterFunc(time.Duration(c.cfg.DebounceMs)*time.Millisecond, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.pending != nil {
			c.emitLocked()
		}
	})
}

func (c *Coalescer) armForceCommitLocked() {
	if c.forceCommit != nil {
		return
	}
	c.forceCommit = c.clock.AfterFunc(time.Duration(c.cfg.ForceCommitMs)*time.Millisecond, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.pending != nil {
			c.emitLocked()
		}
	})
}

// emitLocked settles the pending update. Caller must hold c.mu.
func (c *Coalescer) emitLocked() {
	u := *c.pending
	c.pending = nil
	firstAt := c.firstAt
	c.firstAt = time.Time{}

	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	if c.forceCommit != nil {
		c.forceCommit.Stop()
		c.forceCommit = nil
	}

	now := c.clock.Now()
	hold := int64(0)
	if !firstAt.IsZero() {
		hold = now.Sub(firstAt).Milliseconds()
	}

	tup := u.tuple()
	c.lastEmitted = &tup
	c.metrics.EmittedCount++
	c.metrics.totalHoldMs += hold

	metrics.CoalescerEmitted.Inc()
	metrics.CoalescerHoldMs.Observe(float64(hold))

	seg := model.CoalescedSegment{
		SegmentKey:  c.key,
		Text:        u.Text,
		Translation: u.Translation,
		IsFinal:     u.IsFinal,
		HoldMs:      hold,
		SettledAt:   now,
	}
	if c.emit != nil {
		c.emit(seg)
	}
}

// Flush forces emission of any pending update regardless of timers,
// used on stop and by SegmentManager eviction.
func (c *Coalescer) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.emitLocked()
	}
}

// Metrics returns a snapshot of this coalescer's counters.
func (c *Coalescer) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// LastActive reports when this coalescer last received an update, for
// SegmentManager's inactivity sweep.
func (c *Coalescer) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Close stops any armed timers without emitting, for shutdown paths
// that have already flushed explicitly.
func (c *Coalescer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.debounce != nil {
		c.debounce.Stop()
	}
	if c.forceCommit != nil {
		c.forceCommit.Stop()
	}
}
