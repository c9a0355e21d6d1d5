package coalescer

import (
	"sort"
	"time"
)

// fakeClock is a manually-advanced Clock for deterministic coalescer tests.
type fakeClock struct {
	now     time.Time
	timers  []*fakeTimer
	nextID  int
}

type fakeTimer struct {
	id       int
	fireAt   time.Time
	f        func()
	stopped  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.nextID++
	t := &fakeTimer{id: c.nextID, fireAt: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return &fakeTimerHandle{clock: c, t: t}
}

// Advance moves time forward by d, firing any timers whose deadline has
// passed, in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	target := c.now.Add(d)
	for {
		due := c.dueTimers(target)
		if len(due) == 0 {
			break
		}
		sort.Slice(due, func(i, j int) bool { return due[i].fireAt.Before(due[j].fireAt) })
		t := due[0]
		c.now = t.fireAt
		t.stopped = true
		t.f()
	}
	c.now = target
}

func (c *fakeClock) dueTimers(target time.Time) []*fakeTimer {
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fireAt.After(target) {
			due = append(due, t)
		}
	}
	return due
}

type fakeTimerHandle struct {
	clock *fakeClock
	t     *fakeTimer
}

func (h *fakeTimerHandle) Stop() bool {
	was := !h.t.stopped
	h.t.stopped = true
	return was
}

func (h *fakeTimerHandle) Reset(d time.Duration) bool {
	was := !h.t.stopped
	h.t.stopped = false
	h.t.fireAt = h.clock.now.Add(d)
	return was
}
