package coalescer

import (
	"sync"
	"time"
)

// Manager creates, routes, force-flushes, and garbage-collects
// per-segmentKey coalescers. A background ticker evicts coalescers that
// have been inactive past MaxInactive, flushing any pending state first.
type Manager struct {
	cfg   Config
	clock Clock
	emit  EmitFunc

	mu         sync.Mutex
	coalescers map[string]*Coalescer

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewManager creates a SegmentManager and starts its cleanup sweep.
func NewManager(cfg Config, clock Clock, emit EmitFunc) *Manager {
	if clock == nil {
		clock = RealClock()
	}
	m := &Manager{
		cfg:        cfg,
		clock:      clock,
		emit:       emit,
		coalescers: make(map[string]*Coalescer),
		stop:       make(chan struct{}),
	}
	m.wg.Add(1)
	go m.sweepLoop()
	return m
}

// Update routes an observation to the coalescer for segmentKey, creating
// one if it doesn't exist yet.
func (m *Manager) Update(segmentKey string, u Update) {
	m.get(segmentKey).Update(u)
}

func (m *Manager) get(segmentKey string) *Coalescer {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coalescers[segmentKey]
	if !ok {
		c = New(segmentKey, m.cfg, m.clock, m.emit)
		m.coalescers[segmentKey] = c
	}
	return c
}

// FlushAll force-emits every pending coalescer, used when the pipeline
// stops.
func (m *Manager) FlushAll() {
	m.mu.Lock()
	all := make([]*Coalescer, 0, len(m.coalescers))
	for _, c := range m.coalescers {
		all = append(all, c)
	}
	m.mu.Unlock()
	for _, c := range all {
		c.Flush()
	}
}

// Count returns the number of tracked coalescers, for tests and metrics.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.coalescers)
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()
	interval := m.cfg.CleanupInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.evictInactive()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) evictInactive() {
	cutoff := m.clock.Now().Add(-m.cfg.MaxInactive)
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, c := range m.coalescers {
		if c.LastActive().Before(cutoff) {
			c.Flush()
			c.Close()
			delete(m.coalescers, key)
		}
	}
}

// Close stops the cleanup sweep. It does not flush pending coalescers;
// callers should call FlushAll first if settled state must be emitted.
func (m *Manager) Close() {
	close(m.stop)
	m.wg.Wait()
}
