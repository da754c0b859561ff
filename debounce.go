package main

import (
	"sync"
	"time"
)

// One coalesced signal, as seen by the orchestration loop.
type change struct {
	Path     string
	NewEntry bool
}

type debounceEntry struct {
	timer *time.Timer
	sig   change
}

// Collapses bursts of signals for the same path into one, delivered once the
// path has been quiet for the configured window. Paths are independent of
// each other.
type coalescer struct {
	window time.Duration
	fire   func(change)
	log    *logger

	mu      sync.Mutex
	entries map[string]*debounceEntry
	closed  bool

	// Serializes deliveries so two entries for one path can never overtake
	// each other on their way out.
	fireMu sync.Mutex
}

func newCoalescer(window time.Duration, log *logger, fire func(change)) *coalescer {
	return &coalescer{
		window:  window,
		fire:    fire,
		log:     log,
		entries: make(map[string]*debounceEntry),
	}
}

// notify records, or refreshes, the pending signal for path. The prior timer
// is stopped before the replacement is scheduled.
func (c *coalescer) notify(path string, newEntry bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if prev, ok := c.entries[path]; ok {
		prev.timer.Stop()
		c.log.debugf("coalesce", "refreshing %s", path)
	}
	entry := &debounceEntry{sig: change{Path: path, NewEntry: newEntry}}
	entry.timer = time.AfterFunc(c.window, func() {
		c.flush(path, entry)
	})
	c.entries[path] = entry
}

func (c *coalescer) flush(path string, entry *debounceEntry) {
	c.fireMu.Lock()
	defer c.fireMu.Unlock()

	c.mu.Lock()
	if c.closed || c.entries[path] != entry {
		// Replaced or cancelled after the timer had already fired.
		c.mu.Unlock()
		return
	}
	delete(c.entries, path)
	c.mu.Unlock()

	c.fire(entry.sig)
}

// cleanup cancels every pending timer without firing it.
func (c *coalescer) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, entry := range c.entries {
		entry.timer.Stop()
	}
	c.entries = make(map[string]*debounceEntry)
}

func (c *coalescer) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
