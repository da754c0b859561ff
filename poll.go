package main

import (
	"os"
	"sync"
	"time"
)

// Short-lived modification-time poller for a file whose native subscription
// was lost to a rename. It expires on its own once the re-established
// subscription is expected to have taken over.
type pollGuard struct {
	mu       sync.Mutex
	deadline time.Time
	last     time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

func newPollGuard(path string, window time.Duration) *pollGuard {
	g := &pollGuard{
		deadline: time.Now().Add(window),
		stop:     make(chan struct{}),
	}
	if info, e := os.Stat(path); e == nil {
		g.last = info.ModTime()
	}
	return g
}

func (g *pollGuard) extend(window time.Duration) {
	g.mu.Lock()
	g.deadline = time.Now().Add(window)
	g.mu.Unlock()
}

func (g *pollGuard) expired(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !now.Before(g.deadline)
}

// changed records the current modification time and reports whether it
// differs from the previous one. A missing file is not a change.
func (g *pollGuard) changed(path string) bool {
	info, e := os.Stat(path)
	if e != nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if info.ModTime().Equal(g.last) {
		return false
	}
	g.last = info.ModTime()
	return true
}

func (g *pollGuard) cancel() {
	g.stopOnce.Do(func() { close(g.stop) })
}

func (w *watchEngine) startPollLocked(fw *fileWatch) {
	g := newPollGuard(fw.path, w.timing.PollWindow)
	fw.guard = g
	w.wg.Add(1)
	go w.poll(fw, g)
	w.log.debugf("watcher", "polling %s for %v", fw.path, w.timing.PollWindow)
}

func (w *watchEngine) poll(fw *fileWatch, g *pollGuard) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.timing.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case <-w.done:
			return
		case now := <-ticker.C:
			if g.expired(now) {
				w.expirePoll(fw, g)
				return
			}
			w.pollOnce(fw, g)
		}
	}
}

func (w *watchEngine) pollOnce(fw *fileWatch, g *pollGuard) {
	w.mu.Lock()
	if w.closed || fw.guard != g {
		w.mu.Unlock()
		return
	}
	if fw.state == stateLost {
		w.resubscribeLocked(fw)
	}
	w.mu.Unlock()

	if g.changed(fw.path) {
		w.log.debugf("watcher", "poll saw %s change", fw.path)
		w.onChange(fw.path)
	}
}

func (w *watchEngine) expirePoll(fw *fileWatch, g *pollGuard) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || fw.guard != g {
		return
	}
	fw.guard = nil
	if fw.state == stateLost {
		w.resubscribeLocked(fw)
	}
	if fw.state == stateLost {
		w.log.warnf("lost watch on %s; further changes to it will be missed", fw.path)
		return
	}
	fw.state = stateSubscribed
	w.log.debugf("watcher", "poll on %s expired, native subscription resumed", fw.path)
}
