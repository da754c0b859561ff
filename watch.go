package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Per-file subscription state.
//
//	subscribed -> lost -> recovering (resubscribed & polling) -> subscribed
//
// A file stays lost, still polling, while its path is briefly absent
// mid-replace; the poller keeps retrying the subscription.
type watchState int

const (
	stateSubscribed watchState = iota
	stateLost
	stateRecovering
)

func (s watchState) String() string {
	switch s {
	case stateSubscribed:
		return "subscribed"
	case stateLost:
		return "lost"
	case stateRecovering:
		return "recovering"
	default:
		return fmt.Sprintf("watchState(%d)", int(s))
	}
}

type fileWatch struct {
	path  string
	state watchState
	guard *pollGuard
}

// Normalizes raw notifications for the watched files and directories into
// file-changed and new-entry signals.
type watchEngine struct {
	src     notificationSource
	log     *logger
	timing  timing
	entries *entryFilter

	onChange func(path string)
	onEntry  func(path string)

	mu     sync.Mutex
	files  map[string]*fileWatch
	dirs   map[string]bool
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

var errNothingWatched = errors.New("no path could be watched")

// subscribe establishes one native subscription per target and starts
// dispatching. Directory targets report entry creation only. Individual
// subscription failures are warnings; failing all of them is an error.
func subscribe(
	src notificationSource,
	targets []watchTarget,
	run *runDirective,
	log *logger,
	onChange, onEntry func(path string)) (*watchEngine, error) {

	w := &watchEngine{
		src:      src,
		log:      log,
		timing:   run.Timing,
		entries:  newEntryFilter(run.has(flgWatchHidden)),
		onChange: onChange,
		onEntry:  onEntry,
		files:    make(map[string]*fileWatch),
		dirs:     make(map[string]bool),
		done:     make(chan struct{}),
	}

	count := 0
	for _, t := range targets {
		path := filepath.Clean(t.Path)
		if e := src.Subscribe(path); e != nil {
			log.warnf("cannot watch %s: %v", path, e)
			continue
		}
		count++
		switch t.Kind {
		case kindDirectory:
			w.dirs[path] = true
		default:
			w.files[path] = &fileWatch{path: path}
		}
		log.debugf("watcher", "subscribed %s (%s)", path, t.Kind)
	}
	if count == 0 {
		src.Close()
		return nil, errNothingWatched
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Cleanup releases every subscription and cancels outstanding pollers.
// Safe to call more than once.
func (w *watchEngine) Cleanup() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, fw := range w.files {
		if fw.guard != nil {
			fw.guard.cancel()
			fw.guard = nil
		}
	}
	close(w.done)
	w.mu.Unlock()

	e := w.src.Close()
	w.wg.Wait()
	return e
}

func (w *watchEngine) run() {
	defer w.wg.Done()
	events, errs := w.src.Notifications(), w.src.Errors()
	for events != nil || errs != nil {
		select {
		case n, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			w.dispatch(n)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.log.warnf("watcher: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *watchEngine) dispatch(n notification) {
	path := filepath.Clean(n.Path)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	fw, isFile := w.files[path]
	inDir := w.dirs[filepath.Dir(path)]
	w.mu.Unlock()

	w.log.debugf("watcher", "%s %s", n.Kind, path)
	switch {
	case isFile && n.Kind == notifyRenamed:
		w.recoverSubscription(fw)
	case isFile:
		w.onChange(path)
	case inDir && n.Kind == notifyRenamed:
		w.entryCreated(path)
	}
}

// recoverSubscription handles a watched file whose path was replaced: the
// native subscription is re-established, the rename itself is reported, and
// a bounded poller covers the window where the new subscription may not yet
// be live.
func (w *watchEngine) recoverSubscription(fw *fileWatch) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	fw.state = stateLost
	w.resubscribeLocked(fw)
	if fw.guard != nil {
		fw.guard.extend(w.timing.PollWindow)
	} else {
		w.startPollLocked(fw)
	}
	w.mu.Unlock()

	w.log.tick(tickRecovering)
	w.onChange(fw.path)
}

func (w *watchEngine) resubscribeLocked(fw *fileWatch) {
	// The old binding is usually gone already.
	if e := w.src.Unsubscribe(fw.path); e != nil {
		w.log.debugf("watcher", "unsubscribe %s: %v", fw.path, e)
	}
	if e := w.src.Subscribe(fw.path); e != nil {
		w.log.debugf("watcher", "resubscribe %s: %v", fw.path, e)
		return
	}
	fw.state = stateRecovering
}

// entryCreated reports a new entry in a watched directory unless it is
// already gone or filtered.
func (w *watchEngine) entryCreated(path string) {
	abs, e := filepath.Abs(path)
	if e != nil {
		abs = path
	}
	if _, e := os.Lstat(abs); e != nil {
		w.log.debugf("watcher", "entry %s vanished: %v", abs, e)
		w.log.tick(tickDropEntry)
		return
	}
	if w.entries.ignored(filepath.Base(abs)) {
		w.log.debugf("watcher", "ignoring entry %s", abs)
		w.log.tick(tickDropEntry)
		return
	}
	w.onEntry(abs)
}

// stateOf is the subscription state of a watched file, for tests and debug.
func (w *watchEngine) stateOf(path string) (watchState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fw, ok := w.files[filepath.Clean(path)]
	if !ok {
		return 0, false
	}
	return fw.state, true
}

func (w *watchEngine) pollers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	count := 0
	for _, fw := range w.files {
		if fw.guard != nil {
			count++
		}
	}
	return count
}
