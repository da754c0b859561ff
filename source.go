package main

import (
	"sync"

	"github.com/fsnotify/fsnotify"
)

type notifyKind int

const (
	// Contents or metadata of the path changed in place.
	notifyChanged notifyKind = iota
	// The path was created, removed or renamed; for a watched file this
	// usually means the native subscription is bound to a dead inode.
	notifyRenamed
)

func (k notifyKind) String() string {
	if k == notifyRenamed {
		return "renamed"
	}
	return "changed"
}

// One raw OS event. Path is the watched file itself, or dir/entry for events
// reported through a directory subscription.
type notification struct {
	Path string
	Kind notifyKind
}

// The watch engine's view of the OS change-notification primitive.
type notificationSource interface {
	Subscribe(path string) error
	Unsubscribe(path string) error
	Notifications() <-chan notification
	Errors() <-chan error
	Close() error
}

// fsnotify-backed notificationSource. Raw events are normalized and handed
// off through a bounded queue so slow consumers never stall the fsnotify
// reader for long.
type fsSource struct {
	w      *fsnotify.Watcher
	events chan notification
	errs   chan error
	done   chan struct{}
	once   sync.Once
}

const sourceQueueSize = 64

func newFSSource() (*fsSource, error) {
	w, e := fsnotify.NewWatcher()
	if e != nil {
		return nil, e
	}
	src := &fsSource{
		w:      w,
		events: make(chan notification, sourceQueueSize),
		errs:   make(chan error, 4),
		done:   make(chan struct{}),
	}
	go src.forward()
	return src, nil
}

func (src *fsSource) Subscribe(path string) error {
	return src.w.Add(path)
}

func (src *fsSource) Unsubscribe(path string) error {
	return src.w.Remove(path)
}

func (src *fsSource) Notifications() <-chan notification {
	return src.events
}

func (src *fsSource) Errors() <-chan error {
	return src.errs
}

func (src *fsSource) Close() error {
	var e error
	src.once.Do(func() {
		close(src.done)
		e = src.w.Close()
	})
	return e
}

func (src *fsSource) forward() {
	defer close(src.events)
	defer close(src.errs)
	for {
		select {
		case ev, ok := <-src.w.Events:
			if !ok {
				return
			}
			n, relevant := translate(ev)
			if !relevant {
				continue
			}
			select {
			case src.events <- n:
			case <-src.done:
				return
			}
		case err, ok := <-src.w.Errors:
			if !ok {
				return
			}
			select {
			case src.errs <- err:
			case <-src.done:
				return
			}
		case <-src.done:
			return
		}
	}
}

func translate(ev fsnotify.Event) (notification, bool) {
	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0:
		return notification{Path: ev.Name, Kind: notifyRenamed}, true
	case ev.Op&(fsnotify.Write|fsnotify.Chmod) != 0:
		return notification{Path: ev.Name, Kind: notifyChanged}, true
	}
	return notification{}, false
}
