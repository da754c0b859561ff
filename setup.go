package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

// collectTargets fills in run.Targets from the piped file list, or from git
// when nothing was piped.
func (run *runDirective) collectTargets(ctx context.Context, stdin *os.File, log *logger) error {
	var candidates []string
	if !isatty.IsTerminal(stdin.Fd()) {
		listed, e := readWatchList(stdin)
		if e != nil {
			return &parseError{Stage: psFileList, Message: e.Error()}
		}
		candidates = listed
	}
	if len(candidates) == 0 {
		candidates = gitWatchList(ctx)
	}
	if len(candidates) == 0 {
		return &parseError{Stage: psFileList, Message: "No files provided"}
	}

	run.Targets = classify(candidates, run.has(flgWatchDirs), log)
	if len(run.Targets) == 0 {
		return &parseError{Stage: psFileList, Message: "No valid files to watch"}
	}
	return nil
}

// Wires the pipeline: notification source -> watch engine -> coalescer ->
// orchestration loop -> executor.
func (run *runDirective) setup(log *logger) (*orchestrator, error) {
	exec := newExecutor(run, log)
	if run.has(flgNonInteractive) {
		exec.stdin = nil
	}
	o := newOrchestrator(run, log, exec)

	co := newCoalescer(run.Timing.QuietWindow, log, o.deliver)

	src, e := newFSSource()
	if e != nil {
		return nil, fmt.Errorf("starting FS watchers: %w", e)
	}
	engine, e := subscribe(src, run.Targets, run, log,
		func(path string) { co.notify(path, false) },
		func(path string) { co.notify(path, true) })
	if e != nil {
		return nil, fmt.Errorf("registering FS watchers: %w", e)
	}
	o.cleanups = append(o.cleanups,
		func() {
			if e := engine.Cleanup(); e != nil {
				log.debugf("watcher", "cleanup: %v", e)
			}
		},
		co.cleanup)

	if !run.has(flgNonInteractive) {
		if kb, e := openKeyboard(log); e == nil {
			o.keys = kb.Keys()
			o.cleanups = append(o.cleanups, kb.Restore)
		} else {
			log.debugf("loop", "interactive keys unavailable: %v", e)
		}
	}

	log.infof("Watching %d file(s)...", len(run.files()))
	if len(run.dirs()) > 0 {
		log.debugf("watcher", "and %d director(ies) for new entries", len(run.dirs()))
	}
	return o, nil
}
