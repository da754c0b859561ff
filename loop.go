package main

import (
	"context"
	"sync"
	"time"
)

// What the orchestration loop needs from the executor.
type runner interface {
	Start(ctx context.Context, trigger string)
	Alive() bool
	Kill()
	Finish(res runResult) (latest bool)
	Results() <-chan runResult
}

// Single thread of control: coalesced signals, keypresses, child
// completions and shutdown are all handled here, one at a time.
type orchestrator struct {
	run  *runDirective
	log  *logger
	exec runner
	now  func() time.Time

	changes  chan change
	keys     <-chan byte
	cleanups []func()

	lastRun  time.Time
	done     chan struct{}
	doneOnce sync.Once
}

func newOrchestrator(run *runDirective, log *logger, exec runner) *orchestrator {
	return &orchestrator{
		run:     run,
		log:     log,
		exec:    exec,
		now:     time.Now,
		changes: make(chan change, sourceQueueSize),
		done:    make(chan struct{}),
	}
}

// deliver is the coalescer's output. It never blocks past shutdown.
func (o *orchestrator) deliver(s change) {
	select {
	case o.changes <- s:
	case <-o.done:
	}
}

// Loop runs until the program should end and returns its exit code.
// Cancelling ctx is how termination signals arrive.
func (o *orchestrator) Loop(ctx context.Context) int {
	if !o.run.has(flgPostpone) {
		if code, stop := o.launch(ctx, ""); stop {
			return code
		}
	}

	for {
		select {
		case <-ctx.Done():
			o.shutdown("signal")
			return int(exOK)

		case s := <-o.changes:
			if code, stop := o.handle(ctx, s); stop {
				return code
			}

		case key, ok := <-o.keys:
			if !ok {
				o.keys = nil
				continue
			}
			switch key {
			case keyRun:
				o.log.debugf("loop", "manual run")
				if code, stop := o.launch(ctx, ""); stop {
					return code
				}
			case keyQuit, keyInterrupt:
				o.shutdown("quit")
				return int(exOK)
			}

		case res := <-o.exec.Results():
			if o.exec.Finish(res) && o.run.has(flgExitAfterRun) {
				o.shutdown("single run complete")
				return res.Code
			}
		}
	}
}

// launch starts a run and, while the executor is busy (awaiting a
// restart-mode child), still honors quit keys and termination. Other
// signals and keys wait until it is done.
func (o *orchestrator) launch(ctx context.Context, trigger string) (code int, stop bool) {
	started := make(chan struct{})
	go func() {
		defer close(started)
		o.exec.Start(ctx, trigger)
	}()

	for {
		select {
		case <-started:
			return 0, false

		case <-ctx.Done():
			o.shutdown("signal")
			<-started
			return int(exOK), true

		case key, ok := <-o.keys:
			if !ok {
				o.keys = nil
				continue
			}
			if key == keyQuit || key == keyInterrupt {
				// Kill ends the wait; Start then spawns nothing.
				o.shutdown("quit")
				<-started
				return int(exOK), true
			}
			o.log.debugf("loop", "ignoring key %q while starting", key)
		}
	}
}

// handle applies the run policy to one coalesced signal. stop is set when
// the program has to end.
func (o *orchestrator) handle(ctx context.Context, s change) (code int, stop bool) {
	if s.NewEntry && o.run.has(flgWatchDirs) {
		o.log.infof("%s: directory altered (%s)", progName, s.Path)
		o.shutdown("directory altered")
		return int(exDirectoryAltered), true
	}

	// In restart mode a running child is exactly what a new signal replaces.
	if o.exec.Alive() && !o.run.has(flgAllEvents) && !o.run.has(flgRestart) {
		o.log.tick(tickDropStillRunning)
		return 0, false
	}

	now := o.now()
	if now.Sub(o.lastRun) < o.run.debounceDelay() {
		o.log.tick(tickDropRecent)
		return 0, false
	}
	o.lastRun = now

	o.log.debugf("loop", "run for %s", s.Path)
	return o.launch(ctx, s.Path)
}
