package main

import (
	"context"
	"os"
	"sync/atomic"
)

// shutdown kills any COMMAND still running and releases watches, timers and
// the terminal. It runs once; later calls are no-ops.
func (o *orchestrator) shutdown(why string) {
	o.doneOnce.Do(func() {
		o.log.debugf("loop", "shutting down: %s", why)
		close(o.done)
		o.exec.Kill()
		for _, fn := range o.cleanups {
			fn()
		}
	})
}

// watchShutdownSignals cancels the loop's context on the first interrupt or
// terminate signal. The returned func stops watching.
func watchShutdownSignals(log *logger, cancel context.CancelFunc, signals <-chan os.Signal) func() {
	done := make(chan struct{})
	var caught atomic.Bool

	go func() {
		for {
			select {
			case <-done:
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if caught.CompareAndSwap(false, true) {
					log.debugf("loop", "caught %v; cleaning up", sig)
					cancel()
					continue
				}
				log.debugf("loop", "caught %v; shutdown already in progress", sig)
			}
		}
	}()

	return func() {
		close(done)
	}
}
