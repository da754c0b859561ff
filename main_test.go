package main

import (
	"io"
	"testing"
	"time"
)

func testLogger() *logger {
	return newLogger(io.Discard, func(string) string { return "" })
}

func testDirective(command []string, flags ...featureFlag) *runDirective {
	run := &runDirective{
		Command:  command,
		Features: make(map[featureFlag]bool),
		Timing: timing{
			QuietWindow:  10 * time.Millisecond,
			Debounce:     100 * time.Millisecond,
			PollInterval: 5 * time.Millisecond,
			PollWindow:   150 * time.Millisecond,
		},
	}
	for _, f := range flags {
		run.Features[f] = true
	}
	return run
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
