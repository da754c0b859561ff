package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"
)

// Scripted runner: records starts and reports whatever liveness the test sets.
type fakeRunner struct {
	mu      sync.Mutex
	alive   bool
	kills   int
	started chan string
	results chan runResult
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		started: make(chan string, 16),
		results: make(chan runResult, 4),
	}
}

func (r *fakeRunner) Start(ctx context.Context, trigger string) { r.started <- trigger }
func (r *fakeRunner) Finish(res runResult) bool                 { return true }
func (r *fakeRunner) Results() <-chan runResult                 { return r.results }

func (r *fakeRunner) Alive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alive
}

func (r *fakeRunner) Kill() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kills++
}

func (r *fakeRunner) setAlive(alive bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alive = alive
}

func (r *fakeRunner) killCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kills
}

// Manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type loopHarness struct {
	o       *orchestrator
	r       *fakeRunner
	clock   *fakeClock
	keys    chan byte
	cancel  context.CancelFunc
	exit    chan int
	cleaned chan struct{}
}

func startLoop(t *testing.T, run *runDirective) *loopHarness {
	t.Helper()
	h := &loopHarness{
		r:       newFakeRunner(),
		clock:   &fakeClock{now: time.Unix(1000, 0)},
		keys:    make(chan byte, 4),
		exit:    make(chan int, 1),
		cleaned: make(chan struct{}, 4),
	}
	h.o = newOrchestrator(run, testLogger(), h.r)
	h.o.now = h.clock.Now
	h.o.keys = h.keys
	h.o.cleanups = append(h.o.cleanups, func() { h.cleaned <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(cancel)
	go func() { h.exit <- h.o.Loop(ctx) }()
	return h
}

func (h *loopHarness) expectStart(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-h.r.started:
		if got != want {
			t.Fatalf("expected a run for %q, got %q", want, got)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a run for %q", want)
	}
}

func (h *loopHarness) expectNoStart(t *testing.T) {
	t.Helper()
	select {
	case got := <-h.r.started:
		t.Fatalf("expected no run, got one for %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func (h *loopHarness) expectExit(t *testing.T, want int) {
	t.Helper()
	select {
	case got := <-h.exit:
		if got != want {
			t.Fatalf("expected exit code %d, got %d", want, got)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected the loop to exit with %d", want)
	}
	if n := h.r.killCount(); n != 1 {
		t.Fatalf("expected one kill at shutdown, got %d", n)
	}
	select {
	case <-h.cleaned:
	default:
		t.Fatalf("expected cleanups to have run")
	}
	select {
	case <-h.cleaned:
		t.Fatalf("expected cleanups to run once")
	default:
	}
}

func TestLoopInitialRun(t *testing.T) {
	h := startLoop(t, testDirective([]string{"make"}))
	h.expectStart(t, "")

	h = startLoop(t, testDirective([]string{"make"}, flgPostpone))
	h.expectNoStart(t)
}

func TestLoopDebouncesRuns(t *testing.T) {
	h := startLoop(t, testDirective([]string{"make"}, flgPostpone))

	h.o.deliver(change{Path: "/w/a.txt"})
	h.expectStart(t, "/w/a.txt")

	h.clock.advance(50 * time.Millisecond)
	h.o.deliver(change{Path: "/w/b.txt"})
	h.expectNoStart(t)
	h.clock.advance(60 * time.Millisecond)
	h.o.deliver(change{Path: "/w/c.txt"})
	h.expectStart(t, "/w/c.txt")
	h.expectNoStart(t)
}

func TestLoopDropsWhileRunning(t *testing.T) {
	h := startLoop(t, testDirective([]string{"make"}))
	h.expectStart(t, "")
	h.r.setAlive(true)

	h.clock.advance(time.Second)
	h.o.deliver(change{Path: "/w/a.txt"})
	h.expectNoStart(t)

	// Manual runs are not subject to the policy.
	h.keys <- keyRun
	h.expectStart(t, "")

	h.r.setAlive(false)
	h.o.deliver(change{Path: "/w/b.txt"})
	h.expectStart(t, "/w/b.txt")
}

func TestLoopAdmitsWhileRunning(t *testing.T) {
	tests := []struct {
		name  string
		flags []featureFlag
		// Whether back-to-back signals bypass the debounce too.
		burst bool
	}{
		{"all events", []featureFlag{flgAllEvents}, true},
		{"restart", []featureFlag{flgRestart}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := startLoop(t, testDirective([]string{"make"}, append(tt.flags, flgPostpone)...))
			h.r.setAlive(true)

			h.o.deliver(change{Path: "/w/a.txt"})
			h.expectStart(t, "/w/a.txt")

			h.o.deliver(change{Path: "/w/b.txt"})
			if tt.burst {
				h.expectStart(t, "/w/b.txt")
			} else {
				h.expectNoStart(t)
			}

			h.clock.advance(time.Second)
			h.o.deliver(change{Path: "/w/c.txt"})
			h.expectStart(t, "/w/c.txt")
		})
	}
}

func TestLoopDirectoryAltered(t *testing.T) {
	h := startLoop(t, testDirective([]string{"make"}, flgWatchDirs))
	h.expectStart(t, "")

	h.o.deliver(change{Path: "/w/new.txt", NewEntry: true})
	h.expectExit(t, int(exDirectoryAltered))
	h.expectNoStart(t)
}

func TestLoopQuits(t *testing.T) {
	tests := []struct {
		name string
		quit func(h *loopHarness)
	}{
		{"q", func(h *loopHarness) { h.keys <- keyQuit }},
		{"ctrl-c", func(h *loopHarness) { h.keys <- keyInterrupt }},
		{"termination signal", func(h *loopHarness) { h.cancel() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := startLoop(t, testDirective([]string{"make"}))
			h.expectStart(t, "")
			tt.quit(h)
			h.expectExit(t, int(exOK))

			// Late coalescer output must not block once shut down.
			h.o.deliver(change{Path: "/w/a.txt"})
			h.o.shutdown("again")
		})
	}
}

func TestLoopExitAfterRun(t *testing.T) {
	h := startLoop(t, testDirective([]string{"make"}, flgExitAfterRun))
	h.expectStart(t, "")

	h.r.results <- runResult{Code: 7}
	h.expectExit(t, 7)
}

func TestLoopKeepsRunningWithoutExitFlag(t *testing.T) {
	h := startLoop(t, testDirective([]string{"make"}))
	h.expectStart(t, "")

	h.r.results <- runResult{Code: 7}
	h.clock.advance(time.Second)
	h.o.deliver(change{Path: "/w/a.txt"})
	h.expectStart(t, "/w/a.txt")
}

func TestWatchShutdownSignalsCancelsOnce(t *testing.T) {
	signals := make(chan os.Signal, 2)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	var mu sync.Mutex
	stop := watchShutdownSignals(testLogger(), func() {
		mu.Lock()
		calls++
		mu.Unlock()
		cancel()
	}, signals)
	defer stop()

	signals <- syscall.SIGTERM
	signals <- os.Interrupt
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected the context to be cancelled")
	}
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected one cancel, got %d", calls)
	}
}

func TestLoopSurvivesRepeatedSpawnFailures(t *testing.T) {
	run := testDirective([]string{"/nonexistent/reentr-test-binary"}, flgAllEvents, flgPostpone)
	x, _ := newTestExecutor(run)
	o := newOrchestrator(run, testLogger(), x)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exit := make(chan int, 1)
	go func() { exit <- o.Loop(ctx) }()

	fed := make(chan struct{})
	go func() {
		defer close(fed)
		for i := 0; i < 200; i++ {
			o.deliver(change{Path: fmt.Sprintf("/w/%d.txt", i)})
		}
	}()
	select {
	case <-fed:
	case <-time.After(5 * time.Second):
		t.Fatalf("loop stopped taking changes")
	}

	cancel()
	select {
	case code := <-exit:
		if code != int(exOK) {
			t.Fatalf("expected exit code %d, got %d", exOK, code)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a termination signal to end the loop")
	}
}

func TestLoopQuitsWhileAwaitingRestartedChild(t *testing.T) {
	run := testDirective([]string{"sh", "-c", `trap '' TERM; while :; do sleep 0.05; done`},
		flgRestart, flgPostpone)
	run.Timing.Debounce = 0
	x, _ := newTestExecutor(run)
	o := newOrchestrator(run, testLogger(), x)
	keys := make(chan byte, 1)
	o.keys = keys

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exit := make(chan int, 1)
	go func() { exit <- o.Loop(ctx) }()

	o.deliver(change{Path: "/w/a.txt"})
	waitFor(t, "first child to start", x.Alive)
	time.Sleep(50 * time.Millisecond)

	// The child ignores SIGTERM, so this restart waits on it indefinitely.
	o.deliver(change{Path: "/w/b.txt"})
	time.Sleep(100 * time.Millisecond)

	keys <- keyQuit
	select {
	case code := <-exit:
		if code != int(exOK) {
			t.Fatalf("expected exit code %d, got %d", exOK, code)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected q to end the loop during a restart")
	}
	waitFor(t, "children to die", func() bool { return childrenExited(x) })
	if x.Alive() {
		t.Fatalf("expected no replacement child after quitting")
	}
}

func TestLoopTerminatesWhileAwaitingRestartedChild(t *testing.T) {
	run := testDirective([]string{"sh", "-c", `trap '' TERM; while :; do sleep 0.05; done`},
		flgRestart, flgPostpone)
	run.Timing.Debounce = 0
	x, _ := newTestExecutor(run)
	o := newOrchestrator(run, testLogger(), x)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exit := make(chan int, 1)
	go func() { exit <- o.Loop(ctx) }()

	o.deliver(change{Path: "/w/a.txt"})
	waitFor(t, "first child to start", x.Alive)
	time.Sleep(50 * time.Millisecond)
	o.deliver(change{Path: "/w/b.txt"})
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case code := <-exit:
		if code != int(exOK) {
			t.Fatalf("expected exit code %d, got %d", exOK, code)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a termination signal to end the loop during a restart")
	}
	waitFor(t, "children to die", func() bool { return childrenExited(x) })
}
