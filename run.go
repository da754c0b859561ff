package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
)

const (
	clearSeq           = "\x1b[2J\x1b[H"
	clearScrollbackSeq = "\x1b[3J\x1b[2J\x1b[H"
)

// A spawned COMMAND. done is closed once the process has been reaped.
type child struct {
	cmd     *exec.Cmd
	argv    []string
	group   bool
	started time.Time
	done    chan struct{}
}

func (c *child) exited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

type runResult struct {
	child *child
	Code  int
	Err   error
}

// Owns the single child-process slot. Nothing outside the executor replaces
// the current child; callers may only ask whether one is alive, or kill it.
type executor struct {
	run     *runDirective
	log     *logger
	getenv  func(string) string
	environ func() []string

	// Where the child's output goes, and where clear sequences and the
	// shell summary are written.
	stdout, stderr io.Writer
	stdin          io.Reader
	// Whether stdout is a terminal, for the shell exit summary.
	tty bool

	mu      sync.Mutex
	current *child
	// Children that lost the slot (restart or all-events) but whose results
	// have not been collected.
	retired map[*child]bool

	results  chan runResult
	stopped  chan struct{}
	stopOnce sync.Once
}

func newExecutor(run *runDirective, log *logger) *executor {
	return &executor{
		run:     run,
		log:     log,
		getenv:  os.Getenv,
		environ: os.Environ,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		stdin:   os.Stdin,
		tty:     isatty.IsTerminal(os.Stdout.Fd()),
		retired: make(map[*child]bool),
		results: make(chan runResult, 8),
		stopped: make(chan struct{}),
	}
}

// Results delivers one runResult per Start, in completion order.
func (x *executor) Results() <-chan runResult {
	return x.results
}

// Alive reports whether the current child is still running.
func (x *executor) Alive() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.current != nil && !x.current.exited()
}

// Start launches one run of COMMAND for trigger ("" when nothing triggered
// it). In restart mode a live child is first sent a graceful termination
// signal and awaited, so two restart-mode children never overlap; ctx
// bounds that wait, and so does Kill. Nothing is spawned once Kill has
// run. Spawn failures are reported and surface as exit code 1 on Results.
func (x *executor) Start(ctx context.Context, trigger string) {
	if x.run.has(flgRestart) {
		x.terminate(ctx)
	}
	x.clearScreen()

	argv := x.run.argv(trigger, x.getenv)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = childEnv(x.environ())
	cmd.Stdout = x.stdout
	cmd.Stderr = x.stderr
	c := &child{cmd: cmd, argv: argv, done: make(chan struct{})}
	if x.run.has(flgNonInteractive) || x.stdin == nil {
		// Nothing of ours to read, so the child can get its own group and
		// be signalled together with its descendants.
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		c.group = true
	} else {
		cmd.Stdin = x.stdin
	}

	x.log.debugf("executor", "%s `%s`",
		color.YellowString("running"),
		color.HiRedString(strings.Join(argv, " ")))

	// Spawning and taking the slot happen under mu so Kill either sees the
	// new child or Start sees that Kill already ran.
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.isStopped() {
		x.log.debugf("executor", "not starting: shutting down")
		return
	}

	c.started = time.Now()
	if e := cmd.Start(); e != nil {
		x.log.errorf("command failed: %v", e)
		close(c.done)
		// Only the caller's loop drains results.
		go x.deliver(runResult{child: c, Code: 1, Err: e})
		return
	}

	if x.current != nil {
		// Superseded in all-events mode; left to finish on its own.
		x.retired[x.current] = true
	}
	x.current = c

	go x.wait(c)
}

func (x *executor) isStopped() bool {
	select {
	case <-x.stopped:
		return true
	default:
		return false
	}
}

func (x *executor) wait(c *child) {
	e := c.cmd.Wait()
	code := exitCode(e)
	var exitErr *exec.ExitError
	if e != nil && !errors.As(e, &exitErr) {
		x.log.errorf("command failed: %v", e)
	}
	close(c.done)
	x.deliver(runResult{child: c, Code: code, Err: e})
}

func (x *executor) deliver(res runResult) {
	select {
	case x.results <- res:
	case <-x.stopped:
	}
}

// Finish releases the slot held by res's child and reports whether res
// belongs to the most recent run, as opposed to a child that was replaced.
func (x *executor) Finish(res runResult) (latest bool) {
	x.mu.Lock()
	switch {
	case x.retired[res.child]:
		delete(x.retired, res.child)
	case x.current == res.child:
		x.current = nil
		latest = true
	default:
		// Never started, so it never held the slot.
		latest = true
	}
	x.mu.Unlock()

	if res.child.cmd.Process == nil {
		return latest
	}
	x.messageDeath(res)
	if x.run.has(flgShell) && x.tty {
		fmt.Fprintf(x.stdout, "\n[%s] exit: %d\n", userShell(x.getenv), res.Code)
	}
	return latest
}

// terminate asks the current child to exit and waits for it, best-effort.
// No escalation happens if the child ignores the request; ctx ends the wait.
func (x *executor) terminate(ctx context.Context) {
	x.mu.Lock()
	c := x.current
	if c != nil {
		x.current = nil
		x.retired[c] = true
	}
	x.mu.Unlock()
	if c == nil || c.exited() {
		return
	}

	x.log.debugf("executor", "terminating pid %d", c.cmd.Process.Pid)
	x.signal(c, unix.SIGTERM)
	select {
	case <-c.done:
	case <-ctx.Done():
		x.log.debugf("executor", "gave up waiting on pid %d: %v", c.cmd.Process.Pid, ctx.Err())
	}
}

// Kill forcibly kills every child still running, current or replaced.
// Errors are swallowed; the processes may already be gone.
func (x *executor) Kill() {
	x.stopOnce.Do(func() { close(x.stopped) })

	x.mu.Lock()
	var living []*child
	if x.current != nil {
		living = append(living, x.current)
	}
	for c := range x.retired {
		living = append(living, c)
	}
	x.mu.Unlock()

	for _, c := range living {
		if c.exited() {
			continue
		}
		x.log.debugf("executor", "killing pid %d", c.cmd.Process.Pid)
		x.signal(c, unix.SIGKILL)
	}
}

func (x *executor) signal(c *child, sig syscall.Signal) {
	if c.cmd.Process == nil {
		return
	}
	target := c.cmd.Process.Pid
	if c.group {
		target = -target
	}
	if e := unix.Kill(target, sig); e != nil && !errors.Is(e, unix.ESRCH) {
		x.log.debugf("executor", "signal %v to %d: %v", sig, target, e)
	}
}

func (x *executor) clearScreen() {
	switch {
	case x.run.has(flgClearScrollback):
		io.WriteString(x.stdout, clearScrollbackSeq)
	case x.run.has(flgClear):
		io.WriteString(x.stdout, clearSeq)
	}
}

func (x *executor) messageDeath(res runResult) {
	var maybeErr string
	if res.Code != 0 {
		maybeErr = fmt.Sprintf("\t:  %s",
			color.New(color.Bold, color.FgRed).Sprintf("exit %d", res.Code))
	}
	x.log.debugf("executor", "%s in %v.%s",
		color.YellowString("done"),
		time.Since(res.child.started).Round(time.Millisecond),
		maybeErr)
}

// exitCode maps a Wait error to a process exit code. A child killed by a
// signal reports 128+signal, as shells do.
func exitCode(e error) int {
	if e == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(e, &exitErr) {
		return 1
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return exitErr.ExitCode()
}
