package main

// Behavioral interface for a given invocation of reentr

import (
	"fmt"
	"time"
)

// Flag indicating a change to default behaviors.
type featureFlag int

const (
	// Respond to every admitted event, even while COMMAND is still running.
	flgAllEvents featureFlag = 1 + iota
	flgClear
	// Set by a doubled -c; also wipes the scrollback buffer.
	flgClearScrollback
	flgWatchDirs
	// Set by a doubled -d; dotfiles created in a watched directory count too.
	flgWatchHidden
	flgNonInteractive
	flgPostpone
	flgRestart
	flgShell
	flgExitAfterRun
)

func (flg featureFlag) String() string {
	switch flg {
	case flgAllEvents:
		return "flgAllEvents"
	case flgClear:
		return "flgClear"
	case flgClearScrollback:
		return "flgClearScrollback"
	case flgWatchDirs:
		return "flgWatchDirs"
	case flgWatchHidden:
		return "flgWatchHidden"
	case flgNonInteractive:
		return "flgNonInteractive"
	case flgPostpone:
		return "flgPostpone"
	case flgRestart:
		return "flgRestart"
	case flgShell:
		return "flgShell"
	case flgExitAfterRun:
		return "flgExitAfterRun"
	default:
		panic(fmt.Sprintf("unexpected flag, '%d'", int(flg)))
	}
}

// Encapsulates a given invocation. Built once by parseCli and the file-list
// collaborators, then only read.
type runDirective struct {
	Command  []string
	Targets  []watchTarget
	Features map[featureFlag]bool
	Timing   timing
}

func (run *runDirective) has(flg featureFlag) bool {
	return run.Features[flg]
}

// Minimum time between two accepted runs. Zero in all-events mode.
func (run *runDirective) debounceDelay() time.Duration {
	if run.has(flgAllEvents) {
		return 0
	}
	return run.Timing.Debounce
}

func (run *runDirective) files() []string {
	return run.targetsOf(kindFile)
}

func (run *runDirective) dirs() []string {
	return run.targetsOf(kindDirectory)
}

func (run *runDirective) targetsOf(kind targetKind) []string {
	var paths []string
	for _, t := range run.Targets {
		if t.Kind == kind {
			paths = append(paths, t.Path)
		}
	}
	return paths
}

// First configured watch path; stands in for the trigger of runs that had no
// triggering event.
func (run *runDirective) firstPath() string {
	if files := run.files(); len(files) > 0 {
		return files[0]
	}
	if len(run.Targets) > 0 {
		return run.Targets[0].Path
	}
	return ""
}
