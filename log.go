package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
)

var stderr = colorable.NewColorableStderr()

var (
	warnWord  = color.New(color.Bold, color.FgYellow).Sprint("warning")
	errorWord = color.New(color.Bold, color.FgRed).Sprint("error")
)

// Diagnostics for everything but the child; stdout belongs to COMMAND.
// Debug lines are only written when ENTR_DEBUG is set.
type logger struct {
	mu    sync.Mutex
	out   io.Writer
	debug bool
}

func newLogger(out io.Writer, getenv func(string) string) *logger {
	return &logger{out: out, debug: getenv("ENTR_DEBUG") != ""}
}

func (l *logger) printf(format string, a ...any) {
	if l == nil || l.out == nil {
		return
	}
	l.mu.Lock()
	fmt.Fprintf(l.out, format, a...)
	l.mu.Unlock()
}

func (l *logger) debugf(namespace, format string, a ...any) {
	if l == nil || !l.debug {
		return
	}
	l.printf("[debug] %s: %s\n", namespace, fmt.Sprintf(format, a...))
}

func (l *logger) infof(format string, a ...any) {
	l.printf("%s\n", fmt.Sprintf(format, a...))
}

func (l *logger) warnf(format string, a ...any) {
	l.printf("%s: %s\n", warnWord, fmt.Sprintf(format, a...))
}

func (l *logger) errorf(format string, a ...any) {
	l.printf("%s: %s\n", errorWord, fmt.Sprintf(format, a...))
}
