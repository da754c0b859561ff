package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

type parseStage int

const (
	psFlags parseStage = iota
	psCommand
	psFileList
)

type parseError struct {
	Stage   parseStage
	Message string
}

func (e *parseError) Error() string {
	var stageStr string
	switch e.Stage {
	case psFlags:
		stageStr = "flags"
	case psCommand:
		stageStr = "COMMAND"
	case psFileList:
		stageStr = "FILE_LIST"
	}
	return fmt.Sprintf("parse: %s: %s", stageStr, e.Message)
}

// parseCli turns the command line into a runDirective. Flag parsing stops at
// the first non-flag argument (or "--"); everything after it is COMMAND.
func parseCli(args []string, getenv func(string) string, log *logger) (*runDirective, error) {
	flags := pflag.NewFlagSet(progName, pflag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.SetOutput(io.Discard)
	flags.Usage = func() {}

	all := flags.BoolP("all", "a", false, "respond to all events")
	clears := flags.CountP("clear", "c", "clear the screen before each run")
	dirs := flags.CountP("directories", "d", "watch directories for new entries")
	nonInteractive := flags.BoolP("non-interactive", "n", false, "do not read keys")
	postpone := flags.BoolP("postpone", "p", false, "postpone the first run")
	restart := flags.BoolP("restart", "r", false, "restart a persistent COMMAND")
	shell := flags.BoolP("shell", "s", false, "evaluate COMMAND with $SHELL -c")
	exit := flags.BoolP("exit", "z", false, "exit after COMMAND completes")

	if e := flags.Parse(args); e != nil {
		return nil, &parseError{Stage: psFlags, Message: e.Error()}
	}

	command := flags.Args()
	if len(command) == 0 {
		return nil, &parseError{Stage: psCommand, Message: "no utility specified"}
	}

	run := &runDirective{
		Command: command,
		Features: map[featureFlag]bool{
			flgAllEvents:       *all,
			flgClear:           *clears > 0,
			flgClearScrollback: *clears > 1,
			flgWatchDirs:       *dirs > 0,
			flgWatchHidden:     *dirs > 1,
			flgNonInteractive:  *nonInteractive,
			flgPostpone:        *postpone,
			flgRestart:         *restart,
			flgShell:           *shell,
			flgExitAfterRun:    *exit,
		},
		Timing: loadTiming(getenv, log.warnf),
	}
	return run, nil
}
