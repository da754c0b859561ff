package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

type exitReason int

const (
	exOK exitReason = iota
	// Bad flags, empty command, no valid files.
	exUsage
	// A new entry appeared in a watched directory; the file set is stale.
	exDirectoryAltered
)

func (r exitReason) String() string {
	switch r {
	case exOK:
		return "ok"
	case exUsage:
		return "usage"
	case exDirectoryAltered:
		return "directory altered"
	default:
		return fmt.Sprintf("exit %d", int(r))
	}
}

func die(reason exitReason, e error) {
	fmt.Fprintf(stderr, "%s %s\n",
		color.New(color.Bold, color.FgRed).Sprintf("%s error:", reason),
		e.Error())
	os.Exit(int(reason))
}
