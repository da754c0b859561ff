package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Argument replaced by the triggering file's absolute path.
const placeholder = "/_"

const (
	defaultShell = "/bin/sh"
	defaultPager = "/bin/cat"
)

func (c *runDirective) debugStr() string {
	var features []string
	for k, v := range c.Features {
		if v {
			features = append(features, k.String())
		}
	}
	sort.Strings(features)

	return fmt.Sprintf(`
  run.Command:      %q
  run.Files:        [%s]
  run.Directories:  [%s]
  run.Shell:        "%s"
  run.Features:     %s
  run.Timing:       quiet=%v debounce=%v poll=%v/%v
  `, c.Command,
		fmt.Sprintf("\n\t%s\n\t", strings.Join(c.files(), ",\n\t")),
		strings.Join(c.dirs(), ", "),
		userShell(os.Getenv),
		strings.Join(features, ", "),
		c.Timing.QuietWindow, c.Timing.Debounce,
		c.Timing.PollInterval, c.Timing.PollWindow)
}

// substitute replaces every placeholder argument with the absolute form of
// trigger, or of the first watch path when the run had no trigger.
func (c *runDirective) substitute(trigger string) []string {
	argv := make([]string, len(c.Command))
	copy(argv, c.Command)

	var resolved string
	for i, arg := range argv {
		if arg != placeholder {
			continue
		}
		if resolved == "" {
			resolved = absPath(trigger, c.firstPath())
		}
		argv[i] = resolved
	}
	return argv
}

// argv is the final process argument list for one run, shell-wrapped when
// shell mode is on.
func (c *runDirective) argv(trigger string, getenv func(string) string) []string {
	args := c.substitute(trigger)
	if !c.has(flgShell) {
		return args
	}
	return []string{userShell(getenv), "-c", strings.Join(args, " ")}
}

func absPath(trigger, fallback string) string {
	p := trigger
	if p == "" {
		p = fallback
	}
	abs, e := filepath.Abs(p)
	if e != nil {
		return p
	}
	return abs
}

func userShell(getenv func(string) string) string {
	if sh := getenv("SHELL"); sh != "" {
		return sh
	}
	return defaultShell
}

// childEnv is environ with PAGER defaulted, so pagers never block a run
// waiting on the terminal.
func childEnv(environ []string) []string {
	for _, kv := range environ {
		if strings.HasPrefix(kv, "PAGER=") && len(kv) > len("PAGER=") {
			return environ
		}
	}
	env := make([]string, 0, len(environ)+1)
	for _, kv := range environ {
		if kv == "PAGER=" {
			continue
		}
		env = append(env, kv)
	}
	return append(env, "PAGER="+defaultPager)
}
