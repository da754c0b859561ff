package main

import (
	"fmt"
)

const (
	progName        = "reentr"
	version  string = "v0.3.0"
)

func usage() string {
	return fmt.Sprintf(
		`Runs COMMAND every time one of the watched files changes.

  Usage:  %[1]s [-acdnprsz] COMMAND [ARGUMENT /_ ...] < FILE_LIST

  Description:
	 The files to watch are read from standard input, one path per line. When
	 standard input is a terminal, the files tracked by git (plus untracked
	 files git does not ignore) are watched instead.

	 An argument of exactly /_ is replaced by the absolute path of the file
	 whose change triggered the run, or by the first watched file when no
	 change did.

  Options:
    -a: respond to all events, even while COMMAND is still running.
    -c: clear the screen before each run; -cc also clears the scrollback.
    -d: also watch the directories of the listed files, and exit with
	  status 2 when a new entry appears in one; -dd counts dotfiles too.
    -n: non-interactive; do not read keys and give COMMAND no stdin.
    -p: postpone the first run until a file changes.
    -r: restart: terminate a still-running COMMAND before starting the next.
    -s: evaluate COMMAND with $SHELL -c, and report its exit status.
    -z: exit, with COMMAND's status, once it completes.

  Keys (unless -n):
    space  run COMMAND now
    q      quit

  Environment:
    ENTR_DEBUG          any value turns on debug tracing on stderr
    ENTR_QUIET_WINDOW   per-file quiet window before a change counts (%[2]v)
    ENTR_DEBOUNCE       minimum gap between runs (%[3]v, 0 with -a)
    ENTR_POLL_INTERVAL  poll cadence after a file is replaced (%[4]v)
    ENTR_POLL_WINDOW    how long that polling lasts (%[5]v)

  Version %[6]s
`, progName, defaultQuietWindow, defaultDebounce,
		defaultPollInterval, defaultPollWindow, version)
}
