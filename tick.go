package main

type tickSignal string

const (
	// Received a coalesced signal, but the previous COMMAND is still running
	// (use -a to respond anyway, -r to replace it).
	tickDropStillRunning tickSignal = "_"

	// Received a coalesced signal inside the debounce delay of the last run.
	tickDropRecent tickSignal = "-"

	// A directory entry was created but was hidden, or already gone by the
	// time it was checked.
	tickDropEntry tickSignal = "i"

	// A rename dropped a native subscription; fallback polling started.
	tickRecovering tickSignal = "r"
)

func (t tickSignal) String() string {
	return string(t)
}

// Ticks only show while debugging, so they never compete with COMMAND's own
// output.
func (l *logger) tick(signal tickSignal) {
	if l == nil || !l.debug {
		return
	}
	l.printf("%s", signal)
}
