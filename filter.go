package main

import (
	"github.com/gobwas/glob"
)

// Decides which new directory entries may be reported. Hidden entries are
// the only ones held back, and only until a doubled -d asks for them.
type entryFilter struct {
	hidden      glob.Glob
	allowHidden bool
}

func newEntryFilter(allowHidden bool) *entryFilter {
	return &entryFilter{
		hidden:      glob.MustCompile(".*"),
		allowHidden: allowHidden,
	}
}

// ignored reports whether the entry named name (a base name) is suppressed.
func (f *entryFilter) ignored(name string) bool {
	return !f.allowHidden && f.hidden.Match(name)
}
