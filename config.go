package main

import (
	"time"
)

const (
	defaultQuietWindow  = 50 * time.Millisecond
	defaultDebounce     = 100 * time.Millisecond
	defaultPollInterval = 50 * time.Millisecond
	defaultPollWindow   = 2 * time.Second
)

// Tunable timing windows. None of the defaults is load-bearing for
// correctness; they only need to be bounded.
type timing struct {
	// How long a path must stay quiet before its coalesced signal fires.
	QuietWindow time.Duration
	// Minimum gap between accepted runs.
	Debounce time.Duration
	// Fallback poll cadence after a rename dropped a subscription.
	PollInterval time.Duration
	// Lifetime of that fallback poller.
	PollWindow time.Duration
}

func defaultTiming() timing {
	return timing{
		QuietWindow:  defaultQuietWindow,
		Debounce:     defaultDebounce,
		PollInterval: defaultPollInterval,
		PollWindow:   defaultPollWindow,
	}
}

// loadTiming applies ENTR_* environment overrides on top of the defaults.
// Unparseable values are reported through warn and ignored.
func loadTiming(getenv func(string) string, warn func(format string, a ...any)) timing {
	t := defaultTiming()
	overrides := []struct {
		key string
		dst *time.Duration
	}{
		{"ENTR_QUIET_WINDOW", &t.QuietWindow},
		{"ENTR_DEBOUNCE", &t.Debounce},
		{"ENTR_POLL_INTERVAL", &t.PollInterval},
		{"ENTR_POLL_WINDOW", &t.PollWindow},
	}
	for _, o := range overrides {
		raw := getenv(o.key)
		if raw == "" {
			continue
		}
		d, e := time.ParseDuration(raw)
		if e != nil || d < 0 {
			if warn != nil {
				warn("ignoring %s=%q: want a non-negative duration like 50ms", o.key, raw)
			}
			continue
		}
		*o.dst = d
	}
	// A zero poll interval would spin.
	if t.PollInterval <= 0 {
		t.PollInterval = defaultPollInterval
	}
	return t
}
