package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	log := newLogger(stderr, os.Getenv)

	run, e := parseCli(os.Args[1:], os.Getenv, log)
	if e != nil {
		fmt.Fprint(stderr, usage())
		die(exUsage, e)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if e := run.collectTargets(ctx, os.Stdin, log); e != nil {
		die(exUsage, e)
	}

	if log.debug {
		fmt.Fprintf(stderr, "[debug] here's what you asked for: %s\n", run.debugStr())
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	stopSignals := watchShutdownSignals(log, cancel, signals)

	o, e := run.setup(log)
	if e != nil {
		die(exUsage, e)
	}

	code := o.Loop(ctx)
	stopSignals()
	signal.Stop(signals)
	os.Exit(code)
}
