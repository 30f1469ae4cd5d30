// Package procstate tracks the process-wide running flag and turns OS
// signals into a graceful, then forced, shutdown.
package procstate

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"camerafeed/internal/logging"
)

var log = logging.Component("procstate")

// GracefulWindow bounds how long the process waits for graceful shutdown to
// finish once Running() turns false; past it the process exits with status
// 1. A second signal forces an immediate exit at any time, independent of
// this window.
const GracefulWindow = 5 * time.Second

// Runner tracks whether the process should keep running and counts the
// termination signals it has seen. A single signal requests a graceful
// shutdown; a second forces process exit.
type Runner struct {
	running   atomic.Bool
	sigCount  atomic.Int32
	sigCh     chan os.Signal
	forceExit func(code int)
}

// New creates a Runner already in the running state and installs handlers
// for SIGINT and SIGTERM.
func New() *Runner {
	r := &Runner{
		sigCh:     make(chan os.Signal, 2),
		forceExit: os.Exit,
	}
	r.running.Store(true)
	signal.Notify(r.sigCh, os.Interrupt, syscall.SIGTERM)
	go r.watch()
	return r
}

func (r *Runner) watch() {
	for sig := range r.sigCh {
		n := r.sigCount.Add(1)
		log.Infof("received signal %s, shutting down (attempt %d)", sig, n)
		r.running.Store(false)

		if n >= 2 {
			log.Warnf("second signal received, forcing immediate exit")
			r.forceExit(1)
			return
		}
	}
}

// Running reports whether the process should keep operating.
func (r *Runner) Running() bool { return r.running.Load() }

// Stop latches a shutdown request without requiring an OS signal, used by
// tests and by any internal fatal-error path that wants the same
// graceful-then-forced behavior.
func (r *Runner) Stop() {
	r.running.Store(false)
}

// WaitForShutdown blocks until Running() is false, polling at the given
// interval. Intended for the main status/health loop.
func (r *Runner) WaitForShutdown(pollInterval time.Duration) {
	for r.Running() {
		time.Sleep(pollInterval)
	}
}

// Close stops watching for signals. Call once during final shutdown.
func (r *Runner) Close() {
	signal.Stop(r.sigCh)
	close(r.sigCh)
}
