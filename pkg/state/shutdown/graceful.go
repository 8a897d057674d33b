// Package shutdown handles process signals and ordered teardown.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"timecapsule/pkg/logger"
)

// Step is one named teardown action.
type Step struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Run executes steps in order. Failures are logged and do not stop later
// steps; the first error is returned. Steps are skipped once ctx expires.
func Run(ctx context.Context, steps ...Step) error {
	logger.Info("shutdown_requested")
	var first error
	for _, s := range steps {
		if s.Fn == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			logger.Error("shutdown_deadline_exceeded", "skipped", s.Name)
			if first == nil {
				first = err
			}
			continue
		}
		logger.Info("shutdown_step", "step", s.Name)
		if err := s.Fn(ctx); err != nil {
			logger.Error("shutdown_step_failed", "step", s.Name, "error", err)
			if first == nil {
				first = fmt.Errorf("%s: %w", s.Name, err)
			}
		}
	}
	logger.Info("shutdown_complete")
	return first
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM. A
// SIGPIPE dumps goroutine stacks before cancelling.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sigc:
			logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
			cancel()
		case <-ctx.Done():
		}
	}()

	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)
	go func() {
		select {
		case s := <-sigpipe:
			logger.Info("signal_received", "signal", s.String(), "msg", "SIGPIPE - dumping goroutine stacks")
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			logger.Info("goroutine_stack_dump", "dump", string(buf[:n]))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigc)
		signal.Stop(sigpipe)
		cancel()
	}
}

// Abort reports a fatal startup error and exits.
func Abort(msg string, err error, dbPath string) {
	logger.Error("fatal", "msg", msg, "error", err, "db_path", dbPath)
	fmt.Fprintf(os.Stderr, "timecapsule: %s: %v\n", msg, err)
	os.Exit(1)
}
