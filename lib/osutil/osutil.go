package osutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext returns a context that is canceled once Ctrl+C is pressed or
// the process is asked to terminate.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Fatal logs the error and exits the process.
func Fatal(message string, err error) {
	slog.Error(message, "err", err)
	os.Exit(1)
}
