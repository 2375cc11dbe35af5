package collector

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler creates a context that is cancelled on SIGTERM or
// SIGINT, invoking shutdownFunc first so the caller can checkpoint before
// the context propagates cancellation to workers. A second signal forces an
// immediate exit, following the Concurrency & Resource Model's "no
// long-running worker may block cancellation for more than the grace
// window" requirement — the operator always retains a hard escape hatch.
// Adapted from the teacher's internal/collector/shutdown.go, replacing the
// standard log package with the shared slog logger.
func SetupSignalHandler(logger *slog.Logger, shutdownFunc func(context.Context)) context.Context {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		logger.Warn("received signal, initiating graceful shutdown", "signal", sig.String())

		if shutdownFunc != nil {
			shutdownFunc(ctx)
		}
		cancel()

		sig = <-sigCh
		logger.Error("received second signal, forcing exit", "signal", sig.String())
		os.Exit(1)
	}()

	return ctx
}
