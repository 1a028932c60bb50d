package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application. Agents stop first so their
// resting orders are cancelled while the venues are still reachable.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop agents: loops halt, in-flight executions finish, open orders die.
	a.supervisor.StopAll(shutdownCtx)

	// Cancel context to signal remaining components
	a.cancel()

	// Shutdown HTTP server
	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Close quote streams
	for _, stream := range a.streams {
		stream.Close()
	}

	// Close storage last; agents flushed their final transitions above.
	err = a.repo.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	// Wait for all goroutines
	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")

	return nil
}
