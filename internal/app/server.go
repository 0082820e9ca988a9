package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	serverReadTimeout  = 15 * time.Second
	serverWriteTimeout = 15 * time.Second
	serverIdleTimeout  = 60 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// createServer создает HTTP сервер API расчетов
func createServer(addr string, handler *chi.Mux) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       serverReadTimeout,
		ReadHeaderTimeout: serverReadTimeout,
		WriteTimeout:      serverWriteTimeout,
		IdleTimeout:       serverIdleTimeout,
	}
}

// runServer обслуживает запросы до сигнала завершения или ошибки listener'а.
// Ошибка запуска возвращается вызывающему, чтобы shutdown все равно освободил ресурсы.
func (a *App) runServer(ctx context.Context) error {
	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server", zap.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("http server on %s: %w", a.server.Addr, err)
		}
		return nil
	case <-signalCtx.Done():
		a.logger.Info("shutdown signal received")
		return nil
	}
}

// shutdown останавливает прием запросов, затем фоновую обработку наград,
// и только после этого закрывает Redis и хранилище.
func (a *App) shutdown(cancel context.CancelFunc) {
	a.logger.Info("shutting down settlement server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	// Необработанные события наград останутся в очереди БД до следующего запуска
	cancel()
	a.workerPool.Stop()
	a.logger.Info("reward worker pool stopped")

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
	a.closeStorage()

	a.logger.Info("settlement server stopped")
}
