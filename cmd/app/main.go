package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/internal/app"
	"github.com/BuzzLyutic/task-sync-client/internal/config"
)

func main() {
	cfg, err := config.Load()

	// Подключаем логгер
	logger := newLogger(cfg)
	defer logger.Sync()

	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to start client", zap.Error(err))
	}
	a.Start(ctx)
	if err := a.Watch(ctx); err != nil {
		logger.Warn("Token watcher disabled", zap.Error(err))
	}

	srv := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(a, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("Server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
	cancel()
	a.Close(shutdownCtx)
	logger.Info("Server stopped successfully!")
}
