package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwise1/ride_pinpoint/config"
	deps "github.com/bwise1/ride_pinpoint/internal/debs"
	api "github.com/bwise1/ride_pinpoint/internal/http/rest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	allowConnectionsAfterShutdown = 1 * time.Second
	shutdownPeriod                = 30 * time.Second
)

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func main() {
	cfg := config.New()
	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := deps.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build dependencies", zap.Error(err))
	}

	go d.Hub.Run()
	sessionsDone := make(chan struct{})
	go func() {
		d.Sessions.Run(ctx)
		close(sessionsDone)
	}()

	a := &api.API{
		Config: cfg,
		Deps:   d,
		Logger: logger,
	}
	go func() {
		logger.Info("server running", zap.Int("port", cfg.Port))
		if err := a.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("request to shutdown server", zap.Duration("grace", allowConnectionsAfterShutdown))
	time.Sleep(allowConnectionsAfterShutdown)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	<-sessionsDone
	d.Hub.Stop()
	d.Close()
	logger.Info("shutdown complete")
}
