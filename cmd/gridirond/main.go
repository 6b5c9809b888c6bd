package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"goflare.io/gridiron"
	"goflare.io/gridiron/internal/api"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("gridirond stopped", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := gridiron.New(ctx, gridiron.FromEnv(), gridiron.WithLogger(logger))
	if err != nil {
		return err
	}
	defer svc.Close()

	cfg := svc.Config()
	if cfg.Upstream.APIKey == "" {
		logger.Warn("MSF_API_KEY is not set; provider requests will be rejected")
	}

	handler := api.NewHandler(svc, cfg.Provider, logger.Named("api"))
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     svc.Metrics().Registry(),
		Logger:      logger.Named("http"),
	})

	srv := &http.Server{
		Addr:         net.JoinHostPort("", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("provider", cfg.Provider))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		return err
	}
	return nil
}
