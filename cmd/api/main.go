package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"track17-scrapper/internal/core/config"
	"track17-scrapper/internal/core/logger"
	"track17-scrapper/internal/core/proxy"
	"track17-scrapper/internal/core/server"
	trackingadapter "track17-scrapper/internal/features/tracking/adapters"
	trackinghandler "track17-scrapper/internal/features/tracking/handler"
	trackingservice "track17-scrapper/internal/features/tracking/service"

	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// @title 17track Scrapper API
// @version 1.0
// @description Scrapes shipment tracking information from 17track with a headless browser.
// @contact.name API Support
// @license.name MIT
// @host localhost:3000
// @BasePath /
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
		zap.String("readiness_mode", cfg.Browser.ReadinessMode),
		zap.Int("max_sessions", cfg.Scrape.MaxSessions),
		zap.Bool("proxy_enabled", cfg.Proxy.Enabled),
	)

	// Initialize Tracking Adapters
	launcher := trackingadapter.NewRodLauncher(cfg.Browser, proxy.FromConfig(cfg.Proxy))
	parser := trackingadapter.NewSeventeenTrackParser()

	// Initialize Tracking Service & Handler
	trackingSvc := trackingservice.NewTrackingService(launcher, parser, cfg.Scrape)
	trackingHdl := trackinghandler.NewTrackingHandler(trackingSvc)

	srv := server.New(cfg)

	// Register Routes
	srv.App.Post("/track", trackingHdl.Track)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			l.Fatal("Server failed to start", zap.Error(err))
		}
	case sig := <-quit:
		l.Info("Signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			l.Error("Graceful shutdown failed", zap.Error(err))
		}
	}

	l.Info("Application stopped")
}
