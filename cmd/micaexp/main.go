package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/atmosud/micaexp/internal/config"
	httpserver "github.com/atmosud/micaexp/internal/http"
	"github.com/atmosud/micaexp/internal/logging"
	"github.com/atmosud/micaexp/internal/microspot"
	"github.com/atmosud/micaexp/internal/models"
	"github.com/atmosud/micaexp/internal/pipeline"
	"github.com/atmosud/micaexp/internal/xair"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(cfg.AppEnv)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := &http.Client{Timeout: cfg.RequestTimeout}
	sensors := microspot.NewClient(cfg.MicrospotObservationsURL, cfg.MicrospotSitesURL, cfg.MicrospotKey, client)
	station := xair.NewClient(cfg.XairBaseURL, client, logger)

	pipe := pipeline.New(sensors, station, models.DefaultThresholds(), cfg.CoverageThreshold, logger)

	srv := httpserver.New(cfg, pipe, sensors, station, logger)
	logger.Info("comparison API listening", "addr", cfg.ListenAddr())

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
