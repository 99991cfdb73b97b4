package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/tbranch/campaign-sync/internal/catalog"
	"github.com/tbranch/campaign-sync/internal/config"
	"github.com/tbranch/campaign-sync/internal/devserver"
	"github.com/tbranch/campaign-sync/internal/logging"
)

// Tracks every dev game can play. The production backend serves the
// real catalog.
var devTracks = []catalog.Track{
	{ID: "velvet-room", Title: "Velvet Room"},
	{ID: "battle-1", Title: "Battle I"},
	{ID: "overworld", Title: "Overworld"},
	{ID: "shop", Title: "Shop"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx := context.Background()
	hub := devserver.NewHub(ctx, catalog.NewStatic(devTracks...), logger)

	handler := devserver.Routes(hub, logger)

	logger.Info("dev relay listening", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
