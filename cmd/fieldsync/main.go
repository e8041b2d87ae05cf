package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/ecodata/fieldsync/internal/buildinfo"
	"github.com/ecodata/fieldsync/internal/client/cli"
	"github.com/ecodata/fieldsync/internal/client/config"
	"github.com/ecodata/fieldsync/internal/client/tracker"
	"github.com/ecodata/fieldsync/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	provider := tracker.NewGPSDProvider(cfg.GPSDAddr)

	app, err := cli.NewApp(ctx, cfg, provider, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	app.Run(ctx)
}
