package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophguard/internal/buildinfo"
	"github.com/dmitrijs2005/gophguard/internal/client/cli"
	"github.com/dmitrijs2005/gophguard/internal/client/config"
	"github.com/dmitrijs2005/gophguard/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat).With("version", buildinfo.Version())

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "shutdown", "error", err)
	}
}
