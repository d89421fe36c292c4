package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mohpann/kalshi-weather/internal/api"
	"github.com/Mohpann/kalshi-weather/internal/config"
	"github.com/Mohpann/kalshi-weather/internal/logging"
	"github.com/Mohpann/kalshi-weather/internal/state"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Console only. The dashboard tails the bot's log file and must not
	// write into it.
	log, err := logging.New(logging.Config{Level: cfg.Log.Level, Console: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging error: %v\n", err)
		os.Exit(1)
	}

	store := state.NewStore(cfg.Bot.SnapshotFile)
	server := api.NewServer(cfg.Dashboard, store, cfg.Bot.LogFile, logging.Component(log, "dashboard"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("dashboard exited with error")
	}
}
