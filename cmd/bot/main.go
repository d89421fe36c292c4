package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mohpann/kalshi-weather/internal/bot"
	"github.com/Mohpann/kalshi-weather/internal/config"
	"github.com/Mohpann/kalshi-weather/internal/forecast"
	"github.com/Mohpann/kalshi-weather/internal/kalshi"
	"github.com/Mohpann/kalshi-weather/internal/logging"
	"github.com/Mohpann/kalshi-weather/internal/metrics"
	"github.com/Mohpann/kalshi-weather/internal/state"
	"github.com/Mohpann/kalshi-weather/internal/weather"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		FilePath: cfg.Bot.LogFile,
		Console:  true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging error: %v\n", err)
		os.Exit(1)
	}

	signer, err := kalshi.NewSignerFromFile(cfg.Kalshi.APIKeyID, cfg.Kalshi.PrivateKeyPath)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load signing credentials")
	}

	client := kalshi.NewClient(
		cfg.Kalshi.BaseURL,
		signer,
		cfg.Kalshi.Timeout(),
		cfg.Kalshi.RateLimitPerSecond,
		logging.Component(log, "kalshi"),
	)

	chain := weather.NewChain(
		logging.Component(log, "weather"),
		weather.NewNWSSource("", cfg.Weather.StationID, cfg.Weather.UserAgent, cfg.Weather.Timeout(), cfg.Weather.StationCacheTTL()),
		weather.NewMeteosourceSource(
			weather.MeteosourceBaseURL(cfg.Weather.MeteosourceTier, cfg.Weather.MeteosourceBaseURL),
			cfg.Weather.MeteosourceAPIKey,
			cfg.Weather.Latitude,
			cfg.Weather.Longitude,
			cfg.Weather.Timeout(),
		),
		weather.NewWethrSource(cfg.Weather.WethrBaseURL, cfg.Weather.ManualDataPath, cfg.Weather.Timeout()),
	)

	var forecastClient *forecast.Client
	if cfg.Forecast.Enabled {
		forecastClient = forecast.NewClient(cfg.Forecast.BaseURL, cfg.Forecast.Timeout(), logging.Component(log, "forecast"))
	}

	recorder := metrics.New()
	agg := state.NewAggregate(cfg.Weather.StaleAfter())
	store := state.NewStore(cfg.Bot.SnapshotFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.BindAddress, logging.Component(log, "metrics")); err != nil {
				log.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	b := bot.New(cfg, logging.Component(log, "bot"), client, chain, forecastClient, agg, store, recorder)
	b.Verify(ctx)

	if err := b.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("bot exited with error")
	}
}
