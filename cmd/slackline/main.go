// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

// Command slackline bridges channels between Slack workspaces. It receives
// Events API callbacks and slash commands over a single webhook endpoint,
// relays messages to the paired channel under the sender's identity, and
// keeps edits and deletions in sync across the bridge.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/orgvanize/slackline/pkg/bridge"
	"github.com/orgvanize/slackline/pkg/bridge/correlate"
)

func main() {
	// A .env file is optional; real deployments configure through the
	// environment directly.
	_ = godotenv.Load()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger().Level(zerolog.InfoLevel)

	cfg, err := bridge.LoadConfig(log)
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		if errors.Is(err, bridge.ErrMissingPort) {
			os.Exit(bridge.ExitMissingPort)
		}
		os.Exit(1)
	}
	if cfg.Debug {
		log = log.Level(zerolog.DebugLevel)
	}

	ctx := context.Background()
	var store correlate.Store = correlate.NewMemory()
	if cfg.DatabaseURL != "" {
		pg, err := correlate.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to provision database")
			os.Exit(bridge.ExitDatabase)
		}
		defer pg.Close()
		store = pg
		log.Info().Msg("Message correlation is durable")
	} else {
		log.Warn().Msg("$DATABASE_URL not set, edits and deletions will not survive restarts")
	}

	b := bridge.New(cfg, store, log)
	if !b.Bootstrap(ctx) {
		log.Warn().Msg("One or more workspaces failed to bootstrap")
	}

	log.Info().Str("port", cfg.Port).Msg("Listening for events")
	if err := http.ListenAndServe(":"+cfg.Port, b.Routes()); err != nil {
		log.Error().Err(err).Msg("Server terminated")
		os.Exit(1)
	}
}
