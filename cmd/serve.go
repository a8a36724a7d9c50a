package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/tunepipe/internal/auth"
	"github.com/desertthunder/tunepipe/internal/server"
	"github.com/desertthunder/tunepipe/internal/services"
	"github.com/desertthunder/tunepipe/internal/songs"
	"github.com/desertthunder/tunepipe/internal/store"
	"github.com/desertthunder/tunepipe/internal/tasks"
	"github.com/urfave/cli/v3"
)

const purgeInterval = 10 * time.Minute

// Serve runs the HTTP server until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if host := cmd.String("host"); host != "" {
		config.Server.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		config.Server.Port = port
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dialer, err := r.dialer(config.Credentials.Telegram)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, err := store.New(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer sessions.Close()
	r.logger.Info("session store ready", "store", store.ParseStoreType(config.Session.Store))

	go store.RunPurger(ctx, sessions, purgeInterval, func(err error) {
		r.logger.Warn("session purge failed", "error", err)
	})

	httpClient := services.NewHTTPClient(config.Server.Outbound())
	telegram := auth.NewTelegramFlow(dialer, songs.NewExtractor(config.Credentials.Telegram.HistorySize), auth.TelegramOptions{
		SessionDir:  config.Credentials.Telegram.SessionDir,
		SessionName: config.Credentials.Telegram.SessionName,
		Logger:      r.logger,
	})
	defer func() {
		if err := telegram.Close(); err != nil {
			r.logger.Warn("failed to close telegram sessions", "error", err)
		}
	}()

	srv, err := server.New(config, server.Deps{
		Spotify:  auth.NewSpotifyFlow(config.Credentials.Spotify, sessions, httpClient, r.logger),
		Telegram: telegram,
		Builder:  tasks.NewPlaylistBuilder(cmd.Float("searches-per-second"), r.logger),
		Logger:   r.logger,
	})
	if err != nil {
		return err
	}

	return srv.ListenAndServe(ctx)
}
