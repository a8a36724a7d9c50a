package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tunepipe/internal/auth"
	"github.com/desertthunder/tunepipe/internal/server"
	"github.com/desertthunder/tunepipe/internal/services"
	"github.com/desertthunder/tunepipe/internal/shared"
	"github.com/desertthunder/tunepipe/internal/songs"
	"github.com/desertthunder/tunepipe/internal/store"
	"github.com/desertthunder/tunepipe/internal/tasks"
	"github.com/desertthunder/tunepipe/internal/ui"
	"github.com/urfave/cli/v3"
)

const authorizeTimeout = 2 * time.Minute

// Pipe runs the pipeline from the terminal: Telegram login, song extraction, Spotify login and playlist build.
//
// Both logins are stored under one fixed session, so later runs reuse them.
func (r *Runner) Pipe(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if uri := cmd.String("redirect-uri"); uri != "" {
		config.Credentials.Spotify.RedirectURI = uri
	}
	if err := config.Validate(); err != nil {
		return err
	}

	plain := cmd.Bool("plain")
	if !plain {
		fileLogger, closer, err := shared.NewFileLogger(cmd.String("log-file"))
		if err != nil {
			return err
		}
		defer closer.Close()
		shared.SetLogLevel(fileLogger, config.Log.Level)
		r.logger = fileLogger
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

	telegram := auth.NewTelegramFlow(dialer, songs.NewExtractor(config.Credentials.Telegram.HistorySize), auth.TelegramOptions{
		SessionDir:  config.Credentials.Telegram.SessionDir,
		SessionName: config.Credentials.Telegram.SessionName,
		Logger:      r.logger,
	})
	defer telegram.Close()

	if err := r.telegramLogin(ctx, telegram, cmd.String("phone")); err != nil {
		return err
	}

	chat := cmd.String("chat")
	found, err := telegram.FetchSongs(ctx, cliSession, chat)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		r.writePlain("No songs found in %s\n", chat)
		return nil
	}

	httpClient := services.NewHTTPClient(config.Server.Outbound())
	spotify := auth.NewSpotifyFlow(config.Credentials.Spotify, sessions, httpClient, r.logger)
	client, err := r.spotifyClient(ctx, config, spotify)
	if err != nil {
		return err
	}

	builder := tasks.NewPlaylistBuilder(cmd.Float("searches-per-second"), r.logger)
	username, playlist := config.Credentials.Spotify.Username, cmd.String("playlist")
	build := func(ctx context.Context, list []string, progress chan<- tasks.ProgressUpdate) (*tasks.BuildResult, error) {
		return builder.Run(ctx, progress, client, username, playlist, list)
	}

	if plain {
		return r.buildPlain(ctx, chat, found, build, cmd.Bool("json"))
	}
	return r.buildInteractive(ctx, chat, playlist, found, build)
}

// telegramLogin walks the cli session through phone, code and password prompts until it is authorized.
func (r *Runner) telegramLogin(ctx context.Context, flow *auth.TelegramFlow, phone string) error {
	var err error
	if phone == "" {
		if phone, err = r.prompter.Prompt(ctx, "Telegram phone number", "+15550100", false); err != nil {
			return err
		}
	}

	state, err := flow.Login(ctx, cliSession, phone)
	for {
		switch {
		case errors.Is(err, shared.ErrSecondFactorRequired):
			password, perr := r.prompter.Prompt(ctx, "Telegram two-step verification password", "", true)
			if perr != nil {
				return perr
			}
			state, err = flow.SubmitPassword(ctx, cliSession, password)
		case err != nil:
			return err
		case state == auth.StateAwaitingCode:
			code, perr := r.prompter.Prompt(ctx, "Telegram login code", "12345", false)
			if perr != nil {
				return perr
			}
			state, err = flow.SubmitCode(ctx, cliSession, code)
		case state == auth.StateAuthorized:
			r.writePlain("✓ Telegram connected\n")
			return nil
		default:
			return fmt.Errorf("unexpected telegram state %s", state)
		}
	}
}

// spotifyClient returns a client for the stored login, running the browser login when there is none or it cannot
// be refreshed.
func (r *Runner) spotifyClient(ctx context.Context, config *shared.Config, flow *auth.SpotifyFlow) (*services.SpotifyService, error) {
	client, err := flow.Client(ctx, cliSession)
	if err != nil {
		r.logger.Warn("stored spotify login unusable", "error", err)
	} else if client != nil {
		return client, nil
	}

	if err := r.spotifyLogin(ctx, config, flow); err != nil {
		return nil, err
	}

	client, err = flow.Client(ctx, cliSession)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, shared.ErrSpotifyNotLoggedIn
	}
	return client, nil
}

// spotifyLogin runs the authorization code flow with a temporary server on the redirect URI.
func (r *Runner) spotifyLogin(ctx context.Context, config *shared.Config, flow *auth.SpotifyFlow) error {
	redirect, err := url.Parse(config.Credentials.Spotify.RedirectURI)
	if err != nil {
		return fmt.Errorf("%w: invalid redirect_uri: %v", shared.ErrInvalidConfig, err)
	}
	useTLS := redirect.Scheme == "https"
	if useTLS && (config.Server.TLSCert == "" || config.Server.TLSKey == "") {
		return fmt.Errorf("%w: an https redirect_uri needs server.tls_cert and server.tls_key; use --redirect-uri http://127.0.0.1:<port>/... instead",
			shared.ErrInvalidConfig)
	}
	path := redirect.Path
	if path == "" {
		path = "/"
	}

	authURL, err := flow.BeginLogin(ctx, cliSession, "")
	if err != nil {
		return err
	}

	handler := server.NewOAuthHandler(path, func(ctx context.Context, cb auth.Callback) error {
		_, err := flow.HandleCallback(ctx, cliSession, cb)
		return err
	})
	router := server.NewBasicRouter()
	router.Handler(handler)

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}
	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("starting callback server", "addr", ln.Addr().String(), "path", path)
		var err error
		if useTLS {
			err = httpServer.ServeTLS(ln, config.Server.TLSCert, config.Server.TLSKey)
		} else {
			err = httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser automatically", "error", err)
		r.writePlain("⚠ Could not open browser automatically.\n")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}
	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authorizeTimeout)
	defer timeout.Stop()

	select {
	case result := <-handler.Result():
		if result.Error() != nil {
			return fmt.Errorf("authorization failed: %w", result.Error())
		}
	case err := <-serverErrors:
		return fmt.Errorf("callback server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	r.writePlain("✓ Spotify connected\n")
	return nil
}

func (r *Runner) buildPlain(ctx context.Context, chat string, found []string, build ui.BuildFunc, asJSON bool) error {
	r.writePlainHeader(fmt.Sprintf("%d songs found in %s", len(found), chat))
	for i, s := range found {
		r.writePlain("%d. %s\n", i+1, s)
	}
	r.writePlain("\n")

	progress := make(chan tasks.ProgressUpdate, 64)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := build(ctx, found, progress)
	close(progress)
	<-printed
	if err != nil {
		return err
	}

	r.writePlain("\n%s", ui.RenderSummary(result))
	if asJSON {
		return r.writeJSON(result, true)
	}
	return nil
}

func (r *Runner) buildInteractive(ctx context.Context, chat, playlist string, found []string, build ui.BuildFunc) error {
	model := ui.NewModel(ctx, ui.ModelOptions{Chat: chat, Playlist: playlist, Songs: found, Build: build})

	if _, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	if model.Cancelled() {
		r.writePlain("Cancelled.\n")
		return nil
	}

	result, err := model.Result()
	if err != nil {
		return err
	}
	r.writePlain("%s", ui.RenderSummary(result))
	return nil
}
