package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunepipe/internal/auth"
	"github.com/desertthunder/tunepipe/internal/services"
	"github.com/desertthunder/tunepipe/internal/shared"
	"github.com/desertthunder/tunepipe/internal/tasks"
	"github.com/desertthunder/tunepipe/internal/web"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the [http.ServeMux] patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// SpotifyAuth is the Spotify side of a web session. [auth.SpotifyFlow] implements it.
type SpotifyAuth interface {
	BeginLogin(ctx context.Context, sid, nextURL string) (string, error)
	HandleCallback(ctx context.Context, sid string, cb auth.Callback) (string, error)
	Client(ctx context.Context, sid string) (*services.SpotifyService, error)
	WhoAmI(ctx context.Context, sid string) (json.RawMessage, error)
	Logout(ctx context.Context, sid string) error
}

// TelegramAuth is the Telegram side of a web session. [auth.TelegramFlow] implements it.
type TelegramAuth interface {
	Login(ctx context.Context, sid, phone string) (auth.TelegramState, error)
	SubmitCode(ctx context.Context, sid, code string) (auth.TelegramState, error)
	SubmitPassword(ctx context.Context, sid, password string) (auth.TelegramState, error)
	IsLoggedIn(ctx context.Context, sid string) bool
	FetchSongs(ctx context.Context, sid, chat string) ([]string, error)
	Logout(ctx context.Context, sid string)
}

// PlaylistBuilder collects songs into a playlist. [tasks.PlaylistBuilder] implements it.
type PlaylistBuilder interface {
	Build(ctx context.Context, api tasks.PlaylistAPI, username, playlistName string, songs []string) (*tasks.BuildResult, error)
}

// Deps are the collaborators the HTTP layer dispatches to.
type Deps struct {
	Spotify  SpotifyAuth
	Telegram TelegramAuth
	Builder  PlaylistBuilder
	Logger   *log.Logger
}

// Server is the web entry point: routing, validation and error mapping in front of the auth flows.
type Server struct {
	config   *shared.Config
	spotify  SpotifyAuth
	telegram TelegramAuth
	builder  PlaylistBuilder
	logger   *log.Logger
	handler  http.Handler
}

// New builds the server and its routes.
func New(config *shared.Config, deps Deps) (*Server, error) {
	if deps.Spotify == nil || deps.Telegram == nil || deps.Builder == nil {
		return nil, fmt.Errorf("server: spotify, telegram and builder are required")
	}
	if deps.Logger == nil {
		deps.Logger = shared.NopLogger()
	}

	policy, err := NewOriginPolicy(config.CORS)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:   config,
		spotify:  deps.Spotify,
		telegram: deps.Telegram,
		builder:  deps.Builder,
		logger:   shared.WithLogger(deps.Logger, "component", "http"),
	}

	router := NewBasicRouter()
	router.Use(Sessions(config.Session))
	s.routes(router)

	s.handler = router.Wrap(
		RequestLogger(s.logger),
		Recoverer(s.logger),
		CORS(policy),
	)
	return s, nil
}

func (s *Server) routes(r *BasicRouter) {
	r.HandleFunc(http.MethodPost, "/telegram/login", s.telegramLogin)
	r.HandleFunc(http.MethodPost, "/telegram/code", s.telegramCode)
	r.HandleFunc(http.MethodPost, "/telegram/password", s.telegramPassword)
	r.HandleFunc(http.MethodGet, "/telegram/logged_in", s.telegramLoggedIn)
	r.HandleFunc(http.MethodPost, "/telegram/songs", s.telegramSongs)

	r.HandleFunc(http.MethodGet, "/spotify/login", s.spotifyLogin)
	r.HandleFunc(http.MethodGet, "/spotify/callback", s.spotifyCallback)
	r.HandleFunc(http.MethodGet, "/spotify/me", s.spotifyMe)
	r.HandleFunc(http.MethodPost, "/spotify/add_songs", s.spotifyAddSongs)

	r.HandleFunc(http.MethodPost, "/logout", s.logout)

	r.Handle(http.MethodGet, "/", web.Handler())
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on the configured address until ctx is done, then shuts down gracefully.
//
// TLS is used when both a certificate and key are configured; the session cookie is Secure, so browsers only keep
// it over HTTPS (or on localhost).
func (s *Server) ListenAndServe(ctx context.Context) error {
	cfg := s.config.Server
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr, "tls", cfg.TLSCert != "")
		if cfg.TLSCert != "" && cfg.TLSKey != "" {
			errs <- srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			errs <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
