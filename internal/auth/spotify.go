package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/tunepipe/internal/models"
	"github.com/desertthunder/tunepipe/internal/pkce"
	"github.com/desertthunder/tunepipe/internal/services"
	"github.com/desertthunder/tunepipe/internal/shared"
)

// SpotifyScopes are requested on every login: playlist modification, lookup of existing playlists and the profile.
var SpotifyScopes = []string{"playlist-modify-public", "playlist-read-private", "user-read-private"}

// refreshLeeway treats tokens this close to expiry as expired.
const refreshLeeway = time.Minute

// Callback holds the query parameters of the authorization redirect.
type Callback struct {
	Code  string
	State string
	Error string
}

// SpotifyFlow runs the Authorization Code + PKCE flow and keeps the resulting tokens in the session store.
type SpotifyFlow struct {
	oauth      *oauth2.Config
	store      models.Store
	apiBaseURL string
	httpClient *http.Client
	locks      *keyedMutex
	logger     *log.Logger
	now        func() time.Time
}

// NewSpotifyFlow creates a flow for the configured app. Without a client secret the client id is sent in the
// token request body, as public PKCE clients do.
func NewSpotifyFlow(cfg shared.SpotifyConfig, store models.Store, httpClient *http.Client, logger *log.Logger) *SpotifyFlow {
	authURL, tokenURL := cfg.AuthURL, cfg.TokenURL
	if authURL == "" {
		authURL = services.SpotifyAuthURL
	}
	if tokenURL == "" {
		tokenURL = services.SpotifyTokenURL
	}

	style := oauth2.AuthStyleAutoDetect
	if cfg.ClientSecret == "" {
		style = oauth2.AuthStyleInParams
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NopLogger()
	}

	return &SpotifyFlow{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       SpotifyScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: style,
			},
		},
		store:      store,
		apiBaseURL: cfg.APIBaseURL,
		httpClient: httpClient,
		locks:      newKeyedMutex(),
		logger:     shared.WithLogger(logger, "component", "spotify"),
		now:        time.Now,
	}
}

func (f *SpotifyFlow) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
}

// session loads sid, starting a fresh session when none is stored.
func (f *SpotifyFlow) session(ctx context.Context, sid string) (*models.Session, error) {
	sess, err := f.store.Get(ctx, sid)
	if errors.Is(err, shared.ErrSessionNotFound) {
		return models.NewSession(sid), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

// BeginLogin starts a login for sid and returns the authorize URL to redirect to.
//
// A new verifier and state replace any login already pending for the session; nextURL defaults to "/".
func (f *SpotifyFlow) BeginLogin(ctx context.Context, sid, nextURL string) (string, error) {
	pair, err := pkce.Generate()
	if err != nil {
		return "", err
	}
	state, err := pkce.State()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(nextURL) == "" {
		nextURL = "/"
	}

	unlock := f.locks.Lock(sid)
	defer unlock()

	sess, err := f.session(ctx, sid)
	if err != nil {
		return "", err
	}

	sess.SetSpotify(models.PendingVerifier{
		Verifier:  pair.Verifier,
		State:     state,
		NextURL:   nextURL,
		CreatedAt: f.now().UTC(),
	})
	if err := f.store.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("failed to save pending login: %w", err)
	}

	f.logger.Debug("login started", "session", sid)

	return f.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge_method", pkce.Method),
		oauth2.SetAuthURLParam("code_challenge", pair.Challenge),
	), nil
}

// HandleCallback completes a pending login with the authorization code and returns the URL saved by
// [SpotifyFlow.BeginLogin].
//
// The pending verifier is consumed whatever the outcome, so a failed callback must start over from login.
func (f *SpotifyFlow) HandleCallback(ctx context.Context, sid string, cb Callback) (string, error) {
	if cb.Error == "" && cb.Code == "" {
		return "", shared.ErrMissingCode
	}

	unlock := f.locks.Lock(sid)
	defer unlock()

	sess, err := f.session(ctx, sid)
	if err != nil {
		return "", err
	}

	pending, ok := sess.Spotify().(models.PendingVerifier)
	if !ok {
		return "", shared.ErrNoPendingLogin
	}

	sess.SetSpotify(models.NoAttempt{})
	consume := func() {
		if err := f.store.Save(ctx, sess); err != nil {
			f.logger.Error("failed to clear pending login", "session", sid, "error", err)
		}
	}

	if cb.Error != "" {
		consume()
		return "", shared.Upstream("Spotify authorization failed", errors.New(cb.Error))
	}
	if cb.Code == "" {
		consume()
		return "", shared.ErrMissingCode
	}
	if cb.State != pending.State {
		consume()
		return "", shared.ErrStateMismatch
	}

	token, err := f.oauth.Exchange(f.oauthContext(ctx), cb.Code, oauth2.VerifierOption(pending.Verifier))
	if err != nil {
		consume()
		return "", shared.Upstream("Spotify token exchange failed", err)
	}

	record, err := tokenRecord(token)
	if err != nil {
		consume()
		return "", shared.ErrMissingAccessToken
	}

	sess.SetSpotify(models.Authenticated{Token: record})
	if err := f.store.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("failed to save token: %w", err)
	}

	f.logger.Info("spotify login complete", "session", sid)
	return pending.NextURL, nil
}

// Client returns an API client for sid's token, refreshing and persisting it first when it has expired.
//
// It returns nil, nil when the session holds no token. Calls for the same session are serialized, so concurrent
// requests on an expired token refresh it once.
func (f *SpotifyFlow) Client(ctx context.Context, sid string) (*services.SpotifyService, error) {
	unlock := f.locks.Lock(sid)
	defer unlock()

	sess, err := f.store.Get(ctx, sid)
	if errors.Is(err, shared.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	record, ok := sess.Token()
	if !ok {
		return nil, nil
	}

	if record.Expired(f.now().Add(refreshLeeway)) {
		refreshed, err := f.refresh(ctx, record)
		if err != nil {
			return nil, err
		}

		sess.SetSpotify(models.Authenticated{Token: refreshed})
		if err := f.store.Save(ctx, sess); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}

		f.logger.Debug("token refreshed", "session", sid, "expiry", refreshed.Expiry)
		record = refreshed
	}

	return services.NewSpotifyService(f.apiBaseURL, record.AccessToken, f.httpClient), nil
}

func (f *SpotifyFlow) refresh(ctx context.Context, record models.TokenRecord) (models.TokenRecord, error) {
	if record.RefreshToken == "" {
		return models.TokenRecord{}, shared.ErrNoRefreshToken
	}

	// Without an access token the source always goes to the token endpoint.
	src := f.oauth.TokenSource(f.oauthContext(ctx), &oauth2.Token{RefreshToken: record.RefreshToken})
	token, err := src.Token()
	if err != nil {
		return models.TokenRecord{}, shared.Upstream("Spotify token refresh failed", err)
	}
	if token.RefreshToken == "" {
		token.RefreshToken = record.RefreshToken
	}

	refreshed, err := tokenRecord(token)
	if err != nil {
		return models.TokenRecord{}, shared.ErrMissingAccessToken
	}
	if refreshed.Scope == "" {
		refreshed.Scope = record.Scope
	}
	return refreshed, nil
}

// WhoAmI returns the provider's profile document for the logged-in user, unchanged.
func (f *SpotifyFlow) WhoAmI(ctx context.Context, sid string) (json.RawMessage, error) {
	client, err := f.Client(ctx, sid)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, shared.ErrNotAuthenticated
	}

	profile, err := client.Me(ctx)
	if err != nil {
		return nil, shared.Upstream("Spotify profile request failed", err)
	}
	return profile, nil
}

// Logout forgets the session and everything stored in it.
func (f *SpotifyFlow) Logout(ctx context.Context, sid string) error {
	unlock := f.locks.Lock(sid)
	defer unlock()

	return f.store.Delete(ctx, sid)
}

func tokenRecord(token *oauth2.Token) (models.TokenRecord, error) {
	scope, _ := token.Extra("scope").(string)
	return models.NewTokenRecord(token.AccessToken, token.RefreshToken, token.TokenType, scope, token.Expiry)
}
