package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SpotifyState is the Spotify side of a session. The concrete types are [NoAttempt], [PendingVerifier] and
// [Authenticated].
type SpotifyState interface {
	Kind() string
	isSpotifyState()
}

// NoAttempt is the state of a session that has not started a Spotify login.
type NoAttempt struct{}

// PendingVerifier is the state between redirecting to the authorize endpoint and the callback.
type PendingVerifier struct {
	Verifier  string    `json:"code_verifier"`
	State     string    `json:"state"`
	NextURL   string    `json:"next_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Authenticated is the state after a successful code exchange.
type Authenticated struct {
	Token TokenRecord `json:"token_info"`
}

func (NoAttempt) Kind() string       { return "none" }
func (PendingVerifier) Kind() string { return "pending" }
func (Authenticated) Kind() string   { return "authenticated" }

func (NoAttempt) isSpotifyState()       {}
func (PendingVerifier) isSpotifyState() {}
func (Authenticated) isSpotifyState()   {}

// TokenRecord is the Spotify token as held in a session.
type TokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	Expiry       time.Time `json:"expires_at"`
}

// ErrEmptyAccessToken is returned by [NewTokenRecord] for a token response without an access token.
var ErrEmptyAccessToken = errors.New("token response has no access token")

// NewTokenRecord builds a record from a token endpoint response. It is the only constructor the flows use, so a
// record without an access token cannot reach a session.
func NewTokenRecord(accessToken, refreshToken, tokenType, scope string, expiry time.Time) (TokenRecord, error) {
	if strings.TrimSpace(accessToken) == "" {
		return TokenRecord{}, ErrEmptyAccessToken
	}
	return TokenRecord{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenType,
		Scope:        scope,
		Expiry:       expiry,
	}, nil
}

// Expired reports whether the token is unusable at now. A zero expiry never expires.
func (t TokenRecord) Expired(now time.Time) bool {
	if t.Expiry.IsZero() {
		return false
	}
	return !now.Before(t.Expiry)
}

// Session is a browser session.
type Session struct {
	id        string
	spotify   SpotifyState
	createdAt time.Time
	updatedAt time.Time
	expiresAt time.Time
}

// NewSession creates an empty session with the given id.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		id:        id,
		spotify:   NoAttempt{},
		createdAt: now,
		updatedAt: now,
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) UpdatedAt() time.Time { return s.updatedAt }
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// Spotify returns the Spotify state, never nil.
func (s *Session) Spotify() SpotifyState {
	if s.spotify == nil {
		return NoAttempt{}
	}
	return s.spotify
}

// SetSpotify replaces the Spotify state.
func (s *Session) SetSpotify(state SpotifyState) {
	if state == nil {
		state = NoAttempt{}
	}
	s.spotify = state
	s.updatedAt = time.Now().UTC()
}

// Touch extends the session so it expires ttl after now. Stores call it on every save.
func (s *Session) Touch(now time.Time, ttl time.Duration) {
	s.expiresAt = now.Add(ttl).UTC()
}

// Expired reports whether the session's expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return !s.expiresAt.IsZero() && !now.Before(s.expiresAt)
}

// Token returns the token record when the session is authenticated.
func (s *Session) Token() (TokenRecord, bool) {
	if a, ok := s.Spotify().(Authenticated); ok {
		return a.Token, true
	}
	return TokenRecord{}, false
}

// Validate checks if the session's data is valid.
func (s *Session) Validate() error {
	if s.id == "" {
		return fmt.Errorf("session id is required")
	}
	switch st := s.Spotify().(type) {
	case PendingVerifier:
		if st.Verifier == "" {
			return fmt.Errorf("pending login without code verifier")
		}
	case Authenticated:
		if st.Token.AccessToken == "" {
			return fmt.Errorf("authenticated session without access token")
		}
	}
	return nil
}

type sessionJSON struct {
	ID        string           `json:"id"`
	Spotify   spotifyStateJSON `json:"spotify"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

type spotifyStateJSON struct {
	Kind    string           `json:"kind"`
	Pending *PendingVerifier `json:"pending,omitempty"`
	Auth    *Authenticated   `json:"authenticated,omitempty"`
}

// MarshalJSON encodes the session with its Spotify state tagged by kind.
func (s *Session) MarshalJSON() ([]byte, error) {
	state := spotifyStateJSON{Kind: s.Spotify().Kind()}
	switch st := s.Spotify().(type) {
	case PendingVerifier:
		state.Pending = &st
	case Authenticated:
		state.Auth = &st
	}

	return json.Marshal(sessionJSON{
		ID:        s.id,
		Spotify:   state,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
		ExpiresAt: s.expiresAt,
	})
}

// UnmarshalJSON decodes a session written by [Session.MarshalJSON].
func (s *Session) UnmarshalJSON(data []byte) error {
	var raw sessionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var state SpotifyState = NoAttempt{}
	switch raw.Spotify.Kind {
	case "", "none":
	case "pending":
		if raw.Spotify.Pending == nil {
			return fmt.Errorf("pending spotify state without payload")
		}
		state = *raw.Spotify.Pending
	case "authenticated":
		if raw.Spotify.Auth == nil {
			return fmt.Errorf("authenticated spotify state without payload")
		}
		state = *raw.Spotify.Auth
	default:
		return fmt.Errorf("unknown spotify state %q", raw.Spotify.Kind)
	}

	*s = Session{
		id:        raw.ID,
		spotify:   state,
		createdAt: raw.CreatedAt,
		updatedAt: raw.UpdatedAt,
		expiresAt: raw.ExpiresAt,
	}
	return nil
}

// Clone returns a copy that can be mutated without affecting s. State values are immutable structs.
func (s *Session) Clone() *Session {
	c := *s
	return &c
}
