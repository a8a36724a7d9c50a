package server

import (
	"errors"
	"net/http"

	"github.com/desertthunder/tunepipe/internal/auth"
	"github.com/desertthunder/tunepipe/internal/shared"
)

type phoneRequest struct {
	Phone string `json:"phone"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type chatRequest struct {
	Chat string `json:"chat"`
}

type addSongsRequest struct {
	PlaylistName string   `json:"playlistName"`
	Songs        []string `json:"songs"`
}

// writeTelegramState answers a Telegram login step: 200 once authorized, 202 while a code is awaited.
func (s *Server) writeTelegramState(w http.ResponseWriter, r *http.Request, state auth.TelegramState, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	switch state {
	case auth.StateAuthorized:
		writeJSON(w, http.StatusOK, successBody{Success: true})
	case auth.StateAwaitingCode:
		writeJSON(w, http.StatusAccepted, successBody{Success: false, Next: "code"})
	case auth.StateNeeds2FA:
		s.writeError(w, r, shared.ErrSecondFactorRequired)
	default:
		s.writeError(w, r, shared.Upstream("Telegram login failed", errors.New(string(state))))
	}
}

func (s *Server) telegramLogin(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	state, err := s.telegram.Login(r.Context(), SessionID(r.Context()), req.Phone)
	s.writeTelegramState(w, r, state, err)
}

func (s *Server) telegramCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	state, err := s.telegram.SubmitCode(r.Context(), SessionID(r.Context()), req.Code)
	s.writeTelegramState(w, r, state, err)
}

func (s *Server) telegramPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	state, err := s.telegram.SubmitPassword(r.Context(), SessionID(r.Context()), req.Password)
	s.writeTelegramState(w, r, state, err)
}

func (s *Server) telegramLoggedIn(w http.ResponseWriter, r *http.Request) {
	loggedIn := s.telegram.IsLoggedIn(r.Context(), SessionID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]bool{"logged_in": loggedIn})
}

func (s *Server) telegramSongs(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	songs, err := s.telegram.FetchSongs(r.Context(), SessionID(r.Context()), req.Chat)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"songs": songs})
}

func (s *Server) spotifyLogin(w http.ResponseWriter, r *http.Request) {
	authURL, err := s.spotify.BeginLogin(r.Context(), SessionID(r.Context()), r.Referer())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) spotifyCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cb := auth.Callback{Code: q.Get("code"), State: q.Get("state"), Error: q.Get("error")}

	next, err := s.spotify.HandleCallback(r.Context(), SessionID(r.Context()), cb)
	if errors.Is(err, shared.ErrMissingCode) {
		http.Error(w, shared.Message(err), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, next, http.StatusFound)
}

func (s *Server) spotifyMe(w http.ResponseWriter, r *http.Request) {
	profile, err := s.spotify.WhoAmI(r.Context(), SessionID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeRawJSON(w, http.StatusOK, profile)
}

// spotifyAddSongs validates the song list before looking at the login, so an empty request is a 400 either way.
func (s *Server) spotifyAddSongs(w http.ResponseWriter, r *http.Request) {
	var req addSongsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.Songs) == 0 {
		s.writeError(w, r, shared.ErrNoSongs)
		return
	}

	client, err := s.spotify.Client(r.Context(), SessionID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if client == nil {
		s.writeError(w, r, shared.ErrSpotifyNotLoggedIn)
		return
	}

	result, err := s.builder.Build(r.Context(), client, s.config.Credentials.Spotify.Username, req.PlaylistName, req.Songs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// logout forgets both providers for the session. It never fails from the client's point of view.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	sid := SessionID(r.Context())

	s.telegram.Logout(r.Context(), sid)
	if err := s.spotify.Logout(r.Context(), sid); err != nil {
		s.logger.Warn("failed to delete session", "session", sid, "error", err)
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}
