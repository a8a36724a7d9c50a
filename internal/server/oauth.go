package server

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"sync"

	"github.com/desertthunder/tunepipe/internal/auth"
	"github.com/desertthunder/tunepipe/internal/shared"
	"github.com/desertthunder/tunepipe/internal/web"
)

// CallbackFunc completes a login from the callback parameters.
type CallbackFunc func(ctx context.Context, cb auth.Callback) error

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	err error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles a single authorization callback for a terminal login.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	path        string
	complete    CallbackFunc
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a handler serving GET path that passes the callback to complete.
func NewOAuthHandler(path string, complete CallbackFunc) *OAuthHandler {
	return &OAuthHandler{
		path:       path,
		complete:   complete,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"GET " + h.path}
}

// ServeHTTP handles the OAuth callback request. Only the first request carrying a code or an error is processed;
// bare requests such as browser prefetches are turned away without using it up.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cb := auth.Callback{Code: q.Get("code"), State: q.Get("state"), Error: q.Get("error")}
	if cb.Code == "" && cb.Error == "" {
		http.Error(w, shared.Message(shared.ErrMissingCode), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	err := h.complete(r.Context(), cb)
	h.Send(OAuthResult{err: err})

	if err != nil {
		status := StatusFor(err)
		if errors.Is(err, shared.ErrUpstream) {
			status = http.StatusBadGateway
		}
		http.Error(w, shared.Message(err), status)
		return
	}

	page, err := fs.ReadFile(web.Files(), "connected.html")
	if err != nil {
		w.Write([]byte("Spotify connected. You can close this window."))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}
