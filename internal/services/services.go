package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// APIError is a non-2xx response from a provider HTTP API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spotify API error: status %d", e.Status)
	}
	return fmt.Sprintf("spotify API error: status %d: %s", e.Status, e.Message)
}

// newAPIError extracts the message from Spotify's error envelope, {"error": {"status": n, "message": "..."}},
// falling back to the raw body.
func newAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(body, &envelope); err == nil {
		msg = envelope.Error.Message
	}
	if msg == "" && len(body) > 0 && len(body) < 512 {
		msg = string(body)
	}
	return &APIError{Status: status, Message: msg}
}

// NewHTTPClient returns the client used for every outbound provider call.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
