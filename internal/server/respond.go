package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/desertthunder/tunepipe/internal/shared"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Next  string `json:"next,omitempty"`
}

type successBody struct {
	Success bool   `json:"success"`
	Next    string `json:"next,omitempty"`
}

// StatusFor maps an error to its HTTP status by kind.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrAuthRequired), errors.Is(err, shared.ErrUnsupportedFlow):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeRawJSON(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError answers with the error's status and client message. Server-side failures are logged in full.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	body := errorBody{Error: shared.Message(err)}
	if errors.Is(err, shared.ErrSecondFactorRequired) {
		body.Next = "password"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", r.URL.Path, "error", err, "request_id", RequestID(r.Context()))
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, body)
}

// decodeBody reads a JSON object into v. An empty body decodes as {}.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &shared.Error{Kind: shared.ErrValidation, Msg: shared.ErrInvalidBody.Msg, Err: err}
	}
	return nil
}
