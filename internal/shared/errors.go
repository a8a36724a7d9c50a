package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Every error surfaced to an HTTP client matches exactly one of these with [errors.Is].
var (
	ErrValidation      = errors.New("validation failed")
	ErrAuthRequired    = errors.New("authentication required")
	ErrUpstream        = errors.New("upstream request failed")
	ErrUnsupportedFlow = errors.New("unsupported authentication flow")
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Session store errors
	ErrSessionNotFound = fmt.Errorf("session not found")
	ErrTimeout         = fmt.Errorf("operation timed out")

	// Input validation errors
	ErrMissingPhone    = NewError(ErrValidation, "Phone number required")
	ErrMissingCode     = NewError(ErrValidation, "No code returned.")
	ErrMissingLogin    = NewError(ErrValidation, "Login code required")
	ErrMissingPassword = NewError(ErrValidation, "Password required")
	ErrMissingChat     = NewError(ErrValidation, "No chat specified")
	ErrNoSongs         = NewError(ErrValidation, "No songs provided")
	ErrInvalidBody     = NewError(ErrValidation, "Invalid JSON body")
	ErrNoPendingLogin  = NewError(ErrValidation, "No login in progress for this session")
	ErrStateMismatch   = NewError(ErrValidation, "Invalid state parameter")
	ErrNoCodePending   = NewError(ErrValidation, "No login code requested for this session")
	ErrNo2FAPending    = NewError(ErrValidation, "No second factor requested for this session")

	// Authentication errors
	ErrNotAuthenticated     = NewError(ErrAuthRequired, "Not logged in")
	ErrSpotifyNotLoggedIn   = NewError(ErrAuthRequired, "Not logged in to Spotify")
	ErrTelegramNotLoggedIn  = NewError(ErrAuthRequired, "Telegram not logged in")
	ErrSecondFactorRequired = NewError(ErrUnsupportedFlow, "2FA password needed")

	// Upstream errors
	ErrMissingAccessToken = NewError(ErrUpstream, "token endpoint returned no access token")
	ErrNoRefreshToken     = NewError(ErrUpstream, "no refresh token available")
)

// Error is a classified error. Kind is one of the package error kinds and Msg is safe to show to clients.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

// NewError creates an [Error] of the given kind.
func NewError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Upstream wraps a provider failure as an [ErrUpstream] error whose message is the provider's.
func Upstream(msg string, err error) *Error {
	return &Error{Kind: ErrUpstream, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of e, so callers can match either the sentinel or its kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Message returns the client-facing message of err.
//
// Classified errors carry their own message (upstream errors include the provider message); anything else is
// reported generically.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if errors.Is(e.Kind, ErrUpstream) && e.Err != nil {
			return e.Error()
		}
		return e.Msg
	}
	return "internal server error"
}
