// Package server is the HTTP layer: routing, middleware, validation and error mapping in front of the Spotify and
// Telegram auth flows.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] registers method patterns on
// an [http.ServeMux]; route middleware ([Sessions]) is applied per route, and [BasicRouter.Wrap] adds outer
// middleware ([RequestLogger], [Recoverer], [CORS]) that also sees preflight and unmatched requests.
//
// # Sessions
//
// Each browser gets a uuid in a Secure, HttpOnly, SameSite=None cookie with a rolling lifetime. Handlers read it
// with [SessionID] and pass it to the flows, which key everything on it.
//
// # Errors
//
// Handlers return JSON bodies of the form {"error": "..."}. [StatusFor] maps error kinds: validation is 400,
// missing or unsupported authentication is 401, anything else is 500. Upstream failures carry the provider's
// message; unclassified errors are logged and reported generically.
//
// # Terminal Logins
//
// [OAuthHandler] serves a single authorization callback on a temporary local server for the pipe command, and
// reports completion through a channel.
package server
