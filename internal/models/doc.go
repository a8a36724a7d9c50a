// Package models defines the session entities shared by the auth flows and the session stores.
//
// A [Session] is addressed by the id carried in the browser cookie. Its Spotify side is an explicit tagged state,
// [SpotifyState], with three variants:
//   - [NoAttempt] : nothing has happened yet
//   - [PendingVerifier] : an authorization request is in flight; holds the PKCE verifier, state and return URL
//   - [Authenticated] : the code was exchanged; holds the [TokenRecord]
//
// A callback without a pending verifier is therefore a distinct, checkable condition rather than a missing field.
//
// A [TokenRecord] can only be built from a token response that carries an access token; see [NewTokenRecord].
//
// All persistent entities implement [Model]. [Store] is the persistence contract implemented by the memory, SQLite
// and Redis backends.
package models
