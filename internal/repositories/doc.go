// Package repositories implements SQLite persistence for web sessions.
//
// A session row keeps the Spotify auth state as a JSON document next to indexed timestamps, so expired rows can be
// purged without decoding them.
//
// Key Implementations:
//   - [SessionRepository] : session CRUD and expiry purging over the sessions table
//   - [OpenSessionRepository] : opens and migrates the configured database
package repositories
