// Package tasks builds Spotify playlists from song titles with progress reporting.
//
// # Core Operation
//
// [PlaylistBuilder.Run] takes a list of "Artist - Title" strings and:
//
//  1. Resolves the owner (the configured username, or the profile id from /me)
//  2. Finds the owner's playlist with the requested name, or creates it (public)
//  3. Searches each title in the catalog, throttled by a [rate.Limiter]
//  4. Adds the matches in batches of 100
//
// The [BuildResult] lists every added track with the query that found it, and the titles that matched nothing.
//
// # Progress Reporting
//
// Operations accept an optional channel of [ProgressUpdate]s. Updates use select with default so a slow reader
// never blocks a build.
package tasks
