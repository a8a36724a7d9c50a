// Package web serves the static single-page front end.
//
// The page drives the JSON API: Telegram login (phone, code, password), song extraction from a chat, Spotify login
// through the redirect flow, and playlist building. Everything it needs is embedded in the binary.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var static embed.FS

// Files returns the embedded static tree rooted at its top directory.
func Files() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Handler serves the embedded files, with index.html at "/".
func Handler() http.Handler {
	return http.FileServerFS(Files())
}
