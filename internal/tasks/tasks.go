package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/tunepipe/internal/services"
	"github.com/desertthunder/tunepipe/internal/shared"
)

// DefaultPlaylistName is used when a build request names no playlist.
const DefaultPlaylistName = "New Playlist"

// PlaylistAPI is the part of the Spotify Web API a build needs. [services.SpotifyService] implements it.
type PlaylistAPI interface {
	UserProfile(ctx context.Context) (*services.SpotifyUser, error)
	FindPlaylist(ctx context.Context, ownerID, name string) (*services.SpotifySimplePlaylist, error)
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*services.SpotifySimplePlaylist, error)
	SearchTracks(ctx context.Context, query string, limit int) ([]services.SpotifyTrack, error)
	AddTracks(ctx context.Context, playlistID string, uris []string) error
}

// AddedTrack is a song title and the catalog track it matched.
type AddedTrack struct {
	Query   string `json:"query"`
	TrackID string `json:"track_id"`
	URI     string `json:"uri"`
	Name    string `json:"name"`
	Artist  string `json:"artist"`
}

// BuildResult summarizes a build. Every song lands in exactly one of Added, Duplicates or NotFound, so their
// lengths sum to Total.
type BuildResult struct {
	PlaylistID   string       `json:"playlist_id"`
	PlaylistName string       `json:"playlist_name"`
	Created      bool         `json:"created"`
	Added        []AddedTrack `json:"added"`
	Duplicates   []AddedTrack `json:"duplicates"`
	NotFound     []string     `json:"not_found"`
	Total        int          `json:"total"`
}

// PlaylistBuilder matches song titles against the catalog and collects them into a playlist.
//
// Searches share one limiter, so concurrent builds together stay under the configured rate.
type PlaylistBuilder struct {
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewPlaylistBuilder creates a builder allowing searchesPerSecond catalog searches (default 5).
func NewPlaylistBuilder(searchesPerSecond float64, logger *log.Logger) *PlaylistBuilder {
	if searchesPerSecond <= 0 {
		searchesPerSecond = 5.0
	}
	if logger == nil {
		logger = shared.NopLogger()
	}
	return &PlaylistBuilder{
		limiter: rate.NewLimiter(rate.Limit(searchesPerSecond), 1),
		logger:  shared.WithLogger(logger, "component", "playlist"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (b *PlaylistBuilder) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Build runs [PlaylistBuilder.Run] without progress reporting.
func (b *PlaylistBuilder) Build(ctx context.Context, api PlaylistAPI, username, playlistName string, songs []string) (*BuildResult, error) {
	return b.Run(ctx, nil, api, username, playlistName, songs)
}

// Run adds every song that matches a catalog track to the playlist named playlistName owned by username, creating
// the playlist when it does not exist. An empty username means the logged-in user.
//
// Provider failures abort the build and are reported as [shared.ErrUpstream] errors.
func (b *PlaylistBuilder) Run(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	api PlaylistAPI,
	username, playlistName string,
	songs []string,
) (*BuildResult, error) {
	if len(songs) == 0 {
		return nil, shared.ErrNoSongs
	}
	if strings.TrimSpace(playlistName) == "" {
		playlistName = DefaultPlaylistName
	}

	owner := username
	if owner == "" {
		b.sendProgress(progress, fetchProfileUpdate())
		profile, err := api.UserProfile(ctx)
		if err != nil {
			return nil, shared.Upstream("Spotify profile request failed", err)
		}
		owner = profile.ID
	}

	b.sendProgress(progress, findPlaylistUpdate(playlistName, owner))
	playlist, err := api.FindPlaylist(ctx, owner, playlistName)
	if err != nil {
		return nil, shared.Upstream("Spotify playlist lookup failed", err)
	}

	created := false
	if playlist == nil {
		playlist, err = api.CreatePlaylist(ctx, owner, playlistName, "Songs collected from Telegram", true)
		if err != nil {
			return nil, shared.Upstream("Spotify playlist creation failed", err)
		}
		created = true
		b.logger.Info("playlist created", "id", playlist.ID, "name", playlist.Name)
	}
	b.sendProgress(progress, createPlaylistUpdate(playlist, created))

	result := &BuildResult{
		PlaylistID:   playlist.ID,
		PlaylistName: playlist.Name,
		Created:      created,
		Added:        []AddedTrack{},
		Duplicates:   []AddedTrack{},
		NotFound:     []string{},
		Total:        len(songs),
	}

	var uris []string
	seen := make(map[string]bool)
	for i, song := range songs {
		track, err := b.match(ctx, api, song)
		if err != nil {
			return nil, shared.Upstream("Spotify search failed", err)
		}
		b.sendProgress(progress, searchTrackUpdate(i+1, len(songs), song, track))

		if track == nil {
			result.NotFound = append(result.NotFound, song)
			continue
		}
		// songs matching a track already queued are reported but not added twice
		if seen[track.URI] {
			result.Duplicates = append(result.Duplicates, *track)
			continue
		}
		seen[track.URI] = true
		uris = append(uris, track.URI)
		result.Added = append(result.Added, *track)
	}

	if len(uris) > 0 {
		b.sendProgress(progress, addTracksUpdate(len(uris)))
		if err := api.AddTracks(ctx, playlist.ID, uris); err != nil {
			return nil, shared.Upstream("Spotify add tracks failed", err)
		}
	}

	b.logger.Info("playlist built",
		"playlist", playlist.ID, "added", len(result.Added), "duplicates", len(result.Duplicates), "not_found", len(result.NotFound))
	return result, nil
}

// match searches for song as typed, then as a fielded artist/track query. It returns nil when nothing matches.
func (b *PlaylistBuilder) match(ctx context.Context, api PlaylistAPI, song string) (*AddedTrack, error) {
	query := strings.TrimSpace(song)
	if query == "" {
		return nil, nil
	}

	queries := []string{query}
	if artist, title, ok := strings.Cut(query, " - "); ok {
		queries = append(queries, fmt.Sprintf("track:%s artist:%s", strings.TrimSpace(title), strings.TrimSpace(artist)))
	}

	for _, q := range queries {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		tracks, err := api.SearchTracks(ctx, q, 1)
		if err != nil {
			return nil, err
		}
		if len(tracks) == 0 {
			continue
		}

		t := tracks[0]
		artist := ""
		if len(t.Artists) > 0 {
			artist = t.Artists[0].Name
		}
		return &AddedTrack{Query: song, TrackID: t.ID, URI: t.URI, Name: t.Name, Artist: artist}, nil
	}
	return nil, nil
}
