package tasks

import (
	"fmt"

	"github.com/desertthunder/tunepipe/internal/services"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchProfile Phase = iota
	FindPlaylist
	CreatePlaylist
	SearchTracks
	AddTracks
)

func (p Phase) String() string {
	switch p {
	case FetchProfile:
		return "fetch_profile"
	case FindPlaylist:
		return "find_playlist"
	case CreatePlaylist:
		return "create_playlist"
	case SearchTracks:
		return "search_tracks"
	case AddTracks:
		return "add_tracks"
	default:
		return ""
	}
}

func fetchProfileUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: FetchProfile, Step: 1, Total: 1, Message: "Fetching Spotify profile..."}
}

func findPlaylistUpdate(name, owner string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FindPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Looking for playlist %q owned by %s...", name, owner),
	}
}

func createPlaylistUpdate(pl *services.SpotifySimplePlaylist, created bool) ProgressUpdate {
	msg := fmt.Sprintf("Using playlist: %s (ID: %s)", pl.Name, pl.ID)
	if created {
		msg = fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID)
	}
	return ProgressUpdate{Phase: CreatePlaylist, Step: 1, Total: 1, Message: msg, Data: pl}
}

func searchTrackUpdate(step, total int, query string, track *AddedTrack) ProgressUpdate {
	if track == nil {
		return ProgressUpdate{
			Phase:   SearchTracks,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s", step, total, query),
		}
	}
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s - %s", step, total, track.Artist, track.Name),
		Data:    track,
	}
}

func addTracksUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Adding %d tracks...", count),
	}
}
