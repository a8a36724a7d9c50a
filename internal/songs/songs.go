// package songs extracts song titles from chat history.
//
// A song is a line of the form "Artist - Title". En and em dashes are accepted as separators, list markers and
// numbering are stripped, and lines carrying Spotify links are skipped since those tracks are already on Spotify.
package songs

import (
	"context"
	"regexp"
	"strings"
)

// DefaultLimit is how many recent messages are read when an [Extractor] has no limit set.
const DefaultLimit = 200

// HistorySource reads the text of recent messages in a chat, newest first.
type HistorySource interface {
	History(ctx context.Context, chat string, limit int) ([]string, error)
}

// Extractor turns chat history into a list of song titles.
type Extractor struct {
	Limit int
}

func NewExtractor(limit int) *Extractor {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Extractor{Limit: limit}
}

var (
	listMarker = regexp.MustCompile(`^(?:\d+[.)]\s*|[-*•]\s+)`)
	separator  = regexp.MustCompile(`\s+[-–—]\s+`)
	spotifyRef = regexp.MustCompile(`(?i)open\.spotify\.com/|spotify:track:`)
	anyURL     = regexp.MustCompile(`(?i)https?://\S+`)
)

// Extract reads chat through src and returns the songs found, oldest first and without duplicates.
// A chat without songs gives an empty list.
func (e *Extractor) Extract(ctx context.Context, src HistorySource, chat string) ([]string, error) {
	limit := e.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	messages, err := src.History(ctx, chat, limit)
	if err != nil {
		return nil, err
	}

	// History is newest first.
	ordered := make([]string, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		ordered = append(ordered, messages[i])
	}
	return Parse(ordered...), nil
}

// Parse returns the song titles found in messages, in order and without duplicates.
func Parse(messages ...string) []string {
	found := []string{}
	seen := make(map[string]bool)

	for _, msg := range messages {
		for _, line := range strings.Split(msg, "\n") {
			song, ok := ParseLine(line)
			if !ok {
				continue
			}
			key := strings.ToLower(song)
			if seen[key] {
				continue
			}
			seen[key] = true
			found = append(found, song)
		}
	}
	return found
}

// ParseLine normalizes one line to "Artist - Title" and reports whether it looks like a song.
func ParseLine(line string) (string, bool) {
	if spotifyRef.MatchString(line) {
		return "", false
	}

	line = anyURL.ReplaceAllString(line, "")
	line = strings.TrimSpace(line)
	line = listMarker.ReplaceAllString(line, "")
	line = strings.Trim(line, " \t\"'“”")

	parts := separator.Split(line, 2)
	if len(parts) != 2 {
		return "", false
	}

	artist := strings.TrimSpace(parts[0])
	title := strings.TrimSpace(parts[1])
	if artist == "" || title == "" {
		return "", false
	}
	return artist + " - " + title, true
}
