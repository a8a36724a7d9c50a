package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"
)

var _ list.Item = songItem{}

// songItem wraps an "Artist - Title" line to implement [list.Item].
type songItem struct {
	song string
}

func (i songItem) FilterValue() string { return i.song }

func (i songItem) Title() string {
	if _, title, ok := strings.Cut(i.song, " - "); ok {
		return title
	}
	return i.song
}

func (i songItem) Description() string {
	if artist, _, ok := strings.Cut(i.song, " - "); ok {
		return artist
	}
	return ""
}

func songItems(found []string) []list.Item {
	items := make([]list.Item, len(found))
	for i, s := range found {
		items[i] = songItem{song: s}
	}
	return items
}
