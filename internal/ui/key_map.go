package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the pipe views.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	confirm key.Binding
	remove  key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		confirm: key.NewBinding(key.WithKeys("enter", "y"), key.WithHelp("enter", "build playlist")),
		remove:  key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "drop song")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.confirm, k.remove, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down},
		{k.confirm, k.remove, k.quit},
	}
}
