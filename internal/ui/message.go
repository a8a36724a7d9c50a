package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/tunepipe/internal/tasks"
)

// MsgKind enumerates the message types of the pipe views.
type MsgKind int

// Msg represents all messages produced by [Model] commands (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var _ tea.Msg = Msg{}

const (
	MsgProgressUpdate MsgKind = iota
	MsgBuildComplete
)

type buildComplete struct {
	result *tasks.BuildResult
	err    error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// buildCompleteMsg is the constructor for [MsgBuildComplete]
func buildCompleteMsg(result *tasks.BuildResult, err error) Msg {
	return Msg{kind: MsgBuildComplete, data: buildComplete{result: result, err: err}}
}
