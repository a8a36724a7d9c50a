// Package ui implements the interactive terminal pieces of the pipe command using bubbletea's Elm architecture.
//
// Two models are provided:
//   - [PromptModel] asks for one line of input (phone number, login code, 2FA password) with a
//     bubbles/textinput field. [Prompt] runs it as a standalone program.
//   - [Model] walks through [ReviewView] (the songs found in the chat), [BuildView] (live progress while the
//     playlist is built) and [ResultView] (what was added and what was not found).
//
// Progress updates flow through a channel from the playlist builder, so the view never blocks on Spotify calls.
package ui
