package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/tunepipe/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ReviewView ViewState = iota
	BuildView
	ResultView
)

const recentUpdates = 5

// BuildFunc builds the playlist from songs, reporting progress on the channel.
type BuildFunc func(ctx context.Context, songs []string, progress chan<- tasks.ProgressUpdate) (*tasks.BuildResult, error)

// ModelOptions configures a [Model].
type ModelOptions struct {
	Chat     string
	Playlist string
	Songs    []string
	Build    BuildFunc
}

// Model represents the pipe TUI state.
type Model struct {
	ctx      context.Context
	view     ViewState
	chat     string
	playlist string
	build    BuildFunc

	songList list.Model
	spinner  spinner.Model
	bar      progress.Model
	help     help.Model
	keys     keyMap

	updates   chan tasks.ProgressUpdate
	done      chan Msg
	progress  tasks.ProgressUpdate
	recent    []string
	result    *tasks.BuildResult
	err       error
	cancelled bool
}

// NewModel creates the review/build/result model for the songs found in a chat.
func NewModel(ctx context.Context, opts ModelOptions) *Model {
	playlist := opts.Playlist
	if strings.TrimSpace(playlist) == "" {
		playlist = tasks.DefaultPlaylistName
	}

	songList := list.New(songItems(opts.Songs), list.NewDefaultDelegate(), 80, 20)
	songList.Title = fmt.Sprintf("%d songs found in %s", len(opts.Songs), opts.Chat)
	songList.SetShowHelp(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.ok

	return &Model{
		ctx:      ctx,
		view:     ReviewView,
		chat:     opts.Chat,
		playlist: playlist,
		build:    opts.Build,
		songList: songList,
		spinner:  sp,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.songList.SetSize(msg.Width-4, msg.Height-6)
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ReviewView:
			return m.handleReviewKeys(msg)
		case BuildView:
			if msg.String() == "ctrl+c" {
				m.cancelled = true
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			if key.Matches(msg, m.keys.quit) || msg.Type == tea.KeyEnter {
				return m, tea.Quit
			}
			return m, nil
		}

	case spinner.TickMsg:
		if m.view != BuildView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	if m.view == ReviewView {
		var cmd tea.Cmd
		m.songList, cmd = m.songList.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		m.recent = append(m.recent, m.progress.Message)
		if len(m.recent) > recentUpdates {
			m.recent = m.recent[len(m.recent)-recentUpdates:]
		}
		return m, m.waitForProgress()

	case MsgBuildComplete:
		data := msg.data.(buildComplete)
		m.result, m.err = data.result, data.err
		m.updates, m.done = nil, nil
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleReviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.songList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.songList, cmd = m.songList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		m.cancelled = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.remove):
		if len(m.songList.Items()) > 0 {
			m.songList.RemoveItem(m.songList.Index())
		}
		return m, nil
	case key.Matches(msg, m.keys.confirm):
		if len(m.songList.Items()) == 0 || m.build == nil {
			return m, nil
		}
		m.view = BuildView
		return m, m.startBuild()
	}

	var cmd tea.Cmd
	m.songList, cmd = m.songList.Update(msg)
	return m, cmd
}

// Songs returns the songs still selected for the playlist.
func (m *Model) Songs() []string {
	items := m.songList.Items()
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(songItem); ok {
			out = append(out, s.song)
		}
	}
	return out
}

// Result returns the build outcome once the model reached [ResultView].
func (m *Model) Result() (*tasks.BuildResult, error) {
	return m.result, m.err
}

// Cancelled reports whether the user quit before the build finished.
func (m *Model) Cancelled() bool {
	return m.cancelled
}

func (m *Model) startBuild() tea.Cmd {
	songs := m.Songs()
	updates := make(chan tasks.ProgressUpdate, 64)
	done := make(chan Msg, 1)
	m.updates, m.done = updates, done

	go func() {
		result, err := m.build(m.ctx, songs, updates)
		close(updates)
		done <- buildCompleteMsg(result, err)
	}()

	return tea.Batch(m.spinner.Tick, m.waitForProgress())
}

// waitForProgress delivers the next progress update, then the completion once the channel is drained.
func (m *Model) waitForProgress() tea.Cmd {
	updates, done := m.updates, m.done
	return func() tea.Msg {
		if updates == nil {
			return nil
		}
		if update, ok := <-updates; ok {
			return progressUpdateMsg(update)
		}
		return <-done
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ReviewView:
		return m.renderReview()
	case BuildView:
		return m.renderBuild()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderReview() string {
	return fmt.Sprintf("%s\n%s", m.songList.View(), m.help.ShortHelpView(m.keys.ShortHelp()))
}

func (m *Model) renderBuild() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Building %q", m.playlist)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), phaseLabel(m.progress)))

	if m.progress.Phase == tasks.SearchTracks && m.progress.Total > 0 {
		b.WriteString(m.bar.ViewAs(float64(m.progress.Step) / float64(m.progress.Total)))
		b.WriteString("\n")
	}
	for _, line := range m.recent {
		b.WriteString(styles.help.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderResult() string {
	quit := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Build failed: %v", m.err)), quit)
	}
	return fmt.Sprintf("%s\n%s", RenderSummary(m.result), quit)
}

func phaseLabel(u tasks.ProgressUpdate) string {
	switch u.Phase {
	case tasks.FetchProfile:
		return "Fetching Spotify profile..."
	case tasks.FindPlaylist:
		return "Looking for the playlist..."
	case tasks.CreatePlaylist:
		return "Preparing the playlist..."
	case tasks.SearchTracks:
		return fmt.Sprintf("Searching tracks (%d/%d)", u.Step, u.Total)
	case tasks.AddTracks:
		return "Adding tracks..."
	default:
		return "Starting..."
	}
}

// RenderSummary describes a finished build: the playlist, the added and duplicate counts, and the songs not found.
func RenderSummary(result *tasks.BuildResult) string {
	if result == nil {
		return styles.err.Render("No result available")
	}

	verb := "updated"
	if result.Created {
		verb = "created"
	}

	var b strings.Builder
	b.WriteString(styles.ok.Render(fmt.Sprintf("✓ Playlist %s: %s", verb, result.PlaylistName)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Added %d of %d songs\n", len(result.Added), result.Total))
	if len(result.Duplicates) > 0 {
		b.WriteString(styles.help.Render(fmt.Sprintf("Skipped %d duplicate(s) of songs already added", len(result.Duplicates))))
		b.WriteString("\n")
	}

	if len(result.NotFound) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.warn.Render(fmt.Sprintf("Not found (%d):", len(result.NotFound))))
		b.WriteString("\n")
		for _, q := range result.NotFound {
			b.WriteString(fmt.Sprintf("  • %s\n", q))
		}
	}
	return b.String()
}
