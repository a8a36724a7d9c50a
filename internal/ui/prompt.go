package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned when the user leaves a prompt without answering.
var ErrCancelled = errors.New("prompt cancelled")

// PromptModel asks for a single line of input.
type PromptModel struct {
	label  string
	secret bool
	input  textinput.Model
	value  string
	err    error
	done   bool
}

// NewPrompt creates a prompt. Secret prompts mask what is typed and keep surrounding spaces.
func NewPrompt(label, placeholder string, secret bool) *PromptModel {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "› "
	ti.CharLimit = 256
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	ti.Focus()

	return &PromptModel{label: label, secret: secret, input: ti}
}

func (m *PromptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *PromptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.Type {
		case tea.KeyEnter:
			v := m.input.Value()
			if !m.secret {
				v = strings.TrimSpace(v)
			}
			if v == "" {
				m.err = errors.New("a value is required")
				return m, nil
			}
			m.value, m.err, m.done = v, nil, true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.err, m.done = ErrCancelled, true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *PromptModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(m.label))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(styles.err.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(styles.help.Render("enter to submit • esc to cancel"))
	b.WriteString("\n")
	return b.String()
}

// Value returns the submitted input, or [ErrCancelled] when the prompt was left without an answer.
func (m *PromptModel) Value() (string, error) {
	if !m.done || m.value == "" {
		return "", ErrCancelled
	}
	return m.value, nil
}

// Prompt runs a [PromptModel] until the user submits or cancels.
func Prompt(ctx context.Context, label, placeholder string, secret bool, opts ...tea.ProgramOption) (string, error) {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)

	final, err := tea.NewProgram(NewPrompt(label, placeholder, secret), opts...).Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return final.(*PromptModel).Value()
}
