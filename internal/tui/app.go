// Package tui is the rendering shell: a pure projection of controller
// snapshots plus key handling. No session or conversation logic lives
// here.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/narekokr/text-guided-audio-split/internal/controller"
	"github.com/narekokr/text-guided-audio-split/internal/identity"
	"github.com/narekokr/text-guided-audio-split/internal/model/chat"
	"github.com/narekokr/text-guided-audio-split/pkg/utils"
)

type view int

const (
	viewChat view = iota
	viewSessions
)

// changedMsg signals that the controller state moved.
type changedMsg struct{}

// opDoneMsg reports the outcome of a controller call issued by a key.
type opDoneMsg struct{ err error }

// Model is the bubbletea model of the shell.
type Model struct {
	ctx     context.Context
	ctrl    *controller.Controller
	gate    *identity.Gate
	base    string
	updates chan struct{}

	snap     controller.Snapshot
	view     view
	cursor   int
	input    textinput.Model
	vp       viewport.Model
	width    int
	height   int
	lastErr  string
	quitting bool
}

// NewModel builds the shell over an already-wired controller and gate.
// ctx scopes every controller call the shell issues; cancelling it
// aborts whatever is in flight when the program exits.
func NewModel(ctx context.Context, ctrl *controller.Controller, gate *identity.Gate, base string) *Model {
	ti := textinput.New()
	ti.Placeholder = "message, or /upload <file>, /new, /sessions, /login, /logout"
	ti.CharLimit = 500
	ti.Focus()

	m := &Model{
		ctx:     ctx,
		ctrl:    ctrl,
		gate:    gate,
		base:    base,
		updates: make(chan struct{}, 1),
		input:   ti,
		vp:      viewport.New(80, 20),
		width:   100,
		height:  30,
	}

	ctrl.Notify(func() {
		select {
		case m.updates <- struct{}{}:
		default:
		}
	})

	m.snap = ctrl.Snapshot()
	return m
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		<-m.updates
		return changedMsg{}
	}
}

func (m *Model) Init() tea.Cmd {
	return m.waitForChange()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width - 2
		m.vp.Height = msg.Height - 6
		m.refresh()
		return m, nil

	case changedMsg:
		m.refresh()
		return m, m.waitForChange()

	case opDoneMsg:
		if msg.err != nil {
			m.lastErr = msg.err.Error()
		} else {
			m.lastErr = ""
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "tab":
			if m.view == viewChat {
				m.view = viewSessions
			} else {
				m.view = viewChat
			}
			return m, nil
		}
		if m.view == viewSessions {
			return m.updateSessions(msg)
		}
		return m.updateChat(msg)
	}
	return m, nil
}

func (m *Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" {
		line := strings.TrimSpace(m.input.Value())
		m.input.SetValue("")
		if line == "" {
			return m, nil
		}
		return m, m.dispatch(line)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updateSessions(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.snap.Sessions)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor < len(m.snap.Sessions) {
			sid := m.snap.Sessions[m.cursor].ID
			m.view = viewChat
			return m, m.run(func(ctx context.Context) error {
				return m.ctrl.SwitchSession(ctx, sid)
			})
		}
	case "r":
		return m, m.run(m.ctrl.RefreshSessions)
	}
	return m, nil
}

// dispatch maps one input line onto a controller operation.
func (m *Model) dispatch(line string) tea.Cmd {
	switch {
	case line == "/login":
		return m.run(m.gate.BeginSignIn)
	case line == "/logout":
		return m.run(m.gate.SignOut)
	case line == "/new":
		return m.run(m.ctrl.Reset)
	case line == "/sessions":
		m.view = viewSessions
		return m.run(m.ctrl.RefreshSessions)
	case strings.HasPrefix(line, "/upload "):
		file := strings.TrimSpace(strings.TrimPrefix(line, "/upload"))
		return m.run(func(ctx context.Context) error {
			return m.ctrl.Upload(ctx, file)
		})
	case strings.HasPrefix(line, "/open "):
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "/open")))
		if err != nil || n < 1 || n > len(m.snap.Sessions) {
			m.lastErr = "no such session"
			return nil
		}
		sid := m.snap.Sessions[n-1].ID
		return m.run(func(ctx context.Context) error {
			return m.ctrl.SwitchSession(ctx, sid)
		})
	default:
		return m.run(func(ctx context.Context) error {
			return m.ctrl.Send(ctx, line)
		})
	}
}

func (m *Model) run(op func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{err: op(m.ctx)}
	}
}

func (m *Model) refresh() {
	m.snap = m.ctrl.Snapshot()
	m.vp.SetContent(m.renderTranscript())
	m.vp.GotoBottom()
	if m.cursor >= len(m.snap.Sessions) {
		m.cursor = 0
	}
}

func (m *Model) renderTranscript() string {
	var b strings.Builder
	for _, msg := range m.snap.Messages {
		switch msg.Role {
		case chat.RoleUser:
			b.WriteString(userStyle.Render("you") + "  " + msg.Content + "\n")
		default:
			b.WriteString(assistantStyle.Render("assistant") + "  " + msg.Content + "\n")
			for _, a := range msg.Artifacts {
				link := utils.ResolveLocator(m.base, a.Locator)
				b.WriteString("  " + artifactStyle.Render(
					fmt.Sprintf("[%s] %s  %s", a.Kind, utils.DownloadName(a.Label), link)) + "\n")
			}
		}
	}
	return b.String()
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	header := titleStyle.Render("SoundScribe")
	if m.snap.Filename != "" {
		header += dimStyle.Render("  now chatting about: " + m.snap.Filename)
	}

	var body string
	switch {
	case m.snap.State == controller.StateUnauthenticated:
		body = dimStyle.Render("\n  Signed out. Type /login to begin.\n")
		if m.snap.AuthError != "" {
			body += "\n" + errorStyle.Render("  sign-in failed: "+m.snap.AuthError) + "\n"
		}
	case m.view == viewSessions:
		body = m.renderSessions()
	default:
		body = m.vp.View()
	}

	status := statusBarStyle.Width(m.width).Render(m.statusLine())

	return lipgloss.JoinVertical(lipgloss.Left,
		header, body, m.input.View(), status)
}

func (m *Model) renderSessions() string {
	if len(m.snap.Sessions) == 0 {
		return dimStyle.Render("\n  No prior sessions. Press r to refresh.\n")
	}

	var b strings.Builder
	b.WriteString("\n")
	for i, s := range m.snap.Sessions {
		line := fmt.Sprintf("%2d. %s  %s", i+1, s.ID, s.CreatedAt.Format("01-02 15:04"))
		if i == m.cursor {
			b.WriteString(selectedStyle.Render(line) + "\n")
		} else {
			b.WriteString(normalStyle.Render(line) + "\n")
		}
	}
	return b.String()
}

func (m *Model) statusLine() string {
	parts := []string{m.snap.State.String()}
	if m.snap.Identity != nil {
		parts = append(parts, m.snap.Identity.Label)
	}
	if m.snap.AudioURL != "" {
		parts = append(parts, "audio: "+m.snap.AudioURL)
	}
	if m.lastErr != "" {
		parts = append(parts, errorStyle.Render(m.lastErr))
	}
	return strings.Join(parts, "  │  ")
}
