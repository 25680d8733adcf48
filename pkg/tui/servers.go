package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quocson95/ftpfleet/pkg/browse"
	"github.com/quocson95/ftpfleet/pkg/storage"
)

// ServerEditMsg opens the edit screen; index -1 adds a new server
type ServerEditMsg struct {
	index   int
	profile storage.Profile
}

// ServerBrowseMsg opens the remote browser on a server
type ServerBrowseMsg struct {
	profile storage.Profile
}

type testResultMsg struct {
	host    string
	ok      bool
	message string
}

type statusClearMsg struct{}

// ServersModel manages the server list
type ServersModel struct {
	ctx     context.Context
	deps    Deps
	servers []storage.Profile
	cursor  int
	err     error

	statusMsg  string
	statusOK   bool
	testing    map[string]bool
	browseMode bool // selecting a server opens the browser
}

// NewServersModel creates the server list screen
func NewServersModel(ctx context.Context, deps Deps, browseMode bool) *ServersModel {
	return &ServersModel{
		ctx:        ctx,
		deps:       deps,
		servers:    deps.Servers.List(),
		testing:    make(map[string]bool),
		browseMode: browseMode,
	}
}

func (m *ServersModel) Init() tea.Cmd {
	return nil
}

func (m *ServersModel) selected() (storage.Profile, bool) {
	if len(m.servers) == 0 || m.cursor >= len(m.servers) {
		return storage.Profile{}, false
	}
	return m.servers[m.cursor], true
}

func (m *ServersModel) reload() {
	m.servers = m.deps.Servers.List()
	if m.cursor >= len(m.servers) && m.cursor > 0 {
		m.cursor = len(m.servers) - 1
	}
}

func (m *ServersModel) testConnection(p storage.Profile) tea.Cmd {
	m.testing[p.Host] = true
	b := browse.New(m.deps.Opener, m.deps.Log)
	ctx := m.ctx
	return func() tea.Msg {
		ok, message := b.TestConnection(ctx, p)
		return testResultMsg{host: p.Host, ok: ok, message: message}
	}
}

func (m *ServersModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.servers)-1 {
				m.cursor++
			}

		case "enter":
			p, ok := m.selected()
			if !ok {
				return m, nil
			}
			if m.browseMode {
				return m, func() tea.Msg { return ServerBrowseMsg{profile: p} }
			}
			i := m.cursor
			return m, func() tea.Msg { return ServerEditMsg{index: i, profile: p} }

		case " ":
			if _, ok := m.selected(); ok {
				if err := m.deps.Servers.SetEnabled(m.cursor, !m.servers[m.cursor].Enabled); err != nil {
					m.err = err
				}
				m.reload()
			}

		case "t":
			if p, ok := m.selected(); ok {
				return m, m.testConnection(p)
			}

		case "T":
			var cmds []tea.Cmd
			for _, p := range m.servers {
				cmds = append(cmds, m.testConnection(p))
			}
			return m, tea.Batch(cmds...)

		case "b":
			if p, ok := m.selected(); ok {
				return m, func() tea.Msg { return ServerBrowseMsg{profile: p} }
			}

		case "e":
			if p, ok := m.selected(); ok {
				i := m.cursor
				return m, func() tea.Msg { return ServerEditMsg{index: i, profile: p} }
			}

		case "a":
			return m, func() tea.Msg { return ServerEditMsg{index: -1, profile: storage.NewProfile("")} }

		case "d":
			if p, ok := m.selected(); ok {
				if err := m.deps.Servers.Remove(m.cursor); err != nil {
					m.err = err
					return m, nil
				}
				m.reload()
				m.statusMsg, m.statusOK = fmt.Sprintf("Removed %s", p.DisplayName), true
				return m, clearStatusAfter(3 * time.Second)
			}
		}

	case testResultMsg:
		delete(m.testing, msg.host)
		m.statusMsg, m.statusOK = fmt.Sprintf("%s: %s", msg.host, msg.message), msg.ok
		return m, nil

	case statusClearMsg:
		m.statusMsg = ""
		return m, nil
	}

	return m, nil
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return statusClearMsg{} })
}

func (m *ServersModel) View() string {
	var b strings.Builder

	title := "📚 Servers"
	if m.browseMode {
		title = "🌐 Browse Server"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	if len(m.servers) == 0 {
		b.WriteString(helpStyle.Render("No servers yet. Press 'a' to add one."))
	}
	for i, p := range m.servers {
		cursor := "  "
		style := itemStyle
		if !p.Enabled {
			style = dimItemStyle
		}
		if m.cursor == i {
			cursor = "→ "
			style = selectedItemStyle
		}

		check := "[x]"
		if !p.Enabled {
			check = "[ ]"
		}
		info := fmt.Sprintf("%s %s (%s://%s@%s)", check, p.DisplayName, p.Protocol, p.Username, p.Address())
		if dir := strings.TrimSpace(p.RemoteBaseDir); dir != "" {
			info += " → " + dir
		}
		if m.testing[p.Host] {
			info += " ⏳"
		}
		b.WriteString(cursor + style.Render(info))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.browseMode {
		b.WriteString(helpStyle.Render("↑/↓ move • enter: browse • t: test • e: edit • esc: back"))
	} else {
		b.WriteString(helpStyle.Render("↑/↓ move • space: enable/disable • enter/e: edit • a: add • d: delete • t/T: test one/all • b: browse • esc: back"))
	}

	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}
	if m.statusMsg != "" {
		b.WriteString("\n\n")
		if m.statusOK {
			b.WriteString(successStyle.Render(m.statusMsg))
		} else {
			b.WriteString(errorStyle.Render(m.statusMsg))
		}
	}

	return boxStyle.Render(b.String())
}
