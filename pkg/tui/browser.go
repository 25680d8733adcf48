package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quocson95/ftpfleet/pkg/browse"
	"github.com/quocson95/ftpfleet/pkg/listing"
	"github.com/quocson95/ftpfleet/pkg/storage"
)

type listedMsg struct {
	entries []listing.Entry
	cwd     string
	err     error
}

type browseOpMsg struct {
	status string
	err    error
}

type downloadProgressMsg struct {
	done, total uint64
}

// BrowserModel lists one server's directories and downloads or deletes entries
type BrowserModel struct {
	ctx     context.Context
	deps    Deps
	browser *browse.Browser
	profile storage.Profile

	cwd     string
	entries []listing.Entry
	cursor  int

	busy     string
	progress chan downloadProgressMsg
	spinner  spinner.Model

	confirmingDelete bool
	pending          listing.Entry

	statusMsg string
	err       error
	width     int
	height    int
}

// NewBrowserModel opens the browser in the server's remote directory, or in
// the login directory when it has none.
func NewBrowserModel(ctx context.Context, deps Deps, p storage.Profile) *BrowserModel {
	return &BrowserModel{
		ctx:     ctx,
		deps:    deps,
		browser: browse.New(deps.Opener, deps.Log),
		profile: p,
		cwd:     p.TargetDir(deps.Settings.Get().DefaultRemoteDir),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (m *BrowserModel) Init() tea.Cmd {
	return tea.Batch(m.list(m.cwd), m.spinner.Tick)
}

func (m *BrowserModel) confirming() bool {
	return m.confirmingDelete
}

func (m *BrowserModel) list(dir string) tea.Cmd {
	m.busy = "Listing..."
	ctx, b, p := m.ctx, m.browser, m.profile
	return func() tea.Msg {
		entries, cwd, err := b.List(ctx, p, dir)
		return listedMsg{entries: entries, cwd: cwd, err: err}
	}
}

func (m *BrowserModel) downloadDir() string {
	dir := m.deps.Settings.Get().LocalDownloadDir
	if dir == "" {
		dir = "."
	}
	return expandHome(dir)
}

func (m *BrowserModel) download(e listing.Entry) tea.Cmd {
	m.busy = "Downloading " + e.Name
	remote := browse.Join(m.cwd, e.Name)
	local := m.downloadDir()
	ch := make(chan downloadProgressMsg, 1)
	m.progress = ch
	ctx, b, p := m.ctx, m.browser, m.profile

	run := func() tea.Msg {
		defer close(ch)
		err := b.Download(ctx, p, remote, local, e.IsDir(), func(done, total uint64) {
			// Drop intermediate updates the UI has not picked up yet.
			select {
			case ch <- downloadProgressMsg{done: done, total: total}:
			default:
			}
		})
		if err != nil {
			return browseOpMsg{err: err}
		}
		abs, _ := filepath.Abs(local)
		return browseOpMsg{status: fmt.Sprintf("Downloaded %s to %s", e.Name, abs)}
	}
	return tea.Batch(run, waitForDownload(ch))
}

func waitForDownload(ch <-chan downloadProgressMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *BrowserModel) remove(e listing.Entry) tea.Cmd {
	m.busy = "Deleting " + e.Name
	remote := browse.Join(m.cwd, e.Name)
	ctx, b, p := m.ctx, m.browser, m.profile
	return func() tea.Msg {
		if err := b.Delete(ctx, p, remote, e.IsDir()); err != nil {
			return browseOpMsg{err: err}
		}
		return browseOpMsg{status: "Deleted " + e.Name}
	}
}

func (m *BrowserModel) selected() (listing.Entry, bool) {
	if m.cursor >= len(m.entries) {
		return listing.Entry{}, false
	}
	return m.entries[m.cursor], true
}

func (m *BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case listedMsg:
		m.busy = ""
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.entries = msg.entries
		m.cwd = msg.cwd
		m.cursor = 0
		return m, nil

	case downloadProgressMsg:
		if msg.total > 0 {
			m.busy = fmt.Sprintf("Downloading... %s / %s", formatBytes(msg.done), formatBytes(msg.total))
		} else {
			m.busy = fmt.Sprintf("Downloading... %s", formatBytes(msg.done))
		}
		return m, waitForDownload(m.progress)

	case browseOpMsg:
		m.busy = ""
		if msg.err != nil {
			m.err = msg.err
			m.statusMsg = ""
			return m, nil
		}
		m.err = nil
		m.statusMsg = msg.status
		return m, m.list(m.cwd)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.confirmingDelete {
			switch msg.String() {
			case "y", "Y":
				m.confirmingDelete = false
				return m, m.remove(m.pending)
			case "n", "N", "esc":
				m.confirmingDelete = false
			}
			return m, nil
		}
		if m.busy != "" {
			return m, nil
		}

		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.entries)-1 {
				m.cursor++
			}
		case "enter", "right", "l":
			if e, ok := m.selected(); ok && e.IsDir() {
				return m, m.list(browse.Join(m.cwd, e.Name))
			}
		case "backspace", "left", "h":
			return m, m.list(browse.Parent(m.cwd))
		case "r":
			return m, m.list(m.cwd)
		case "d":
			if e, ok := m.selected(); ok {
				return m, m.download(e)
			}
		case "x", "delete":
			if e, ok := m.selected(); ok {
				m.pending = e
				m.confirmingDelete = true
			}
		}
	}
	return m, nil
}

func (m *BrowserModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("🌐 %s", m.profile.DisplayName)))
	b.WriteString("\n")
	pathStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#626262")).
		Italic(true).
		MarginLeft(2)
	b.WriteString(pathStyle.Render(m.cwd))
	b.WriteString("\n\n")

	displayCount := m.height - 14
	if displayCount < 10 {
		displayCount = 10
	}
	startIdx := 0
	if m.cursor > displayCount/2 && len(m.entries) > displayCount {
		startIdx = m.cursor - displayCount/2
	}
	endIdx := min(startIdx+displayCount, len(m.entries))

	if len(m.entries) == 0 && m.busy == "" {
		b.WriteString(dimItemStyle.Render("(empty)"))
		b.WriteString("\n")
	}
	for i := startIdx; i < endIdx; i++ {
		e := m.entries[i]
		cursor := "  "
		style := itemStyle
		if m.cursor == i {
			cursor = "→ "
			style = selectedItemStyle
		}
		icon := "📄"
		size := ""
		if e.IsDir() {
			icon = "📁"
		} else if e.Size != nil {
			size = formatBytes(*e.Size)
		}
		line := fmt.Sprintf("%s %-40s %10s  %s", icon, e.Name, size, e.ModifiedAt)
		b.WriteString(cursor + style.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: open • backspace: up • d: download • x: delete • r: refresh • esc: back"))

	if m.busy != "" {
		b.WriteString("\n\n")
		b.WriteString(successStyle.Render(m.spinner.View() + " " + m.busy))
	} else if m.statusMsg != "" {
		b.WriteString("\n\n")
		b.WriteString(successStyle.Render("✓ " + m.statusMsg))
	}
	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	if m.confirmingDelete {
		popupStyle := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF0000")).
			Padding(1, 2).
			Width(60)
		what := "file"
		if m.pending.IsDir() {
			what = "directory and everything in it"
		}
		b.WriteString("\n\n")
		b.WriteString(popupStyle.Render(fmt.Sprintf("🗑️  Permanently delete the %s:\n\n'%s'\n\n(y/n)", what, m.pending.Name)))
	}

	return boxStyle.Render(b.String())
}
