package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quocson95/ftpfleet/pkg/fanout"
)

type distributeEventMsg fanout.Event

type distributeDoneMsg struct {
	results []fanout.Result
}

// hostRow is the live state of one endpoint during a run
type hostRow struct {
	name    string
	host    string
	done    uint64
	total   uint64
	message string
	code    fanout.Code
	bar     progress.Model
}

func (r *hostRow) percent() float64 {
	if r.code == fanout.Success {
		return 1
	}
	if r.total == 0 {
		return 0
	}
	return float64(r.done) / float64(r.total)
}

// DistributeModel picks local paths and a remote directory, then uploads to
// every enabled server with one progress row per server.
type DistributeModel struct {
	parent context.Context
	deps   Deps

	pathInput textinput.Model
	dirInput  textinput.Model
	focused   int // 0 path, 1 remote dir, -1 none
	paths     []string

	run      *fanout.Run
	sink     *fanout.ChannelSink
	stop     context.CancelFunc
	rows     []*hostRow
	rowIndex map[string]int
	started  time.Time
	results  []fanout.Result
	spinner  spinner.Model

	err    error
	width  int
	height int
}

// NewDistributeModel creates the distribute screen
func NewDistributeModel(ctx context.Context, deps Deps) *DistributeModel {
	pathInput := textinput.New()
	pathInput.Prompt = "Add path: "
	pathInput.Placeholder = "/path/to/file-or-dir (enter to add)"
	pathInput.CharLimit = 4096
	pathInput.Width = 60
	pathInput.Focus()

	dirInput := textinput.New()
	dirInput.Prompt = "Remote dir: "
	dirInput.Placeholder = "(login directory)"
	dirInput.CharLimit = 1024
	dirInput.Width = 60
	dirInput.SetValue(deps.Settings.Get().DefaultRemoteDir)

	return &DistributeModel{
		parent:    ctx,
		deps:      deps,
		pathInput: pathInput,
		dirInput:  dirInput,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (m *DistributeModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *DistributeModel) running() bool {
	return m.run != nil && m.results == nil
}

// editing reports whether keys go to a text input
func (m *DistributeModel) editing() bool {
	return !m.running() && m.focused >= 0
}

func (m *DistributeModel) cancel() {
	if m.stop != nil {
		m.stop()
	}
}

func (m *DistributeModel) focus(i int) {
	m.focused = i
	m.pathInput.Blur()
	m.dirInput.Blur()
	switch i {
	case 0:
		m.pathInput.Focus()
	case 1:
		m.dirInput.Focus()
	}
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}

func (m *DistributeModel) addPath() {
	p := strings.TrimSpace(m.pathInput.Value())
	if p == "" {
		return
	}
	p = expandHome(p)
	if _, err := os.Stat(p); err != nil {
		m.err = err
		return
	}
	abs, err := filepath.Abs(p)
	if err == nil {
		p = abs
	}
	for _, existing := range m.paths {
		if existing == p {
			m.pathInput.Reset()
			return
		}
	}
	m.paths = append(m.paths, p)
	m.pathInput.Reset()
	m.err = nil
}

// start snapshots the server list and dispatches one job per server
func (m *DistributeModel) start() tea.Cmd {
	if len(m.paths) == 0 {
		m.err = fmt.Errorf("add at least one local path")
		return nil
	}
	profiles := m.deps.Servers.List()
	if len(profiles) == 0 {
		m.err = fmt.Errorf("no servers configured")
		return nil
	}

	m.err = nil
	m.results = nil
	m.focus(-1)
	m.rows = make([]*hostRow, 0, len(profiles))
	m.rowIndex = make(map[string]int, len(profiles))
	for _, p := range profiles {
		if _, dup := m.rowIndex[p.Host]; dup {
			continue
		}
		m.rowIndex[p.Host] = len(m.rows)
		m.rows = append(m.rows, &hostRow{
			name:    p.DisplayName,
			host:    p.Host,
			message: "Waiting...",
			bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(m.barWidth())),
		})
	}

	ctx, stop := context.WithCancel(m.parent)
	m.stop = stop
	// Skipped profiles are reported before Distribute returns.
	m.sink = fanout.NewChannelSink(len(profiles) + 64)
	m.started = time.Now()
	m.run = fanout.NewDispatcher(m.deps.Opener, m.deps.Log).
		Distribute(ctx, profiles, m.paths, strings.TrimSpace(m.dirInput.Value()), m.sink, m.sink)

	return tea.Batch(waitForEvent(m.sink, m.run), m.spinner.Tick)
}

// waitForEvent delivers the next event, or the results once the run is over
// and every buffered event was consumed.
func waitForEvent(sink *fanout.ChannelSink, run *fanout.Run) tea.Cmd {
	return func() tea.Msg {
		select {
		case e := <-sink.C:
			return distributeEventMsg(e)
		case <-run.Done():
			select {
			case e := <-sink.C:
				return distributeEventMsg(e)
			default:
				return distributeDoneMsg{results: run.Results()}
			}
		}
	}
}

func (m *DistributeModel) barWidth() int {
	w := m.width - 50
	if w < 20 {
		w = 20
	}
	if w > 60 {
		w = 60
	}
	return w
}

func (m *DistributeModel) apply(e fanout.Event) {
	switch {
	case e.Progress != nil:
		if i, ok := m.rowIndex[e.Progress.Host]; ok {
			m.rows[i].done = e.Progress.BytesDone
			m.rows[i].total = e.Progress.BytesTotal
		}
	case e.Status != nil:
		if i, ok := m.rowIndex[e.Status.Host]; ok {
			m.rows[i].message = e.Status.Message
			m.rows[i].code = e.Status.Code
		}
	}
}

func (m *DistributeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for _, r := range m.rows {
			r.bar.Width = m.barWidth()
		}
		return m, nil

	case distributeEventMsg:
		m.apply(fanout.Event(msg))
		return m, waitForEvent(m.sink, m.run)

	case distributeDoneMsg:
		m.results = msg.results
		m.stop()
		m.deps.Log.Info().Int("servers", len(msg.results)).Dur("elapsed", time.Since(m.started)).Msg("distribution finished")
		return m, nil

	case spinner.TickMsg:
		if !m.running() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.running() {
			if msg.String() == "C" {
				m.cancel()
			}
			return m, nil
		}

		switch msg.String() {
		case "tab", "shift+tab":
			if m.focused == 0 {
				m.focus(1)
			} else {
				m.focus(0)
			}
			return m, nil
		case "esc":
			m.focus(-1)
			return m, nil
		case "ctrl+s":
			return m, m.start()
		case "ctrl+x":
			m.paths = nil
			return m, nil
		case "enter":
			switch m.focused {
			case 0:
				m.addPath()
				return m, nil
			case 1:
				return m, m.start()
			default:
				m.focus(0)
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	switch m.focused {
	case 0:
		m.pathInput, cmd = m.pathInput.Update(msg)
	case 1:
		m.dirInput, cmd = m.dirInput.Update(msg)
	}
	return m, cmd
}

func statusStyle(code fanout.Code) lipgloss.Style {
	switch code {
	case fanout.Success:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	case fanout.Failed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	}
}

func formatBytes(n uint64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}

func (m *DistributeModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🚀 Distribute Files"))
	b.WriteString("\n\n")

	if len(m.paths) == 0 {
		b.WriteString(dimItemStyle.Render("No local paths selected"))
		b.WriteString("\n")
	}
	for _, p := range m.paths {
		b.WriteString(itemStyle.Render("• " + p))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if !m.running() {
		b.WriteString(m.pathInput.View())
		b.WriteString("\n")
		b.WriteString(m.dirInput.View())
		b.WriteString("\n")
	}

	if len(m.rows) > 0 {
		b.WriteString("\n")
		width := 0
		for _, r := range m.rows {
			width = max(width, lipgloss.Width(r.name))
		}
		for _, r := range m.rows {
			counts := formatBytes(r.done)
			if r.total > 0 {
				counts += " / " + formatBytes(r.total)
			}
			fmt.Fprintf(&b, "  %-*s %s %-20s %s\n",
				width, r.name,
				r.bar.ViewAs(r.percent()),
				counts,
				statusStyle(r.code).Render(r.message))
		}
	}

	b.WriteString("\n")
	switch {
	case m.running():
		b.WriteString(successStyle.Render(m.spinner.View() + " Uploading... " + time.Since(m.started).Round(time.Second).String()))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("C: cancel • esc: back to menu (upload continues)"))
	case m.results != nil:
		var ok, failed, skipped int
		for _, r := range m.results {
			switch {
			case r.Skipped:
				skipped++
			case r.Success:
				ok++
			default:
				failed++
			}
		}
		summary := fmt.Sprintf("Done: %d succeeded, %d failed, %d skipped", ok, failed, skipped)
		if failed > 0 {
			b.WriteString(errorStyle.Render(summary))
		} else {
			b.WriteString(successStyle.Render(summary))
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter: add path • ctrl+s: upload again • ctrl+x: clear paths • esc: back"))
	default:
		b.WriteString(helpStyle.Render("enter: add path • tab: switch field • ctrl+s: upload to enabled servers • ctrl+x: clear paths • esc: back"))
	}

	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	return boxStyle.Render(b.String())
}
