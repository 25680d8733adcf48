package tui

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quocson95/ftpfleet/pkg/storage"
)

// form is a column of inputs followed by action buttons. The cursor walks
// inputs and buttons; focused is the input being typed into, or -1.
type form struct {
	inputs  []textinput.Model
	actions []string
	cursor  int
	focused int
}

func (f *form) last() int {
	return len(f.inputs) + len(f.actions) - 1
}

func (f *form) blur() {
	if f.focused >= 0 {
		f.inputs[f.focused].Blur()
		f.focused = -1
	}
}

func (f *form) focusCursor() tea.Cmd {
	if f.cursor < len(f.inputs) {
		f.focused = f.cursor
		return f.inputs[f.focused].Focus()
	}
	return nil
}

// update handles navigation and typing. It returns the index of the action
// that was activated, or -1.
func (f *form) update(msg tea.KeyMsg) (int, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab":
		f.blur()
		if msg.String() == "tab" {
			f.cursor++
		} else {
			f.cursor--
		}
		if f.cursor > f.last() {
			f.cursor = 0
		} else if f.cursor < 0 {
			f.cursor = f.last()
		}
		return -1, f.focusCursor()
	}

	if f.focused >= 0 {
		switch msg.String() {
		case "enter", "esc":
			f.blur()
			return -1, nil
		}
		var cmd tea.Cmd
		f.inputs[f.focused], cmd = f.inputs[f.focused].Update(msg)
		return -1, cmd
	}

	switch msg.String() {
	case "up", "k":
		if f.cursor > 0 {
			f.cursor--
		}
	case "down", "j":
		if f.cursor < f.last() {
			f.cursor++
		}
	case "enter", " ":
		if f.cursor < len(f.inputs) {
			return -1, f.focusCursor()
		}
		return f.cursor - len(f.inputs), nil
	}
	return -1, nil
}

func (f *form) view(b *strings.Builder) {
	for i, in := range f.inputs {
		cursor := "  "
		if f.cursor == i && f.focused < 0 {
			cursor = "→ "
		}
		b.WriteString(cursor + in.View() + "\n")
	}
	b.WriteString("\n")

	for i, action := range f.actions {
		cursor, style := " ", itemStyle
		if f.cursor == len(f.inputs)+i {
			cursor, style = "→", selectedItemStyle
		}
		b.WriteString(cursor + style.Render(action) + "    ")
	}
	b.WriteString("\n\n")
}

// SettingsModel manages application settings
type SettingsModel struct {
	store *storage.SettingsStore
	form
	saved bool
	err   error
}

const (
	settingRemoteDir = iota
	settingDownloadDir
	settingConnectTimeout
	settingTransferTimeout
)

const (
	actionSave = iota
	actionReset
)

// NewSettingsModel creates the settings screen
func NewSettingsModel(store *storage.SettingsStore) *SettingsModel {
	inputs := make([]textinput.Model, 4)
	inputs[settingRemoteDir] = newEditInput("Default Remote Dir: ", "(login directory)", 1024)
	inputs[settingDownloadDir] = newEditInput("Download Dir: ", ".", 1024)
	inputs[settingConnectTimeout] = newEditInput("Connect Timeout (s): ", "5", 4)
	inputs[settingTransferTimeout] = newEditInput("Transfer Timeout (s): ", "60", 5)

	m := &SettingsModel{
		store: store,
		form: form{
			inputs:  inputs,
			actions: []string{"💾 Save", "🔄 Reset"},
			focused: -1,
		},
	}
	m.load()
	return m
}

func (m *SettingsModel) load() {
	s := m.store.Get()
	m.inputs[settingRemoteDir].SetValue(s.DefaultRemoteDir)
	m.inputs[settingDownloadDir].SetValue(s.LocalDownloadDir)
	m.inputs[settingConnectTimeout].SetValue(strconv.Itoa(int(s.ConnectTimeout().Seconds())))
	m.inputs[settingTransferTimeout].SetValue(strconv.Itoa(int(s.TransferTimeout().Seconds())))
}

func (m *SettingsModel) Init() tea.Cmd {
	return nil
}

func parseSeconds(name, v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive number of seconds", name)
	}
	return n, nil
}

func (m *SettingsModel) save() error {
	s := m.store.Get()
	s.DefaultRemoteDir = strings.TrimSpace(m.inputs[settingRemoteDir].Value())
	s.LocalDownloadDir = strings.TrimSpace(m.inputs[settingDownloadDir].Value())

	var err error
	if s.ConnectTimeoutSeconds, err = parseSeconds("connect timeout", m.inputs[settingConnectTimeout].Value()); err != nil {
		return err
	}
	if s.TransferTimeoutSeconds, err = parseSeconds("transfer timeout", m.inputs[settingTransferTimeout].Value()); err != nil {
		return err
	}
	return m.store.Update(s)
}

func (m *SettingsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.focused < 0 {
		switch key.String() {
		case "s":
			return m, m.apply(actionSave)
		case "r":
			return m, m.apply(actionReset)
		}
	}

	action, cmd := m.form.update(key)
	if action >= 0 {
		return m, m.apply(action)
	}
	if m.focused >= 0 {
		m.saved = false
	}
	return m, cmd
}

func (m *SettingsModel) apply(action int) tea.Cmd {
	var err error
	switch action {
	case actionSave:
		err = m.save()
	case actionReset:
		if err = m.store.Reset(); err == nil {
			m.load()
		}
	}
	m.err = err
	m.saved = err == nil
	return nil
}

func (m *SettingsModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("⚙️  Settings"))
	b.WriteString("\n\n")
	m.form.view(&b)
	b.WriteString(helpStyle.Render("↑/k up • ↓/j down • enter: edit/select • s: save • r: reset • esc: back"))

	if m.saved {
		b.WriteString("\n\n")
		b.WriteString(successStyle.Render("✓ Settings saved! New timeouts apply after restart."))
	}
	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	b.WriteString("\n\n")
	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#626262")).
		Italic(true)
	b.WriteString(infoStyle.Render("Settings are saved to " + filepath.Join(m.store.GetDataDir(), "settings.json")))

	return boxStyle.Render(b.String())
}
