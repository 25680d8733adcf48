package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/quocson95/ftpfleet/pkg/storage"
)

type serverSavedMsg struct{}

// ServerEditModel edits one server, or adds a new one when index is -1
type ServerEditModel struct {
	store   *storage.Store
	index   int
	profile storage.Profile
	inputs  []textinput.Model
	focused int
	err     error
}

const (
	editName = iota
	editHost
	editPort
	editProtocol
	editUsername
	editPassword
	editRemoteDir
	editPassive
	editEnabled
)

func newEditInput(prompt, placeholder string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	in.Width = 50
	return in
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// NewServerEditModel creates the edit screen
func NewServerEditModel(store *storage.Store, index int, p storage.Profile) *ServerEditModel {
	inputs := make([]textinput.Model, 9)
	inputs[editName] = newEditInput("Name: ", "(default: host)", 64)
	inputs[editHost] = newEditInput("Host: ", "ftp.example.com", 253)
	inputs[editPort] = newEditInput("Port: ", "21", 5)
	inputs[editProtocol] = newEditInput("Protocol: ", "ftp or sftp", 4)
	inputs[editUsername] = newEditInput("Username: ", storage.DefaultUsername, 64)
	inputs[editPassword] = newEditInput("Password: ", "(optional)", 128)
	inputs[editPassword].EchoMode = textinput.EchoPassword
	inputs[editPassword].EchoCharacter = '•'
	inputs[editRemoteDir] = newEditInput("Remote Dir: ", "(default remote dir)", 256)
	inputs[editPassive] = newEditInput("Passive Mode: ", "yes/no", 3)
	inputs[editEnabled] = newEditInput("Enabled: ", "yes/no", 3)
	inputs[editName].Focus()

	if index >= 0 {
		inputs[editName].SetValue(p.DisplayName)
		inputs[editHost].SetValue(p.Host)
		inputs[editRemoteDir].SetValue(p.RemoteBaseDir)
		inputs[editPassword].SetValue(p.Password)
	}
	inputs[editPort].SetValue(strconv.Itoa(p.Port))
	inputs[editProtocol].SetValue(p.Protocol)
	inputs[editUsername].SetValue(p.Username)
	inputs[editPassive].SetValue(yesNo(p.PassiveMode))
	inputs[editEnabled].SetValue(yesNo(p.Enabled))

	return &ServerEditModel{
		store:   store,
		index:   index,
		profile: p,
		inputs:  inputs,
	}
}

func (m *ServerEditModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *ServerEditModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "tab", "shift+tab", "up", "down":
			if msg.String() == "up" || msg.String() == "shift+tab" {
				m.focused--
			} else {
				m.focused++
			}
			if m.focused > len(m.inputs)-1 {
				m.focused = 0
			} else if m.focused < 0 {
				m.focused = len(m.inputs) - 1
			}
			for i := range m.inputs {
				if i == m.focused {
					m.inputs[i].Focus()
				} else {
					m.inputs[i].Blur()
				}
			}
			return m, nil

		case "ctrl+s", "enter":
			if err := m.save(); err != nil {
				m.err = err
				return m, nil
			}
			return m, func() tea.Msg { return serverSavedMsg{} }
		}
	}

	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
	}
	return m, tea.Batch(cmds...)
}

func parseYesNo(field, v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "y", "yes", "true", "1":
		return true, nil
	case "n", "no", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("%s must be yes or no", field)
}

// edited builds the profile from the inputs
func (m *ServerEditModel) edited() (storage.Profile, error) {
	p := m.profile
	value := func(i int) string { return strings.TrimSpace(m.inputs[i].Value()) }

	p.Host = value(editHost)
	p.DisplayName = value(editName)
	if p.DisplayName == "" {
		p.DisplayName = p.Host
	}

	p.Protocol = strings.ToLower(value(editProtocol))
	if p.Protocol == "" {
		p.Protocol = storage.ProtocolFTP
	}
	if p.Protocol != storage.ProtocolFTP && p.Protocol != storage.ProtocolSFTP {
		return p, fmt.Errorf("protocol must be ftp or sftp")
	}

	p.Port = storage.DefaultPort
	if p.Protocol == storage.ProtocolSFTP {
		p.Port = 22
	}
	if v := value(editPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("port must be a number")
		}
		p.Port = port
	}

	p.Username = value(editUsername)
	if p.Username == "" {
		p.Username = storage.DefaultUsername
	}
	p.Password = m.inputs[editPassword].Value()
	p.RemoteBaseDir = value(editRemoteDir)

	var err error
	if p.PassiveMode, err = parseYesNo("passive mode", value(editPassive)); err != nil {
		return p, err
	}
	if p.Enabled, err = parseYesNo("enabled", value(editEnabled)); err != nil {
		return p, err
	}
	return p, p.Validate()
}

func (m *ServerEditModel) save() error {
	p, err := m.edited()
	if err != nil {
		return err
	}
	if m.index < 0 {
		return m.store.Add(p)
	}
	return m.store.Update(m.index, p)
}

func (m *ServerEditModel) View() string {
	var b strings.Builder

	title := "✏️  Edit Server"
	if m.index < 0 {
		title = "➕ Add Server"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	for i := range m.inputs {
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("tab/↑/↓: move • ctrl+s/enter: save • esc: cancel"))

	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	return boxStyle.Render(b.String())
}
