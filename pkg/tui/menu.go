package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quocson95/ftpfleet/pkg/storage"
)

const (
	accent = lipgloss.Color("#2BB3A3")
	muted  = lipgloss.Color("#6C7086")
)

// Shared screen styles
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginLeft(2)

	itemStyle         = lipgloss.NewStyle().PaddingLeft(2)
	selectedItemStyle = itemStyle.Foreground(accent).Bold(true)
	dimItemStyle      = itemStyle.Foreground(muted)

	helpStyle    = lipgloss.NewStyle().Foreground(muted).MarginTop(1).MarginLeft(2)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5484D")).Bold(true).MarginLeft(2)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#30A46C")).Bold(true).MarginLeft(2)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2)
)

// MenuChoice is a start screen entry
type MenuChoice int

const (
	MenuNone MenuChoice = iota
	MenuDistribute
	MenuServers
	MenuBrowse
	MenuBackup
	MenuSettings
	MenuQuit
)

type menuItem struct {
	choice MenuChoice
	title  string
	hint   string
}

var menuItems = []menuItem{
	{MenuDistribute, "Distribute", "upload files to every enabled server"},
	{MenuServers, "Servers", "add, edit, enable and test endpoints"},
	{MenuBrowse, "Browse", "list, download and delete on one server"},
	{MenuBackup, "Backup & Restore", "encrypted server list in S3"},
	{MenuSettings, "Settings", "directories and timeouts"},
	{MenuQuit, "Quit", ""},
}

// MenuModel is the start screen
type MenuModel struct {
	cursor   int
	selected MenuChoice

	// shown under the title; refreshed by the app before each render
	servers []storage.Profile
	busy    bool
}

func NewMenuModel() MenuModel {
	return MenuModel{}
}

func (m MenuModel) Init() tea.Cmd {
	return nil
}

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "q", "esc":
		m.selected = MenuQuit
	case "up", "k":
		m.cursor = (m.cursor + len(menuItems) - 1) % len(menuItems)
	case "down", "j":
		m.cursor = (m.cursor + 1) % len(menuItems)
	case "enter", " ":
		m.selected = menuItems[m.cursor].choice
	default:
		// digits jump straight to an entry
		if s := key.String(); len(s) == 1 && s[0] >= '1' && int(s[0]-'1') < len(menuItems) {
			n := int(s[0] - '1')
			m.cursor = n
			m.selected = menuItems[n].choice
		}
	}
	return m, nil
}

func (m MenuModel) fleetLine() string {
	enabled := 0
	for _, p := range m.servers {
		if p.Enabled {
			enabled++
		}
	}
	line := fmt.Sprintf("%d servers, %d enabled", len(m.servers), enabled)
	if m.busy {
		line += " • distribution running"
	}
	return line
}

func (m MenuModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ftpfleet"))
	b.WriteString("\n")
	b.WriteString(dimItemStyle.Render(m.fleetLine()))
	b.WriteString("\n\n")

	for i, item := range menuItems {
		label := fmt.Sprintf("%d. %s", i+1, item.title)
		if i == m.cursor {
			b.WriteString("> " + selectedItemStyle.Render(label))
			if item.hint != "" {
				b.WriteString(dimItemStyle.Render(item.hint))
			}
		} else {
			b.WriteString("  " + itemStyle.Render(label))
		}
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ move • enter or 1-6 select • q quit"))

	return boxStyle.Render(b.String())
}
