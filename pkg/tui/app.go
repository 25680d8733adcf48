// Package tui is the interactive terminal front end.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/quocson95/ftpfleet/pkg/session"
	"github.com/quocson95/ftpfleet/pkg/storage"
)

// AppState represents the current screen
type AppState int

const (
	StateMenu AppState = iota
	StateServers
	StateServerEdit
	StateDistribute
	StateBrowser
	StateSettings
	StateBackup
)

// Deps is what the screens work with
type Deps struct {
	Servers  *storage.Store
	Settings *storage.SettingsStore
	Opener   session.Opener
	Log      zerolog.Logger
}

// AppModel is the root model that routes messages to the active screen
type AppModel struct {
	deps  Deps
	ctx   context.Context
	state AppState

	menuModel       MenuModel
	serversModel    *ServersModel
	serverEditModel *ServerEditModel
	distributeModel *DistributeModel
	browserModel    *BrowserModel
	settingsModel   *SettingsModel
	backupModel     *BackupModel

	width  int
	height int
}

// NewAppModel creates the root model
func NewAppModel(deps Deps) *AppModel {
	return &AppModel{
		deps:      deps,
		ctx:       context.Background(),
		state:     StateMenu,
		menuModel: NewMenuModel(),
	}
}

func (m *AppModel) Init() tea.Cmd {
	return nil
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if m.distributeModel != nil {
				m.distributeModel.cancel()
			}
			return m, tea.Quit
		}

	case distributeEventMsg, distributeDoneMsg:
		// Routed here whatever screen is showing so the event stream keeps flowing.
		if m.distributeModel != nil {
			updated, cmd := m.distributeModel.Update(msg)
			m.distributeModel = updated.(*DistributeModel)
			return m, cmd
		}
		return m, nil
	}

	switch m.state {
	case StateMenu:
		return m.updateMenu(msg)
	case StateServers:
		return m.updateServers(msg)
	case StateServerEdit:
		return m.updateServerEdit(msg)
	case StateDistribute:
		return m.updateDistribute(msg)
	case StateBrowser:
		return m.updateBrowser(msg)
	case StateSettings:
		return m.updateSettings(msg)
	case StateBackup:
		return m.updateBackup(msg)
	default:
		return m, nil
	}
}

func (m *AppModel) size() tea.Cmd {
	w, h := m.width, m.height
	return func() tea.Msg { return tea.WindowSizeMsg{Width: w, Height: h} }
}

func (m *AppModel) updateMenu(msg tea.Msg) (tea.Model, tea.Cmd) {
	updated, cmd := m.menuModel.Update(msg)
	m.menuModel = updated.(MenuModel)

	choice := m.menuModel.selected
	m.menuModel.selected = MenuNone
	switch choice {
	case MenuDistribute:
		m.state = StateDistribute
		if m.distributeModel == nil || !m.distributeModel.running() {
			m.distributeModel = NewDistributeModel(m.ctx, m.deps)
		}
		return m, tea.Batch(m.distributeModel.Init(), m.size())

	case MenuServers:
		m.state = StateServers
		m.serversModel = NewServersModel(m.ctx, m.deps, false)
		return m, m.serversModel.Init()

	case MenuBrowse:
		m.state = StateServers
		m.serversModel = NewServersModel(m.ctx, m.deps, true)
		return m, m.serversModel.Init()

	case MenuBackup:
		m.state = StateBackup
		m.backupModel = NewBackupModel(m.ctx, m.deps)
		return m, m.backupModel.Init()

	case MenuSettings:
		m.state = StateSettings
		m.settingsModel = NewSettingsModel(m.deps.Settings)
		return m, m.settingsModel.Init()

	case MenuQuit:
		return m, tea.Quit
	}
	return m, cmd
}

func (m *AppModel) backToServers() (tea.Model, tea.Cmd) {
	browseMode := m.serversModel != nil && m.serversModel.browseMode
	m.state = StateServers
	m.serversModel = NewServersModel(m.ctx, m.deps, browseMode)
	return m, m.serversModel.Init()
}

func (m *AppModel) updateServers(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "esc" {
			m.state = StateMenu
			return m, nil
		}
	case ServerEditMsg:
		m.state = StateServerEdit
		m.serverEditModel = NewServerEditModel(m.deps.Servers, msg.index, msg.profile)
		return m, m.serverEditModel.Init()
	case ServerBrowseMsg:
		m.state = StateBrowser
		m.browserModel = NewBrowserModel(m.ctx, m.deps, msg.profile)
		return m, tea.Batch(m.browserModel.Init(), m.size())
	}

	updated, cmd := m.serversModel.Update(msg)
	m.serversModel = updated.(*ServersModel)
	return m, cmd
}

func (m *AppModel) updateServerEdit(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "esc" {
			return m.backToServers()
		}
	case serverSavedMsg:
		return m.backToServers()
	}

	updated, cmd := m.serverEditModel.Update(msg)
	m.serverEditModel = updated.(*ServerEditModel)
	return m, cmd
}

func (m *AppModel) updateDistribute(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" && !m.distributeModel.editing() {
		// A running distribution keeps going; its events are picked up on return.
		m.state = StateMenu
		return m, nil
	}

	updated, cmd := m.distributeModel.Update(msg)
	m.distributeModel = updated.(*DistributeModel)
	return m, cmd
}

func (m *AppModel) updateBrowser(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" && !m.browserModel.confirming() {
		return m.backToServers()
	}

	updated, cmd := m.browserModel.Update(msg)
	m.browserModel = updated.(*BrowserModel)
	return m, cmd
}

func (m *AppModel) updateSettings(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" && m.settingsModel.focused < 0 {
		m.state = StateMenu
		return m, nil
	}

	updated, cmd := m.settingsModel.Update(msg)
	m.settingsModel = updated.(*SettingsModel)
	return m, cmd
}

func (m *AppModel) updateBackup(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" && m.backupModel.focused < 0 {
		m.state = StateMenu
		return m, nil
	}

	updated, cmd := m.backupModel.Update(msg)
	m.backupModel = updated.(*BackupModel)
	return m, cmd
}

func (m *AppModel) View() string {
	switch m.state {
	case StateMenu:
		m.menuModel.servers = m.deps.Servers.List()
		m.menuModel.busy = m.distributeModel != nil && m.distributeModel.running()
		return m.menuModel.View()
	case StateServers:
		return m.serversModel.View()
	case StateServerEdit:
		return m.serverEditModel.View()
	case StateDistribute:
		return m.distributeModel.View()
	case StateBrowser:
		return m.browserModel.View()
	case StateSettings:
		return m.settingsModel.View()
	case StateBackup:
		return m.backupModel.View()
	default:
		return "Unknown state"
	}
}
