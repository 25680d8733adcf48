package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quocson95/ftpfleet/pkg/backup"
	"github.com/quocson95/ftpfleet/pkg/s3"
	"github.com/quocson95/ftpfleet/pkg/storage"
)

// BackupMsg indicates the result of a backup
type BackupMsg struct {
	key string
	err error
}

// RestoreMsg indicates the result of a restore
type RestoreMsg struct {
	key     string
	servers int
	err     error
}

// newObjectStore connects to the bucket; tests swap it
var newObjectStore = func(ctx context.Context, s storage.Settings) (backup.ObjectStore, error) {
	return s3.NewClientFromSettings(ctx, s)
}

// BackupModel pushes the server list to S3 and restores it
type BackupModel struct {
	ctx  context.Context
	deps Deps
	form

	inProgress string
	statusMsg  string
	err        error
}

const (
	backupS3Host = iota
	backupS3AccessKey
	backupS3SecretKey
	backupS3Bucket
	backupPassword
)

const (
	actionBackup = iota
	actionRestore
)

// NewBackupModel creates the backup screen with the stored S3 settings
func NewBackupModel(ctx context.Context, deps Deps) *BackupModel {
	settings := deps.Settings.Get()

	inputs := make([]textinput.Model, 5)
	inputs[backupS3Host] = newEditInput("S3 Host: ", "https://s3.amazonaws.com", 256)
	inputs[backupS3Host].SetValue(settings.S3Host)
	inputs[backupS3AccessKey] = newEditInput("Access Key: ", "AKIA...", 128)
	inputs[backupS3AccessKey].SetValue(settings.S3AccessKey)
	inputs[backupS3SecretKey] = newEditInput("Secret Key: ", "", 128)
	inputs[backupS3SecretKey].EchoMode = textinput.EchoPassword
	inputs[backupS3SecretKey].EchoCharacter = '•'
	inputs[backupS3SecretKey].SetValue(settings.S3SecretKey)
	inputs[backupS3Bucket] = newEditInput("Bucket: ", "ftpfleet", 63)
	inputs[backupS3Bucket].SetValue(settings.S3Bucket)
	inputs[backupPassword] = newEditInput("Backup Password: ", "Encryption password", 128)
	inputs[backupPassword].EchoMode = textinput.EchoPassword
	inputs[backupPassword].EchoCharacter = '•'

	return &BackupModel{
		ctx:  ctx,
		deps: deps,
		form: form{
			inputs:  inputs,
			actions: []string{"⬆️  Backup to S3", "⬇️  Restore from S3"},
			focused: -1,
		},
	}
}

func (m *BackupModel) Init() tea.Cmd {
	return nil
}

// storeSettings saves the S3 inputs so the next session starts with them
func (m *BackupModel) storeSettings() (storage.Settings, error) {
	s := m.deps.Settings.Get()
	s.S3Host = strings.TrimSpace(m.inputs[backupS3Host].Value())
	s.S3AccessKey = strings.TrimSpace(m.inputs[backupS3AccessKey].Value())
	s.S3SecretKey = strings.TrimSpace(m.inputs[backupS3SecretKey].Value())
	s.S3Bucket = strings.TrimSpace(m.inputs[backupS3Bucket].Value())
	return s, m.deps.Settings.Update(s)
}

func (m *BackupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.inProgress != "" {
			return m, nil
		}
		if m.focused < 0 {
			switch msg.String() {
			case "b":
				return m, m.start(actionBackup)
			case "r":
				return m, m.start(actionRestore)
			}
		}
		action, cmd := m.form.update(msg)
		if action >= 0 {
			return m, m.start(action)
		}
		return m, cmd

	case BackupMsg:
		m.inProgress = ""
		m.err = msg.err
		if msg.err == nil {
			m.statusMsg = fmt.Sprintf("✓ Backup uploaded as %s", msg.key)
		}
		return m, nil

	case RestoreMsg:
		m.inProgress = ""
		m.err = msg.err
		if msg.err == nil {
			m.statusMsg = fmt.Sprintf("✓ Restored %d servers from %s", msg.servers, msg.key)
		}
		return m, nil
	}
	return m, nil
}

func (m *BackupModel) start(action int) tea.Cmd {
	password := m.inputs[backupPassword].Value()
	if password == "" {
		m.err = fmt.Errorf("backup password is required")
		return nil
	}
	settings, err := m.storeSettings()
	if err != nil {
		m.err = err
		return nil
	}

	m.err = nil
	m.statusMsg = ""
	if action == actionBackup {
		m.inProgress = "⏳ Backing up..."
		return m.performBackup(settings, password)
	}
	m.inProgress = "⏳ Restoring..."
	return m.performRestore(settings, password)
}

func (m *BackupModel) performBackup(settings storage.Settings, password string) tea.Cmd {
	ctx, deps := m.ctx, m.deps
	return func() tea.Msg {
		store, err := newObjectStore(ctx, settings)
		if err != nil {
			return BackupMsg{err: err}
		}
		payload := backup.Payload{
			Servers:          deps.Servers.Records(),
			DefaultRemoteDir: settings.DefaultRemoteDir,
		}
		key, err := backup.Push(ctx, store, payload, password, time.Now())
		if err != nil {
			deps.Log.Error().Err(err).Msg("backup failed")
			return BackupMsg{err: err}
		}
		deps.Log.Info().Str("key", key).Int("servers", len(payload.Servers)).Msg("backup uploaded")
		return BackupMsg{key: key}
	}
}

func (m *BackupModel) performRestore(settings storage.Settings, password string) tea.Cmd {
	ctx, deps := m.ctx, m.deps
	return func() tea.Msg {
		store, err := newObjectStore(ctx, settings)
		if err != nil {
			return RestoreMsg{err: err}
		}
		payload, key, err := backup.Pull(ctx, store, password)
		if err != nil {
			deps.Log.Error().Err(err).Msg("restore failed")
			return RestoreMsg{err: err}
		}
		if err := deps.Servers.Replace(payload.Servers); err != nil {
			return RestoreMsg{err: err}
		}
		if payload.DefaultRemoteDir != "" {
			if err := deps.Settings.SetDefaultRemoteDir(payload.DefaultRemoteDir); err != nil {
				return RestoreMsg{err: err}
			}
		}
		deps.Log.Info().Str("key", key).Int("servers", len(payload.Servers)).Msg("backup restored")
		return RestoreMsg{key: key, servers: len(payload.Servers)}
	}
}

func (m *BackupModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("☁️ Backup & Restore"))
	b.WriteString("\n\n")
	m.form.view(&b)
	b.WriteString(helpStyle.Render("↑/k up • ↓/j down • enter: edit/select • b: backup • r: restore • esc: back"))
	b.WriteString("\n")

	if m.inProgress != "" {
		b.WriteString("\n" + successStyle.Render(m.inProgress))
	} else if m.statusMsg != "" {
		b.WriteString("\n" + successStyle.Render(m.statusMsg))
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	b.WriteString("\n\n")
	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#626262")).
		Italic(true)
	b.WriteString(infoStyle.Render("🔐 Backups are encrypted with Argon2id + AES-256-GCM"))

	return boxStyle.Render(b.String())
}
