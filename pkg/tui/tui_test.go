package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/quocson95/ftpfleet/pkg/fanout"
	"github.com/quocson95/ftpfleet/pkg/session/sessiontest"
	"github.com/quocson95/ftpfleet/pkg/storage"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newDeps(t *testing.T, fleet *sessiontest.Fleet, hosts ...string) Deps {
	t.Helper()
	dir := t.TempDir()
	servers, err := storage.NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	settings, err := storage.NewSettingsStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hosts {
		if err := servers.Add(storage.NewProfile(h)); err != nil {
			t.Fatal(err)
		}
	}
	return Deps{Servers: servers, Settings: settings, Opener: fleet, Log: zerolog.Nop()}
}

func TestServersModel(t *testing.T) {
	fleet := sessiontest.NewFleet()
	deps := newDeps(t, fleet, "a.example.com", "b.example.com")
	m := NewServersModel(context.Background(), deps, false)

	t.Run("Core Functionality: space toggles enabled", func(t *testing.T) {
		m.Update(key("j"))
		m.Update(key(" "))
		p, _ := deps.Servers.Get(1)
		if p.Enabled {
			t.Error("Expected second server to be disabled")
		}
	})

	t.Run("Core Functionality: test connection", func(t *testing.T) {
		_, cmd := m.Update(key("t"))
		if cmd == nil {
			t.Fatal("Expected a test command")
		}
		msg := cmd()
		res, ok := msg.(testResultMsg)
		if !ok || !res.ok || res.message != "Connected to b.example.com" {
			t.Fatalf("unexpected test result %#v", msg)
		}
		m.Update(res)
		if m.statusMsg != "b.example.com: Connected to b.example.com" || m.testing["b.example.com"] {
			t.Errorf("unexpected status %q", m.statusMsg)
		}
	})

	t.Run("Core Functionality: delete", func(t *testing.T) {
		m.Update(key("d"))
		if len(deps.Servers.List()) != 1 || m.cursor != 0 {
			t.Errorf("Expected one server left with cursor 0, got %d / %d", len(deps.Servers.List()), m.cursor)
		}
	})
}

func TestServerEditModel(t *testing.T) {
	deps := newDeps(t, sessiontest.NewFleet())
	m := NewServerEditModel(deps.Servers, -1, storage.NewProfile(""))

	m.inputs[editHost].SetValue("ssh.example.com")
	m.inputs[editProtocol].SetValue("sftp")
	m.inputs[editPort].SetValue("")
	m.inputs[editRemoteDir].SetValue("/upload")
	m.inputs[editPassive].SetValue("no")

	_, cmd := m.Update(key("enter"))
	if m.err != nil {
		t.Fatalf("save failed: %v", m.err)
	}
	if _, ok := cmd().(serverSavedMsg); !ok {
		t.Error("Expected serverSavedMsg")
	}

	p, err := deps.Servers.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if p.DisplayName != "ssh.example.com" || p.Port != 22 || p.Protocol != storage.ProtocolSFTP || p.PassiveMode || !p.Enabled {
		t.Errorf("unexpected saved profile %+v", p)
	}

	t.Run("Error Handling: bad protocol", func(t *testing.T) {
		m := NewServerEditModel(deps.Servers, 0, p)
		m.inputs[editProtocol].SetValue("scp")
		m.Update(key("enter"))
		if m.err == nil {
			t.Error("Expected protocol error")
		}
	})
}

func TestDistributeModel(t *testing.T) {
	fleet := sessiontest.NewFleet()
	deps := newDeps(t, fleet, "a.example.com", "b.example.com", "c.example.com")
	if err := deps.Servers.SetEnabled(2, false); err != nil {
		t.Fatal(err)
	}
	fleet.Remote("b.example.com").OpenErr = os.ErrPermission

	local := t.TempDir()
	file := filepath.Join(local, "index.html")
	if err := os.WriteFile(file, make([]byte, 700), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewDistributeModel(context.Background(), deps)
	m.pathInput.SetValue(file)
	m.Update(key("enter"))
	if len(m.paths) != 1 {
		t.Fatalf("Expected path to be added, got %v (%v)", m.paths, m.err)
	}
	m.dirInput.SetValue("/www")

	if cmd := m.start(); cmd == nil {
		t.Fatalf("start failed: %v", m.err)
	}

	for m.running() {
		m.Update(waitForEvent(m.sink, m.run)())
	}

	rows := map[string]*hostRow{}
	for _, r := range m.rows {
		rows[r.host] = r
	}
	if r := rows["a.example.com"]; r.code != fanout.Success || r.done != 700 || r.percent() != 1 {
		t.Errorf("unexpected row for a: %+v", r)
	}
	if r := rows["b.example.com"]; r.code != fanout.Failed {
		t.Errorf("unexpected row for b: %+v", r)
	}
	if r := rows["c.example.com"]; r.message != fanout.MsgSkipped {
		t.Errorf("unexpected row for c: %+v", r)
	}
	if _, ok := fleet.Remote("a.example.com").ReadFile("/www/index.html"); !ok {
		t.Error("Expected file on a.example.com")
	}
	if len(m.results) != 3 {
		t.Errorf("Expected 3 results, got %d", len(m.results))
	}

	t.Run("Error Handling: no paths", func(t *testing.T) {
		m := NewDistributeModel(context.Background(), deps)
		if cmd := m.start(); cmd != nil || m.err == nil {
			t.Error("Expected start to refuse without paths")
		}
	})
}

func TestBrowserModel(t *testing.T) {
	fleet := sessiontest.NewFleet()
	deps := newDeps(t, fleet, "a.example.com")
	remote := fleet.Remote("a.example.com")
	remote.WriteFile("/site/docs/guide.md", []byte("guide"))
	remote.WriteFile("/site/readme.txt", []byte("hi"))

	p, _ := deps.Servers.Get(0)
	p.RemoteBaseDir = "/site"
	m := NewBrowserModel(context.Background(), deps, p)

	m.Update(m.list(m.cwd)())
	if m.cwd != "/site" || len(m.entries) != 2 || m.entries[0].Name != "docs" {
		t.Fatalf("unexpected listing %q %+v (%v)", m.cwd, m.entries, m.err)
	}

	t.Run("Core Functionality: navigate", func(t *testing.T) {
		_, cmd := m.Update(key("enter"))
		m.Update(cmd())
		if m.cwd != "/site/docs" || len(m.entries) != 1 {
			t.Fatalf("unexpected listing %q %+v", m.cwd, m.entries)
		}
		_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
		m.Update(cmd())
		if m.cwd != "/site" {
			t.Errorf("Expected parent dir, got %q", m.cwd)
		}
	})

	t.Run("Core Functionality: delete after confirm", func(t *testing.T) {
		m.Update(key("j"))
		m.Update(key("x"))
		if !m.confirming() {
			t.Fatal("Expected confirmation")
		}
		_, cmd := m.Update(key("y"))
		_, cmd = m.Update(cmd())
		if m.err != nil || remote.Exists("/site/readme.txt") {
			t.Fatalf("delete failed: %v", m.err)
		}
		m.Update(cmd())
		if len(m.entries) != 1 {
			t.Errorf("Expected refreshed listing, got %+v", m.entries)
		}
	})
}

func TestAppMenuNavigation(t *testing.T) {
	fleet := sessiontest.NewFleet()
	deps := newDeps(t, fleet, "a.example.com", "b.example.com")
	if err := deps.Servers.SetEnabled(1, false); err != nil {
		t.Fatal(err)
	}
	app := NewAppModel(deps)

	t.Run("Core Functionality: fleet summary", func(t *testing.T) {
		if view := app.View(); !strings.Contains(view, "2 servers, 1 enabled") {
			t.Errorf("Expected fleet summary in menu, got:\n%s", view)
		}
	})

	t.Run("Core Functionality: digit opens servers", func(t *testing.T) {
		app.Update(key("2"))
		if app.state != StateServers || app.serversModel == nil || app.serversModel.browseMode {
			t.Fatalf("Expected servers screen, got state %d", app.state)
		}
	})

	t.Run("Core Functionality: wraps around", func(t *testing.T) {
		m := NewMenuModel()
		updated, _ := m.Update(key("k"))
		if got := updated.(MenuModel).cursor; got != len(menuItems)-1 {
			t.Errorf("Expected cursor on last entry, got %d", got)
		}
	})
}
