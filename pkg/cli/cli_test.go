package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/quocson95/ftpfleet/pkg/backup"
	"github.com/quocson95/ftpfleet/pkg/session"
	"github.com/quocson95/ftpfleet/pkg/session/sessiontest"
	"github.com/quocson95/ftpfleet/pkg/storage"
)

type harness struct {
	t       *testing.T
	dataDir string
	fleet   *sessiontest.Fleet
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, dataDir: t.TempDir(), fleet: sessiontest.NewFleet()}

	orig := newOpener
	newOpener = func(session.Options, zerolog.Logger) session.Opener { return h.fleet }
	t.Cleanup(func() { newOpener = orig })
	return h
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--data-dir", h.dataDir}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run("", args...)
	if err != nil {
		h.t.Fatalf("%v failed: %v\n%s", args, err, out)
	}
	return out
}

func writeLocal(t *testing.T, dir, name string, size int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, bytes.Repeat([]byte("x"), size), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestServerCommands(t *testing.T) {
	h := newHarness(t)

	h.mustRun("server", "add", "--host", "a.example.com", "--name", "Edge A", "--remote-dir", "/www")
	h.mustRun("server", "add", "--host", "b.example.com", "--protocol", "sftp", "--user", "deploy")

	store, err := storage.NewStore(h.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	profiles := store.List()
	if len(profiles) != 2 {
		t.Fatalf("Expected 2 servers, got %d", len(profiles))
	}

	t.Run("Core Functionality: add applies flags", func(t *testing.T) {
		if profiles[0].DisplayName != "Edge A" || profiles[0].RemoteBaseDir != "/www" {
			t.Errorf("unexpected first profile %+v", profiles[0])
		}
		b := profiles[1]
		if b.Protocol != storage.ProtocolSFTP || b.Port != 22 || b.Username != "deploy" || b.DisplayName != "b.example.com" {
			t.Errorf("unexpected second profile %+v", b)
		}
	})

	t.Run("Core Functionality: disable by number", func(t *testing.T) {
		out := h.mustRun("server", "disable", "2")
		if !strings.Contains(out, "Disabled b.example.com") {
			t.Errorf("unexpected output %q", out)
		}
		list := h.mustRun("server", "list")
		lines := strings.Split(strings.TrimSpace(list), "\n")
		if len(lines) != 3 || !strings.Contains(lines[1], "Edge A") || !strings.HasSuffix(lines[2], "no") {
			t.Errorf("unexpected list output:\n%s", list)
		}
	})

	t.Run("Core Functionality: edit changes only given flags", func(t *testing.T) {
		h.mustRun("server", "edit", "Edge A", "--port", "2121", "--active")
		store, _ := storage.NewStore(h.dataDir)
		p, _ := store.Get(0)
		if p.Port != 2121 || p.PassiveMode || p.RemoteBaseDir != "/www" {
			t.Errorf("unexpected edited profile %+v", p)
		}
	})

	t.Run("Error Handling: unknown server", func(t *testing.T) {
		if _, err := h.run("", "server", "rm", "nope"); err == nil {
			t.Error("Expected error for unknown server")
		}
		if _, err := h.run("", "server", "rm", "9"); err == nil {
			t.Error("Expected error for out of range number")
		}
	})

	t.Run("Error Handling: add without host", func(t *testing.T) {
		if _, err := h.run("", "server", "add"); err == nil {
			t.Error("Expected error without --host")
		}
	})
}

func TestPushCommand(t *testing.T) {
	h := newHarness(t)
	local := t.TempDir()
	file := writeLocal(t, local, "index.html", 500)
	dir := filepath.Join(local, "assets")
	writeLocal(t, dir, "app.js", 1000)

	h.mustRun("server", "add", "--host", "a.example.com")
	h.mustRun("server", "add", "--host", "b.example.com", "--remote-dir", "/own")
	h.mustRun("server", "add", "--host", "c.example.com", "--disabled")

	t.Run("Core Functionality: uploads to enabled servers", func(t *testing.T) {
		out := h.mustRun("push", "-d", "/site", file, dir)

		if _, ok := h.fleet.Remote("a.example.com").ReadFile("/site/index.html"); !ok {
			t.Error("Expected index.html on a.example.com")
		}
		if _, ok := h.fleet.Remote("a.example.com").ReadFile("/site/assets/app.js"); !ok {
			t.Error("Expected assets/app.js on a.example.com")
		}
		if _, ok := h.fleet.Remote("b.example.com").ReadFile("/own/index.html"); !ok {
			t.Error("Expected b.example.com to use its own remote dir")
		}
		if h.fleet.Remote("c.example.com").Opens() != 0 {
			t.Error("Disabled server must not be contacted")
		}
		if !strings.Contains(out, "2 succeeded, 0 failed, 1 skipped") {
			t.Errorf("unexpected summary:\n%s", out)
		}
		if !strings.Contains(out, "c.example.com: Skipped (disabled)") {
			t.Errorf("Expected skipped status line:\n%s", out)
		}
	})

	t.Run("Core Functionality: explicit server is forced on", func(t *testing.T) {
		h.mustRun("push", "-s", "c.example.com", "-d", "/x", file)
		if _, ok := h.fleet.Remote("c.example.com").ReadFile("/x/index.html"); !ok {
			t.Error("Expected upload to explicitly selected server")
		}
	})

	t.Run("Error Handling: one failing server", func(t *testing.T) {
		h.fleet.Remote("a.example.com").OpenErr = errors.New("refused")
		defer func() { h.fleet.Remote("a.example.com").OpenErr = nil }()

		out, err := h.run("", "push", "-d", "/again", file)
		if err == nil {
			t.Fatal("Expected push to report failure")
		}
		if !strings.Contains(out, "1 succeeded, 1 failed, 1 skipped") {
			t.Errorf("unexpected summary:\n%s", out)
		}
		if _, ok := h.fleet.Remote("b.example.com").ReadFile("/own/index.html"); !ok {
			t.Error("Healthy server should still get the file")
		}
	})

	t.Run("Error Handling: no servers", func(t *testing.T) {
		empty := newHarness(t)
		if _, err := empty.run("", "push", file); err == nil {
			t.Error("Expected error with no servers")
		}
	})
}

func TestBrowseCommands(t *testing.T) {
	h := newHarness(t)
	h.mustRun("server", "add", "--host", "a.example.com")
	remote := h.fleet.Remote("a.example.com")
	remote.WriteFile("/site/readme.txt", []byte("hello"))
	remote.WriteFile("/site/docs/guide.md", []byte("guide"))

	t.Run("Core Functionality: ls", func(t *testing.T) {
		out := h.mustRun("ls", "a.example.com", "/site")
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != 3 || lines[0] != "a.example.com:/site" {
			t.Fatalf("unexpected listing:\n%s", out)
		}
		if !strings.HasSuffix(lines[1], "docs/") || !strings.HasSuffix(lines[2], "readme.txt") {
			t.Errorf("Expected directories first:\n%s", out)
		}
	})

	t.Run("Core Functionality: get directory", func(t *testing.T) {
		to := t.TempDir()
		h.mustRun("get", "1", "/site/docs", "--dir", "--to", to)
		data, err := os.ReadFile(filepath.Join(to, "docs", "guide.md"))
		if err != nil || string(data) != "guide" {
			t.Errorf("Expected downloaded guide.md, got %q (%v)", data, err)
		}
	})

	t.Run("Core Functionality: rm asks first", func(t *testing.T) {
		out, err := h.run("n\n", "rm", "1", "/site/readme.txt")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "Aborted") || !remote.Exists("/site/readme.txt") {
			t.Errorf("Expected abort without deleting:\n%s", out)
		}

		h.mustRun("rm", "1", "/site/docs", "--dir", "--yes")
		if remote.Exists("/site/docs") {
			t.Error("Expected docs tree to be deleted")
		}
	})

	t.Run("Core Functionality: test reports each server", func(t *testing.T) {
		h.mustRun("server", "add", "--host", "down.example.com")
		h.fleet.Remote("down.example.com").OpenErr = errors.New("connection refused")

		out, err := h.run("", "test")
		if err == nil {
			t.Error("Expected error when a server is unreachable")
		}
		if !strings.Contains(out, "OK   a.example.com: Connected to a.example.com") {
			t.Errorf("unexpected output:\n%s", out)
		}
		if !strings.Contains(out, "FAIL down.example.com") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})
}

func TestSettingsCommand(t *testing.T) {
	h := newHarness(t)

	h.mustRun("settings", "set", "default-remote-dir", "/deploy")
	h.mustRun("settings", "set", "connect-timeout", "9")
	h.mustRun("settings", "set", "s3-secret-key", "topsecret")

	out := h.mustRun("settings", "show")
	if !strings.Contains(out, "default-remote-dir: /deploy") || !strings.Contains(out, "connect-timeout:    9s") {
		t.Errorf("unexpected settings:\n%s", out)
	}
	if strings.Contains(out, "topsecret") {
		t.Error("Secret key must be masked")
	}

	if _, err := h.run("", "settings", "set", "connect-timeout", "-1"); err == nil {
		t.Error("Expected error for negative timeout")
	}
	if _, err := h.run("", "settings", "set", "colour", "blue"); err == nil {
		t.Error("Expected error for unknown key")
	}
}

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Put(_ context.Context, key string, data []byte) error {
	m.objects[key] = data
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (m *memoryStore) Latest(_ context.Context, prefix string) (string, error) {
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", errors.New("no backups found")
	}
	sort.Strings(keys)
	return keys[len(keys)-1], nil
}

func TestBackupCommand(t *testing.T) {
	h := newHarness(t)
	objects := &memoryStore{objects: make(map[string][]byte)}
	orig := newObjectStore
	newObjectStore = func(context.Context, storage.Settings) (backup.ObjectStore, error) { return objects, nil }
	t.Cleanup(func() { newObjectStore = orig })

	h.mustRun("server", "add", "--host", "a.example.com")
	h.mustRun("server", "add", "--host", "b.example.com")
	h.mustRun("settings", "set", "default-remote-dir", "/backed-up")

	out := h.mustRun("backup", "push", "--password", "pw")
	if !strings.Contains(out, "Backed up 2 servers") || len(objects.objects) != 1 {
		t.Fatalf("unexpected push result:\n%s", out)
	}

	h.mustRun("server", "rm", "1")
	h.mustRun("settings", "set", "default-remote-dir", "/changed")

	t.Run("Error Handling: wrong password", func(t *testing.T) {
		_, err := h.run("", "backup", "pull", "--password", "bad")
		if !errors.Is(err, backup.ErrDecrypt) {
			t.Errorf("Expected ErrDecrypt, got %v", err)
		}
	})

	t.Run("Core Functionality: pull with prompted password", func(t *testing.T) {
		out, err := h.run("pw\n", "backup", "pull")
		if err != nil {
			t.Fatalf("pull failed: %v\n%s", err, out)
		}
		store, _ := storage.NewStore(h.dataDir)
		if len(store.List()) != 2 {
			t.Errorf("Expected 2 restored servers, got %d", len(store.List()))
		}
		settings, _ := storage.NewSettingsStore(h.dataDir)
		if settings.Get().DefaultRemoteDir != "/backed-up" {
			t.Errorf("Expected restored remote dir, got %q", settings.Get().DefaultRemoteDir)
		}
	})
}
