package session_test

import (
	"errors"
	"testing"

	"github.com/quocson95/ftpfleet/pkg/session"
	"github.com/quocson95/ftpfleet/pkg/session/sessiontest"
)

func TestEnsureDir(t *testing.T) {
	t.Run("Core Functionality: creates missing segments", func(t *testing.T) {
		remote := sessiontest.NewRemote()
		s := remote.Connect()

		if err := s.EnsureDir("/a/b"); err != nil {
			t.Fatalf("EnsureDir failed: %v", err)
		}
		if cwd, _ := s.CurrentDir(); cwd != "/a/b" {
			t.Errorf("Expected cwd /a/b, got %s", cwd)
		}
		if !remote.IsDir("/a/b") {
			t.Error("Expected /a/b to exist")
		}
	})

	t.Run("Core Functionality: idempotent", func(t *testing.T) {
		remote := sessiontest.NewRemote()
		s := remote.Connect()

		if err := s.EnsureDir("/a/b"); err != nil {
			t.Fatal(err)
		}
		created := len(remote.Ops())

		if err := s.EnsureDir("/a/b"); err != nil {
			t.Fatalf("second EnsureDir failed: %v", err)
		}
		if cwd, _ := s.CurrentDir(); cwd != "/a/b" {
			t.Errorf("Expected cwd /a/b, got %s", cwd)
		}
		if len(remote.Ops()) != created {
			t.Errorf("second call created directories: %v", remote.Ops()[created:])
		}
	})

	t.Run("Core Functionality: relative path from cwd", func(t *testing.T) {
		remote := sessiontest.NewRemote()
		remote.Mkdir("/base")
		s := remote.Connect()
		if err := s.ChangeDir("/base"); err != nil {
			t.Fatal(err)
		}

		if err := s.EnsureDir(`x\y`); err != nil {
			t.Fatal(err)
		}
		if cwd, _ := s.CurrentDir(); cwd != "/base/x/y" {
			t.Errorf("Expected /base/x/y, got %s", cwd)
		}
	})

	t.Run("Edge Case: empty segments skipped", func(t *testing.T) {
		remote := sessiontest.NewRemote()
		s := remote.Connect()

		if err := s.EnsureDir("//a///b/"); err != nil {
			t.Fatal(err)
		}
		want := []string{"mkdir /a", "mkdir /a/b"}
		got := remote.Ops()
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("Expected %v, got %v", want, got)
		}
	})

	t.Run("Edge Case: root and empty are no-ops", func(t *testing.T) {
		remote := sessiontest.NewRemote()
		remote.Mkdir("/stay")
		s := remote.Connect()
		s.ChangeDir("/stay")

		for _, p := range []string{"", "/"} {
			if err := s.EnsureDir(p); err != nil {
				t.Errorf("EnsureDir(%q) failed: %v", p, err)
			}
			if cwd, _ := s.CurrentDir(); cwd != "/stay" {
				t.Errorf("EnsureDir(%q) moved cwd to %s", p, cwd)
			}
		}
	})

	t.Run("Error Handling: mkdir failure is a path error", func(t *testing.T) {
		remote := sessiontest.NewRemote()
		remote.FailOn("mkdir", "/locked", errors.New("550 permission denied"))
		s := remote.Connect()

		err := s.EnsureDir("/locked/inner")
		if !errors.Is(err, session.ErrPath) {
			t.Errorf("Expected ErrPath, got %v", err)
		}
	})
}
