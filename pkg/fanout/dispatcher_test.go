package fanout_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quocson95/ftpfleet/pkg/fanout"
	"github.com/quocson95/ftpfleet/pkg/session"
	"github.com/quocson95/ftpfleet/pkg/session/sessiontest"
	"github.com/quocson95/ftpfleet/pkg/storage"
)

func writeFile(t *testing.T, p string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(strings.Repeat("x", size)), 0644); err != nil {
		t.Fatal(err)
	}
}

func profile(host string, enabled bool) storage.Profile {
	p := storage.NewProfile(host)
	p.Enabled = enabled
	return p
}

func waitRun(t *testing.T, run *fanout.Run) []fanout.Result {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	return run.Wait()
}

func TestDistributeScenario(t *testing.T) {
	local := t.TempDir()
	writeFile(t, filepath.Join(local, "a.txt"), 500)
	writeFile(t, filepath.Join(local, "dir", "b.txt"), 1000)
	writeFile(t, filepath.Join(local, "dir", "sub", "c.txt"), 2000)

	fleet := sessiontest.NewFleet()
	profiles := []storage.Profile{
		profile("E1", true),
		profile("E2", true),
		profile("E3", false),
	}

	rec := &fanout.Recorder{}
	d := fanout.NewDispatcher(fleet, zerolog.Nop())
	run := d.Distribute(context.Background(), profiles,
		[]string{filepath.Join(local, "a.txt"), filepath.Join(local, "dir")}, "/up", rec, rec)
	results := waitRun(t, run)

	t.Run("Core Functionality: enabled endpoints receive the tree", func(t *testing.T) {
		want := []string{"/up/", "/up/a.txt", "/up/dir/", "/up/dir/b.txt", "/up/dir/sub/", "/up/dir/sub/c.txt"}
		for _, host := range []string{"E1", "E2"} {
			got := fleet.Remote(host).Tree()
			if strings.Join(got, ",") != strings.Join(want, ",") {
				t.Errorf("%s tree:\n got %v\nwant %v", host, got, want)
			}
		}
	})

	t.Run("Core Functionality: progress reaches the total", func(t *testing.T) {
		for _, host := range []string{"E1", "E2"} {
			last, ok := rec.LastProgress(host)
			if !ok || last.BytesDone != 3500 || last.BytesTotal != 3500 {
				t.Errorf("%s: expected final 3500/3500, got %+v", host, last)
			}
		}
	})

	t.Run("Core Functionality: statuses", func(t *testing.T) {
		for _, host := range []string{"E1", "E2"} {
			got := rec.StatusesFor(host)
			if len(got) != 2 {
				t.Fatalf("%s: expected 2 statuses, got %+v", host, got)
			}
			if got[0].Message != fanout.MsgUploading || got[0].Code != fanout.InProgress {
				t.Errorf("%s: unexpected first status %+v", host, got[0])
			}
			if got[1].Message != fanout.MsgSuccess || got[1].Code != fanout.Success {
				t.Errorf("%s: unexpected final status %+v", host, got[1])
			}
		}
	})

	t.Run("Core Functionality: disabled endpoint skipped", func(t *testing.T) {
		got := rec.StatusesFor("E3")
		if len(got) != 1 || got[0].Message != fanout.MsgSkipped || got[0].Code != fanout.InProgress {
			t.Errorf("unexpected E3 statuses %+v", got)
		}
		if fleet.Remote("E3").Opens() != 0 {
			t.Error("disabled endpoint was opened")
		}
		if len(rec.ProgressFor("E3")) != 0 {
			t.Error("disabled endpoint reported progress")
		}
		if fleet.Remote("E3").Exists("/up") {
			t.Error("disabled endpoint received files")
		}
	})

	t.Run("Core Functionality: results", func(t *testing.T) {
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		if !results[0].Success || !results[1].Success {
			t.Errorf("expected enabled endpoints to succeed: %+v", results[:2])
		}
		if !results[2].Skipped || results[2].Success {
			t.Errorf("expected disabled endpoint skipped: %+v", results[2])
		}
		for _, host := range []string{"E1", "E2"} {
			if !fleet.Remote(host).AllClosed() {
				t.Errorf("%s: session left open", host)
			}
		}
	})
}

func TestDistributeFailureIsolation(t *testing.T) {
	local := t.TempDir()
	writeFile(t, filepath.Join(local, "f.bin"), 64)

	fleet := sessiontest.NewFleet()
	fleet.Remote("bad").FailOn("store", "/in/f.bin", errors.New("552 disk full"))
	fleet.Remote("down").OpenErr = errors.Join(session.ErrConnect, errors.New("connection refused"))

	profiles := []storage.Profile{profile("good", true), profile("bad", true), profile("down", true)}
	rec := &fanout.Recorder{}
	run := fanout.NewDispatcher(fleet, zerolog.Nop()).
		Distribute(context.Background(), profiles, []string{filepath.Join(local, "f.bin")}, "/in", rec, rec)
	results := waitRun(t, run)

	if !results[0].Success {
		t.Errorf("good endpoint failed: %+v", results[0])
	}
	if _, ok := fleet.Remote("good").ReadFile("/in/f.bin"); !ok {
		t.Error("good endpoint did not receive the file")
	}

	for i, host := range []string{"bad", "down"} {
		res := results[i+1]
		if res.Success || res.Err == nil {
			t.Errorf("%s: expected failure, got %+v", host, res)
		}
		statuses := rec.StatusesFor(host)
		last := statuses[len(statuses)-1]
		if last.Code != fanout.Failed || !strings.HasPrefix(last.Message, "Failed: ") {
			t.Errorf("%s: unexpected final status %+v", host, last)
		}
	}
	if !errors.Is(results[1].Err, session.ErrTransfer) {
		t.Errorf("expected transfer error, got %v", results[1].Err)
	}
	if !errors.Is(results[2].Err, session.ErrConnect) {
		t.Errorf("expected connect error, got %v", results[2].Err)
	}
}

func TestDistributeUsesProfileRemoteDir(t *testing.T) {
	local := t.TempDir()
	writeFile(t, filepath.Join(local, "f.txt"), 5)

	fleet := sessiontest.NewFleet()
	own := profile("own", true)
	own.RemoteBaseDir = "  /custom/path "
	profiles := []storage.Profile{own, profile("default", true)}

	results := waitRun(t, fanout.NewDispatcher(fleet, zerolog.Nop()).
		Distribute(context.Background(), profiles, []string{filepath.Join(local, "f.txt")}, "/shared", nil, nil))

	if !fleet.Remote("own").Exists("/custom/path/f.txt") {
		t.Error("expected profile remote dir to win")
	}
	if !fleet.Remote("default").Exists("/shared/f.txt") {
		t.Error("expected default remote dir")
	}
	if results[0].RemoteDir != "/custom/path" || results[1].RemoteDir != "/shared" {
		t.Errorf("unexpected remote dirs %q %q", results[0].RemoteDir, results[1].RemoteDir)
	}
}

func TestDistributeSnapshotsProfiles(t *testing.T) {
	local := t.TempDir()
	writeFile(t, filepath.Join(local, "f.txt"), 5)

	fleet := sessiontest.NewFleet()
	profiles := []storage.Profile{profile("orig", true)}

	run := fanout.NewDispatcher(fleet, zerolog.Nop()).
		Distribute(context.Background(), profiles, []string{filepath.Join(local, "f.txt")}, "/x", nil, nil)
	profiles[0].Host = "mutated"
	results := waitRun(t, run)

	if results[0].Profile.Host != "orig" || fleet.Remote("mutated").Opens() != 0 {
		t.Errorf("dispatch used a mutated profile: %+v", results[0].Profile)
	}
}

type panicOpener struct{}

func (panicOpener) Open(context.Context, storage.Profile) (session.Session, error) {
	panic("boom")
}

func TestDistributeRecoversPanics(t *testing.T) {
	rec := &fanout.Recorder{}
	results := waitRun(t, fanout.NewDispatcher(panicOpener{}, zerolog.Nop()).
		Distribute(context.Background(), []storage.Profile{profile("p", true)}, nil, "/", rec, rec))

	if results[0].Success || results[0].Err == nil {
		t.Errorf("expected failure, got %+v", results[0])
	}
	statuses := rec.StatusesFor("p")
	if last := statuses[len(statuses)-1]; last.Code != fanout.Failed {
		t.Errorf("expected failed status, got %+v", last)
	}
}

func TestChannelSink(t *testing.T) {
	local := t.TempDir()
	writeFile(t, filepath.Join(local, "f.txt"), 10)

	sink := fanout.NewChannelSink(64)
	run := fanout.NewDispatcher(sessiontest.NewFleet(), zerolog.Nop()).
		Distribute(context.Background(), []storage.Profile{profile("h", true), profile("off", false)},
			[]string{filepath.Join(local, "f.txt")}, "/", sink, sink)
	waitRun(t, run)

	var statuses []fanout.StatusEvent
	var progress []fanout.ProgressEvent
	for len(sink.C) > 0 {
		ev := <-sink.C
		if ev.Status != nil {
			statuses = append(statuses, *ev.Status)
		}
		if ev.Progress != nil {
			progress = append(progress, *ev.Progress)
		}
	}

	if len(statuses) != 3 {
		t.Errorf("expected skipped + uploading + success, got %+v", statuses)
	}
	if len(progress) == 0 || progress[len(progress)-1].BytesDone != 10 {
		t.Errorf("unexpected progress %+v", progress)
	}
}
