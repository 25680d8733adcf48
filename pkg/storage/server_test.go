package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestServerStoreCRUD(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "ftpfleet-server-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	if err != nil {
		t.Fatal(err)
	}

	// 1. Add
	first := NewProfile("10.0.0.1")
	first.DisplayName = "Edge A"
	second := NewProfile("10.0.0.2")

	if err := store.Add(first); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.Add(second); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// 2. Get keeps insertion order
	retrieved, err := store.Get(0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.DisplayName != "Edge A" {
		t.Errorf("Expected name 'Edge A', got '%s'", retrieved.DisplayName)
	}

	// 3. FindByName falls back to host
	idx, _, err := store.FindByName("10.0.0.2")
	if err != nil || idx != 1 {
		t.Errorf("Expected index 1, got %d (%v)", idx, err)
	}

	// 4. Update
	first.RemoteBaseDir = "/www"
	if err := store.Update(0, first); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	updated, _ := store.Get(0)
	if updated.RemoteBaseDir != "/www" {
		t.Errorf("Expected remote dir '/www', got '%s'", updated.RemoteBaseDir)
	}

	// 5. Toggle
	if err := store.SetEnabled(1, false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	toggled, _ := store.Get(1)
	if toggled.Enabled {
		t.Error("Expected second server to be disabled")
	}

	// 6. Remove
	if err := store.Remove(0); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if len(store.List()) != 1 {
		t.Errorf("Expected 1 server after remove, got %d", len(store.List()))
	}
	if _, err := store.Get(1); err == nil {
		t.Error("Expected Get to fail for out of range index")
	}
}

func TestServerStoreRejectsInvalidProfile(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Add(Profile{Port: 21}); err == nil {
		t.Error("Expected error for profile without host")
	}
	bad := NewProfile("example.com")
	bad.Port = 70000
	if err := store.Add(bad); err == nil {
		t.Error("Expected error for out of range port")
	}
}

func TestServerPersistence(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	if err != nil {
		t.Fatal(err)
	}

	p := NewProfile("ftp.example.com")
	p.DisplayName = "Persistent Server"
	p.Password = "secret"
	if err := store.Add(p); err != nil {
		t.Fatal(err)
	}

	newStore, err := NewStore(tempDir)
	if err != nil {
		t.Fatal(err)
	}

	loaded, err := newStore.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if loaded != p {
		t.Errorf("Persisted profile mismatch: got %+v, want %+v", loaded, p)
	}
}

func TestLoadAppliesRecordDefaults(t *testing.T) {
	tempDir := t.TempDir()
	content := `[{"host": "bare.example.com"}]`
	if err := os.WriteFile(filepath.Join(tempDir, ServersFile), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(tempDir)
	if err != nil {
		t.Fatal(err)
	}

	p, err := store.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	want := NewProfile("bare.example.com")
	if p != want {
		t.Errorf("Defaults not applied: got %+v, want %+v", p, want)
	}
}

func TestCorruptedFileHandling(t *testing.T) {
	tempDir := t.TempDir()

	filePath := filepath.Join(tempDir, ServersFile)
	if err := os.WriteFile(filePath, []byte("{invalid-json"), 0600); err != nil {
		t.Fatal(err)
	}

	// Should recover gracefully (backup and reset)
	store, err := NewStore(tempDir)
	if err != nil {
		t.Fatalf("NewStore failed to handle corruption: %v", err)
	}

	if len(store.List()) != 0 {
		t.Error("Expected empty store after corruption reset")
	}

	if _, err := os.Stat(filePath + ".corrupted"); os.IsNotExist(err) {
		t.Error("Backup file wasn't created")
	}
}

func TestReplace(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	records := []Record{
		NewProfile("a.example.com").ToRecord(),
		NewProfile("b.example.com").ToRecord(),
	}
	if err := store.Replace(records); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	got := store.Records()
	if len(got) != 2 || got[0] != records[0] || got[1] != records[1] {
		t.Errorf("Replace mismatch: %+v", got)
	}

	if err := store.Replace([]Record{{Port: 21}}); err == nil {
		t.Error("Expected Replace to reject a record without host")
	}
	if len(store.List()) != 2 {
		t.Error("Failed Replace must not modify the store")
	}
}
