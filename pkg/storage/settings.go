package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Settings represents application settings
type Settings struct {
	DefaultRemoteDir       string `json:"defaultRemoteDir"`
	ConnectTimeoutSeconds  int    `json:"connectTimeoutSeconds"`
	TransferTimeoutSeconds int    `json:"transferTimeoutSeconds"`
	LocalDownloadDir       string `json:"localDownloadDir"`
	S3Host                 string `json:"s3Host,omitempty"`      // S3 Endpoint
	S3AccessKey            string `json:"s3AccessKey,omitempty"` // S3 Access Key
	S3SecretKey            string `json:"s3SecretKey,omitempty"` // S3 Secret Key
	S3Bucket               string `json:"s3Bucket,omitempty"`
}

// ConnectTimeout returns the connection-establish timeout
func (s Settings) ConnectTimeout() time.Duration {
	if s.ConnectTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ConnectTimeoutSeconds) * time.Second
}

// TransferTimeout returns the per-transfer socket idle timeout
func (s Settings) TransferTimeout() time.Duration {
	if s.TransferTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(s.TransferTimeoutSeconds) * time.Second
}

// SettingsStore manages application settings
type SettingsStore struct {
	settings Settings
	filePath string
	mu       sync.RWMutex
}

// NewSettingsStore creates a new settings store
func NewSettingsStore(dataDir string) (*SettingsStore, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	filePath := filepath.Join(dataDir, "settings.json")
	store := &SettingsStore{
		settings: getDefaultSettings(),
		filePath: filePath,
	}

	// Load existing settings
	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := store.save(); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// getDefaultSettings returns default settings
func getDefaultSettings() Settings {
	return Settings{
		DefaultRemoteDir:       "",
		ConnectTimeoutSeconds:  5,
		TransferTimeoutSeconds: 60,
		LocalDownloadDir:       ".",
		S3Bucket:               "ftpfleet",
	}
}

// load reads settings from disk
func (s *SettingsStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &s.settings)
}

// save writes settings to disk
func (s *SettingsStore) save() error {
	data, err := json.MarshalIndent(s.settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	return os.WriteFile(s.filePath, data, 0600)
}

// Get returns current settings
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update updates settings
func (s *SettingsStore) Update(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = settings
	return s.save()
}

func (s *SettingsStore) SetDefaultRemoteDir(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.DefaultRemoteDir = dir
	return s.save()
}

func (s *SettingsStore) SetTimeouts(connectSeconds, transferSeconds int) error {
	if connectSeconds <= 0 || transferSeconds <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.ConnectTimeoutSeconds = connectSeconds
	s.settings.TransferTimeoutSeconds = transferSeconds
	return s.save()
}

// Reset resets settings to defaults
func (s *SettingsStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = getDefaultSettings()
	return s.save()
}

// GetDataDir returns the directory where settings are stored
func (s *SettingsStore) GetDataDir() string {
	return filepath.Dir(s.filePath)
}
