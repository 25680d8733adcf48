package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ServersFile is the name of the profile list inside the data directory
const ServersFile = "servers.json"

// Store manages the ordered list of endpoint profiles
type Store struct {
	profiles []Profile
	filePath string
	mu       sync.RWMutex
}

// NewStore creates a new profile store
func NewStore(dataDir string) (*Store, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &Store{
		filePath: filepath.Join(dataDir, ServersFile),
	}

	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(*corruptedError); ok {
				// Continue with an empty list, the broken file was backed up
				fmt.Fprintf(os.Stderr, "WARNING: %v\n", err)
			} else {
				return nil, err
			}
		}
	}

	return store, nil
}

type corruptedError struct {
	backupPath string
	err        error
}

func (e *corruptedError) Error() string {
	return fmt.Sprintf("corrupted %s detected and backed up to %s - file has been reset: %v", ServersFile, e.backupPath, e.err)
}

func (e *corruptedError) Unwrap() error { return e.err }

// load reads profiles from disk
func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return s.save()
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		backupPath := s.filePath + ".corrupted"
		if backupErr := os.WriteFile(backupPath, data, 0600); backupErr != nil {
			return fmt.Errorf("failed to parse servers file: %w", err)
		}
		s.profiles = nil
		if saveErr := s.save(); saveErr != nil {
			return fmt.Errorf("failed to parse servers file (backup saved to %s): %w", backupPath, err)
		}
		return &corruptedError{backupPath: backupPath, err: err}
	}

	s.profiles = make([]Profile, 0, len(records))
	for _, r := range records {
		s.profiles = append(s.profiles, FromRecord(r))
	}
	return nil
}

// save writes profiles to disk
func (s *Store) save() error {
	records := make([]Record, 0, len(s.profiles))
	for _, p := range s.profiles {
		records = append(records, p.ToRecord())
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal servers: %w", err)
	}

	return os.WriteFile(s.filePath, data, 0600)
}

// Add appends a profile
func (s *Store) Add(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles = append(s.profiles, p)
	return s.save()
}

// Get returns the profile at index i
func (s *Store) Get(i int) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= len(s.profiles) {
		return Profile{}, fmt.Errorf("server not found: #%d", i)
	}
	return s.profiles[i], nil
}

// FindByName returns the index of the profile whose display name or host matches
func (s *Store) FindByName(name string) (int, Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, p := range s.profiles {
		if p.DisplayName == name {
			return i, p, nil
		}
	}
	for i, p := range s.profiles {
		if p.Host == name {
			return i, p, nil
		}
	}
	return -1, Profile{}, fmt.Errorf("server not found: %s", name)
}

// List returns a copy of all profiles in order
func (s *Store) List() []Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]Profile, len(s.profiles))
	copy(profiles, s.profiles)
	return profiles
}

// Records returns all profiles in their persisted shape
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(s.profiles))
	for _, p := range s.profiles {
		records = append(records, p.ToRecord())
	}
	return records
}

// Update replaces the profile at index i
func (s *Store) Update(i int, p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.profiles) {
		return fmt.Errorf("server not found: #%d", i)
	}
	s.profiles[i] = p
	return s.save()
}

// SetEnabled toggles whether the profile takes part in distribution
func (s *Store) SetEnabled(i int, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.profiles) {
		return fmt.Errorf("server not found: #%d", i)
	}
	s.profiles[i].Enabled = enabled
	return s.save()
}

// Remove deletes the profile at index i
func (s *Store) Remove(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.profiles) {
		return fmt.Errorf("server not found: #%d", i)
	}
	s.profiles = append(s.profiles[:i], s.profiles[i+1:]...)
	return s.save()
}

// Replace swaps the whole list, used when restoring a backup
func (s *Store) Replace(records []Record) error {
	profiles := make([]Profile, 0, len(records))
	for _, r := range records {
		p := FromRecord(r)
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid server %q: %w", r.Name, err)
		}
		profiles = append(profiles, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles = profiles
	return s.save()
}
