// Package session provides one live connection to a remote endpoint and the
// operations the transfer walker drives over it.
package session

import (
	"context"
	"time"

	"github.com/quocson95/ftpfleet/pkg/listing"
	"github.com/quocson95/ftpfleet/pkg/storage"
)

// Session is bound to one profile for one operation. Paths without a leading
// slash are relative to the session's working directory.
type Session interface {
	// EnsureDir enters path, creating each missing segment on the way
	EnsureDir(path string) error
	ChangeDir(path string) error
	CurrentDir() (string, error)
	MakeDir(name string) error

	// ListFacts lists the working directory as structured facts
	ListFacts() ([]listing.Record, error)
	// ListLines lists the working directory as legacy LIST lines
	ListLines() ([]string, error)

	// Store uploads localPath as remoteName; onBytes receives each chunk size
	Store(localPath, remoteName string, onBytes func(n int64)) error
	Retrieve(remotePath, localPath string, onBytes func(n int64)) error
	FileSize(remotePath string) (int64, error)
	SetBinary() error

	Delete(remoteName string) error
	RemoveDir(remoteName string) error

	// Close is safe to call more than once
	Close() error
}

// Opener opens sessions for profiles
type Opener interface {
	Open(ctx context.Context, p storage.Profile) (Session, error)
}

// Options controls connection behaviour
type Options struct {
	ConnectTimeout  time.Duration
	TransferTimeout time.Duration // idle socket timeout during transfers
}

// DefaultOptions returns the stock timeouts
func DefaultOptions() Options {
	return Options{
		ConnectTimeout:  5 * time.Second,
		TransferTimeout: 60 * time.Second,
	}
}

// OptionsFromSettings reads the timeouts from persisted settings
func OptionsFromSettings(s storage.Settings) Options {
	return Options{
		ConnectTimeout:  s.ConnectTimeout(),
		TransferTimeout: s.TransferTimeout(),
	}
}
