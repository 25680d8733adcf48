// Package browse runs single-endpoint operations: connection tests, directory
// listings, downloads and deletes. Each call opens and closes its own session.
package browse

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quocson95/ftpfleet/pkg/listing"
	"github.com/quocson95/ftpfleet/pkg/session"
	"github.com/quocson95/ftpfleet/pkg/storage"
	"github.com/quocson95/ftpfleet/pkg/transfer"
)

// TestTimeout bounds a connection test, lock wait included
const TestTimeout = 5 * time.Second

// Browser works on one endpoint at a time
type Browser struct {
	opener session.Opener
	log    zerolog.Logger
}

// New creates a browser
func New(opener session.Opener, log zerolog.Logger) *Browser {
	return &Browser{opener: opener, log: log}
}

// TestConnection opens, authenticates, sets binary mode and closes.
// The message is suitable for showing to the user either way.
func (b *Browser) TestConnection(ctx context.Context, p storage.Profile) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, TestTimeout)
	defer cancel()

	log := b.log.With().Str("host", p.Host).Logger()
	sess, err := b.opener.Open(ctx, p)
	if err != nil {
		log.Warn().Err(err).Msg("connection test failed")
		return false, err.Error()
	}
	defer sess.Close()

	if err := sess.SetBinary(); err != nil {
		log.Warn().Err(err).Msg("connection test failed")
		return false, err.Error()
	}
	log.Info().Msg("connection test passed")
	return true, fmt.Sprintf("Connected to %s", p.DisplayName)
}

// List returns the entries of dir and the directory the listing resolved to.
// An empty dir lists the login directory.
func (b *Browser) List(ctx context.Context, p storage.Profile, dir string) ([]listing.Entry, string, error) {
	log := b.log.With().Str("host", p.Host).Logger()
	sess, err := b.opener.Open(ctx, p)
	if err != nil {
		return nil, "", err
	}
	defer sess.Close()

	if dir != "" {
		if err := sess.ChangeDir(dir); err != nil {
			return nil, "", err
		}
	}
	cwd, err := sess.CurrentDir()
	if err != nil {
		return nil, "", err
	}

	entries, err := listing.Fetch(sess, log)
	if err != nil {
		return nil, cwd, err
	}
	log.Debug().Str("dir", cwd).Int("entries", len(entries)).Msg("listed")
	return entries, cwd, nil
}

// Download copies a remote file or directory into localDir
func (b *Browser) Download(ctx context.Context, p storage.Profile, remotePath, localDir string, isDir bool, onProgress transfer.ProgressFunc) error {
	log := b.log.With().Str("host", p.Host).Logger()
	sess, err := b.opener.Open(ctx, p)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := transfer.NewWalker(sess, log).Download(ctx, remotePath, localDir, isDir, onProgress); err != nil {
		log.Error().Err(err).Str("remote", remotePath).Msg("download failed")
		return err
	}
	log.Info().Str("remote", remotePath).Str("local", localDir).Msg("download finished")
	return nil
}

// Delete removes a remote file, or a directory with everything below it
func (b *Browser) Delete(ctx context.Context, p storage.Profile, remotePath string, isDir bool) error {
	log := b.log.With().Str("host", p.Host).Logger()
	sess, err := b.opener.Open(ctx, p)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := transfer.NewWalker(sess, log).Delete(ctx, remotePath, isDir); err != nil {
		log.Error().Err(err).Str("remote", remotePath).Msg("delete failed")
		return err
	}
	log.Info().Str("remote", remotePath).Msg("deleted")
	return nil
}

// Parent returns the directory above dir; the root is its own parent
func Parent(dir string) string {
	dir = strings.ReplaceAll(dir, `\`, "/")
	if dir == "" || dir == "/" {
		return "/"
	}
	return path.Dir(strings.TrimSuffix(dir, "/"))
}

// Join appends an entry name to a listed directory
func Join(dir, name string) string {
	if dir == "" || dir == "/" {
		return "/" + name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}
