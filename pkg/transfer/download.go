package transfer

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/quocson95/ftpfleet/pkg/listing"
)

// Download copies remotePath into localDir. A directory is mirrored
// recursively under localDir/<base name>.
func (w *Walker) Download(ctx context.Context, remotePath, localDir string, isDir bool, onProgress ProgressFunc) (err error) {
	restore, err := w.keepDir()
	if err != nil {
		return err
	}
	defer restore(&err)

	remote, err := w.absolute(remotePath)
	if err != nil {
		return err
	}
	report := progress(onProgress)

	if !isDir {
		return w.downloadFile(remote, filepath.Join(localDir, path.Base(remote)), report)
	}

	target := filepath.Join(localDir, path.Base(remote))
	if remote == "/" {
		target = localDir
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("failed to create local directory: %w", err)
	}
	return w.downloadDir(ctx, remote, target, report)
}

func (w *Walker) downloadFile(remote, localPath string, report ProgressFunc) error {
	w.log.Info().Str("remote", remote).Str("local", localPath).Msg("downloading")

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create local directory: %w", err)
	}

	var size uint64
	if n, err := w.sess.FileSize(remote); err == nil && n > 0 {
		size = uint64(n)
	} else if err != nil {
		w.log.Debug().Err(err).Str("remote", remote).Msg("size unknown")
	}

	if err := w.sess.SetBinary(); err != nil {
		w.log.Warn().Err(err).Msg("failed to set binary mode for download")
	}

	var done uint64
	return w.sess.Retrieve(remote, localPath, func(n int64) {
		if size == 0 {
			report(0, 0)
			return
		}
		done += uint64(n)
		report(done, size)
	})
}

// downloadDir mirrors the remote directory at remote into the existing local
// directory localDir.
func (w *Walker) downloadDir(ctx context.Context, remote, localDir string, report ProgressFunc) error {
	if err := w.sess.ChangeDir(remote); err != nil {
		return err
	}
	entries, err := listing.Fetch(w.sess, w.log)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := localName(e.Name); err != nil {
			return fmt.Errorf("failed to download %s: %w", remote, err)
		}
		childRemote := joinRemote(remote, e.Name)
		childLocal := filepath.Join(localDir, e.Name)

		if e.IsDir() {
			if err := os.MkdirAll(childLocal, 0755); err != nil {
				return fmt.Errorf("failed to create local directory: %w", err)
			}
			if err := w.downloadDir(ctx, childRemote, childLocal, report); err != nil {
				return err
			}
			continue
		}
		if err := w.downloadFile(childRemote, childLocal, report); err != nil {
			return err
		}
	}
	return nil
}
