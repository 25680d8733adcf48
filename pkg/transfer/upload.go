package transfer

import (
	"context"
	"fmt"
	"path/filepath"
)

// Upload copies localPaths into remoteDir. remoteDir is created as needed;
// "" and "/" upload into the session's starting directory. Progress is
// cumulative over the whole job.
func (w *Walker) Upload(ctx context.Context, localPaths []string, remoteDir string, onProgress ProgressFunc) (err error) {
	total, err := ScanLocal(localPaths)
	if err != nil {
		return err
	}

	restore, err := w.keepDir()
	if err != nil {
		return err
	}
	defer restore(&err)

	if err := w.sess.EnsureDir(remoteDir); err != nil {
		return fmt.Errorf("failed to prepare remote directory %q: %w", remoteDir, err)
	}
	base, err := w.sess.CurrentDir()
	if err != nil {
		return err
	}

	u := &upload{Walker: w, total: total, report: progress(onProgress)}
	for _, p := range localPaths {
		if err := u.path(ctx, p, base); err != nil {
			return err
		}
	}
	return nil
}

// upload holds the job's cumulative counter
type upload struct {
	*Walker
	done   uint64
	total  uint64
	report ProgressFunc
}

// path uploads one local path into remoteParent, which must be the current
// remote directory.
func (u *upload) path(ctx context.Context, localPath, remoteParent string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	kind, _, err := classify(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	name := filepath.Base(localPath)
	switch kind {
	case kindFile:
		u.log.Debug().Str("file", localPath).Str("dir", remoteParent).Msg("storing")
		return u.sess.Store(localPath, name, func(n int64) {
			u.done += uint64(n)
			u.report(u.done, u.total)
		})

	case kindDir:
		remoteDir := joinRemote(remoteParent, name)
		if err := enterDir(u.sess, name); err != nil {
			return fmt.Errorf("failed to enter %s: %w", remoteDir, err)
		}

		children, err := readDirSorted(localPath)
		if err != nil {
			return fmt.Errorf("failed to read directory %s: %w", localPath, err)
		}
		for _, child := range children {
			if err := u.path(ctx, filepath.Join(localPath, child), remoteDir); err != nil {
				return err
			}
		}
		return u.sess.ChangeDir(remoteParent)

	default:
		u.log.Debug().Str("path", localPath).Msg("skipping non-regular file")
		return nil
	}
}
