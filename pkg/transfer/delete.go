package transfer

import (
	"context"
	"fmt"
	"path"

	"github.com/quocson95/ftpfleet/pkg/listing"
)

// Delete removes remotePath. Directories are emptied depth first, then
// removed from their parent.
func (w *Walker) Delete(ctx context.Context, remotePath string, isDir bool) (err error) {
	restore, err := w.keepDir()
	if err != nil {
		return err
	}
	defer restore(&err)

	remote, err := w.absolute(remotePath)
	if err != nil {
		return err
	}

	if !isDir {
		return w.sess.Delete(remote)
	}
	if remote == "/" {
		return fmt.Errorf("refusing to delete the root directory")
	}
	return w.deleteDir(ctx, remote)
}

func (w *Walker) deleteDir(ctx context.Context, remote string) error {
	if err := w.sess.ChangeDir(remote); err != nil {
		return err
	}
	entries, err := listing.Fetch(w.sess, w.log)
	if err != nil {
		return err
	}

	// sub-directories first, then files
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.deleteDir(ctx, joinRemote(remote, e.Name)); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.sess.Delete(joinRemote(remote, e.Name)); err != nil {
			return err
		}
	}

	parent := path.Dir(remote)
	if err := w.sess.ChangeDir(parent); err != nil {
		return err
	}
	w.log.Debug().Str("dir", remote).Msg("removing directory")
	return w.sess.RemoveDir(path.Base(remote))
}
