// Package transfer mirrors directory trees between the local file system and
// one remote session.
package transfer

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quocson95/ftpfleet/pkg/session"
)

// ProgressFunc receives cumulative bytes done and the total. A total of zero
// means the size is unknown.
type ProgressFunc func(done, total uint64)

// Walker drives recursive operations over a single session. It is not safe
// for concurrent use; give each goroutine its own session and walker.
type Walker struct {
	sess session.Session
	log  zerolog.Logger
}

// NewWalker creates a walker over sess
func NewWalker(sess session.Session, log zerolog.Logger) *Walker {
	return &Walker{sess: sess, log: log}
}

// keepDir records the working directory and returns a func that restores it.
// The restore error replaces *errp only when the walk itself succeeded.
func (w *Walker) keepDir() (func(errp *error), error) {
	start, err := w.sess.CurrentDir()
	if err != nil {
		return nil, err
	}
	return func(errp *error) {
		if rerr := w.sess.ChangeDir(start); rerr != nil {
			w.log.Warn().Err(rerr).Str("dir", start).Msg("failed to restore working directory")
			if *errp == nil {
				*errp = fmt.Errorf("failed to restore working directory: %w", rerr)
			}
		}
	}, nil
}

// absolute resolves p against the session's working directory
func (w *Walker) absolute(p string) (string, error) {
	p = strings.ReplaceAll(p, `\`, "/")
	if path.IsAbs(p) {
		return path.Clean(p), nil
	}
	cwd, err := w.sess.CurrentDir()
	if err != nil {
		return "", err
	}
	return path.Join(cwd, p), nil
}

// enterDir enters the child directory name of the working directory, creating
// it first when it is missing. name is one path segment and is sent as is.
func enterDir(sess session.Session, name string) error {
	if err := sess.ChangeDir(name); err == nil {
		return nil
	}
	if err := sess.MakeDir(name); err != nil {
		return fmt.Errorf("%w: failed to create directory %s: %w", session.ErrPath, name, err)
	}
	if err := sess.ChangeDir(name); err != nil {
		return fmt.Errorf("%w: failed to enter directory %s: %w", session.ErrPath, name, err)
	}
	return nil
}

// localName checks that a listed entry name is a single local path element,
// so a download can never write outside its target directory.
func localName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || !filepath.IsLocal(name) {
		return fmt.Errorf("refusing unsafe remote entry name %q", name)
	}
	return nil
}

// joinRemote appends name to dir without doubling the slash at the root
func joinRemote(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}

func progress(fn ProgressFunc) ProgressFunc {
	if fn == nil {
		return func(uint64, uint64) {}
	}
	return fn
}
