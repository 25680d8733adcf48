// Package sessiontest provides an in-memory remote file system that speaks the
// session.Session interface.
package sessiontest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/quocson95/ftpfleet/pkg/listing"
	"github.com/quocson95/ftpfleet/pkg/session"
	"github.com/quocson95/ftpfleet/pkg/storage"
)

// DefaultChunkSize is how many bytes each progress callback reports
const DefaultChunkSize = 256

type node struct {
	dir      bool
	data     []byte
	children map[string]*node
}

func newDir() *node {
	return &node{dir: true, children: make(map[string]*node)}
}

// Remote is one fake endpoint. It is safe for concurrent use.
type Remote struct {
	mu   sync.Mutex
	root *node

	// FactsUnsupported makes ListFacts fail so callers fall back to lines
	FactsUnsupported bool
	// LinesUnsupported makes ListLines fail
	LinesUnsupported bool
	// OpenErr is returned by Open when set
	OpenErr   error
	ChunkSize int

	failures map[string]error
	opens    int
	sessions []*Session
	ops      []string
}

// NewRemote returns an empty remote with only the root directory
func NewRemote() *Remote {
	return &Remote{root: newDir(), failures: make(map[string]error)}
}

// FailOn makes op on the absolute path p fail with err. Ops are "cd", "mkdir",
// "store", "retrieve", "size", "delete" and "rmdir".
func (r *Remote) FailOn(op, p string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op+" "+path.Clean(p)] = err
}

// Open implements session.Opener
func (r *Remote) Open(ctx context.Context, _ storage.Profile) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opens++
	if r.OpenErr != nil {
		return nil, r.OpenErr
	}
	s := &Session{remote: r, cwd: "/"}
	r.sessions = append(r.sessions, s)
	return s, nil
}

// Connect returns a concrete session rooted at "/"
func (r *Remote) Connect() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &Session{remote: r, cwd: "/"}
	r.sessions = append(r.sessions, s)
	return s
}

// Opens counts calls to Open
func (r *Remote) Opens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens
}

// AllClosed reports whether every session handed out has been closed
func (r *Remote) AllClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if !s.closed {
			return false
		}
	}
	return true
}

// Ops returns the mutating operations in the order they happened, as
// "op /abs/path" strings.
func (r *Remote) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

// Mkdir creates p and any missing parents
func (r *Remote) Mkdir(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mkdirAll(p)
}

// WriteFile creates or replaces a file, creating parents as needed
func (r *Remote) WriteFile(p string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dir, name := path.Split(path.Clean(p))
	parent := r.mkdirAll(dir)
	parent.children[name] = &node{data: append([]byte(nil), data...)}
}

// ReadFile returns a file's content
func (r *Remote) ReadFile(p string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.lookup(p)
	if n == nil || n.dir {
		return nil, false
	}
	return append([]byte(nil), n.data...), true
}

// IsDir reports whether p exists and is a directory
func (r *Remote) IsDir(p string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.lookup(p)
	return n != nil && n.dir
}

// Exists reports whether p exists
func (r *Remote) Exists(p string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(p) != nil
}

// Tree lists every path below the root in sorted order; directories end in "/"
func (r *Remote) Tree() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	var walk func(prefix string, n *node)
	walk = func(prefix string, n *node) {
		for name, child := range n.children {
			p := prefix + "/" + name
			if child.dir {
				out = append(out, p+"/")
				walk(p, child)
			} else {
				out = append(out, p)
			}
		}
	}
	walk("", r.root)
	sort.Strings(out)
	return out
}

func (r *Remote) lookup(p string) *node {
	n := r.root
	for _, seg := range strings.Split(path.Clean("/"+p), "/") {
		if seg == "" {
			continue
		}
		if !n.dir {
			return nil
		}
		child, ok := n.children[seg]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

func (r *Remote) mkdirAll(p string) *node {
	n := r.root
	for _, seg := range strings.Split(path.Clean("/"+p), "/") {
		if seg == "" {
			continue
		}
		child, ok := n.children[seg]
		if !ok {
			child = newDir()
			n.children[seg] = child
		}
		n = child
	}
	return n
}

func (r *Remote) failure(op, p string) error {
	return r.failures[op+" "+p]
}

func (r *Remote) record(op, p string) {
	r.ops = append(r.ops, op+" "+p)
}

// Session is one fake connection with its own working directory
type Session struct {
	remote *Remote
	cwd    string
	closed bool
}

func (s *Session) abs(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(s.cwd, p)
}

func (s *Session) EnsureDir(p string) error {
	return session.EnsureDir(s, p)
}

func (s *Session) ChangeDir(p string) error {
	r := s.remote
	r.mu.Lock()
	defer r.mu.Unlock()
	target := s.abs(p)
	if err := r.failure("cd", target); err != nil {
		return fmt.Errorf("%w: %w", session.ErrPath, err)
	}
	n := r.lookup(target)
	if n == nil || !n.dir {
		return fmt.Errorf("%w: 550 %s: no such directory", session.ErrPath, target)
	}
	s.cwd = target
	return nil
}

func (s *Session) CurrentDir() (string, error) {
	s.remote.mu.Lock()
	defer s.remote.mu.Unlock()
	return s.cwd, nil
}

func (s *Session) MakeDir(name string) error {
	r := s.remote
	r.mu.Lock()
	defer r.mu.Unlock()
	target := s.abs(name)
	if err := r.failure("mkdir", target); err != nil {
		return fmt.Errorf("%w: %w", session.ErrPath, err)
	}
	dir, base := path.Split(target)
	parent := r.lookup(dir)
	if parent == nil || !parent.dir {
		return fmt.Errorf("%w: 550 %s: no such directory", session.ErrPath, dir)
	}
	if _, ok := parent.children[base]; ok {
		return fmt.Errorf("%w: 550 %s: file exists", session.ErrPath, target)
	}
	parent.children[base] = newDir()
	r.record("mkdir", target)
	return nil
}

func (s *Session) children() ([]string, *node, error) {
	n := s.remote.lookup(s.cwd)
	if n == nil || !n.dir {
		return nil, nil, fmt.Errorf("%w: %s vanished", session.ErrListing, s.cwd)
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, n, nil
}

func (s *Session) ListFacts() ([]listing.Record, error) {
	r := s.remote
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FactsUnsupported {
		return nil, errors.New("500 MLSD not understood")
	}
	names, n, err := s.children()
	if err != nil {
		return nil, err
	}
	records := []listing.Record{
		{Name: ".", Facts: map[string]string{"type": "cdir"}},
		{Name: "..", Facts: map[string]string{"type": "pdir"}},
	}
	for _, name := range names {
		child := n.children[name]
		facts := map[string]string{"modify": "20240101000000"}
		if child.dir {
			facts["type"] = "dir"
		} else {
			facts["type"] = "file"
			facts["size"] = fmt.Sprint(len(child.data))
		}
		records = append(records, listing.Record{Name: name, Facts: facts})
	}
	return records, nil
}

func (s *Session) ListLines() ([]string, error) {
	r := s.remote
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.LinesUnsupported {
		return nil, errors.New("502 LIST not implemented")
	}
	names, n, err := s.children()
	if err != nil {
		return nil, err
	}
	lines := []string{fmt.Sprintf("total %d", len(names))}
	for _, name := range names {
		child := n.children[name]
		if child.dir {
			lines = append(lines, "drwxr-xr-x 2 user group 4096 Jan 1 00:00 "+name)
		} else {
			lines = append(lines, fmt.Sprintf("-rw-r--r-- 1 user group %d Jan 1 00:00 %s", len(child.data), name))
		}
	}
	return lines, nil
}

func (s *Session) chunk() int {
	if s.remote.ChunkSize > 0 {
		return s.remote.ChunkSize
	}
	return DefaultChunkSize
}

func (s *Session) Store(localPath, remoteName string, onBytes func(n int64)) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("%w: %w", session.ErrTransfer, err)
	}

	r := s.remote
	r.mu.Lock()
	target := s.abs(remoteName)
	if err := r.failure("store", target); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: %w", session.ErrTransfer, err)
	}
	dir, base := path.Split(target)
	parent := r.lookup(dir)
	if parent == nil || !parent.dir {
		r.mu.Unlock()
		return fmt.Errorf("%w: 553 %s: no such directory", session.ErrTransfer, dir)
	}
	parent.children[base] = &node{data: data}
	r.record("store", target)
	chunk := s.chunk()
	r.mu.Unlock()

	if onBytes != nil {
		for sent := 0; sent < len(data); sent += chunk {
			onBytes(int64(min(chunk, len(data)-sent)))
		}
	}
	return nil
}

func (s *Session) Retrieve(remotePath, localPath string, onBytes func(n int64)) error {
	r := s.remote
	r.mu.Lock()
	target := s.abs(remotePath)
	if err := r.failure("retrieve", target); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: %w", session.ErrTransfer, err)
	}
	n := r.lookup(target)
	if n == nil || n.dir {
		r.mu.Unlock()
		return fmt.Errorf("%w: 550 %s: no such file", session.ErrTransfer, target)
	}
	data := append([]byte(nil), n.data...)
	chunk := s.chunk()
	r.mu.Unlock()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("%w: %w", session.ErrTransfer, err)
	}
	defer f.Close()

	for sent := 0; sent < len(data); sent += chunk {
		end := min(sent+chunk, len(data))
		if _, err := f.Write(data[sent:end]); err != nil {
			return fmt.Errorf("%w: %w", session.ErrTransfer, err)
		}
		if onBytes != nil {
			onBytes(int64(end - sent))
		}
	}
	return nil
}

func (s *Session) FileSize(remotePath string) (int64, error) {
	r := s.remote
	r.mu.Lock()
	defer r.mu.Unlock()
	target := s.abs(remotePath)
	if err := r.failure("size", target); err != nil {
		return 0, fmt.Errorf("%w: %w", session.ErrPath, err)
	}
	n := r.lookup(target)
	if n == nil || n.dir {
		return 0, fmt.Errorf("%w: 550 %s: no such file", session.ErrPath, target)
	}
	return int64(len(n.data)), nil
}

func (s *Session) SetBinary() error {
	return nil
}

func (s *Session) Delete(remoteName string) error {
	r := s.remote
	r.mu.Lock()
	defer r.mu.Unlock()
	target := s.abs(remoteName)
	if err := r.failure("delete", target); err != nil {
		return fmt.Errorf("%w: %w", session.ErrDelete, err)
	}
	dir, base := path.Split(target)
	parent := r.lookup(dir)
	if parent == nil || parent.children[base] == nil || parent.children[base].dir {
		return fmt.Errorf("%w: 550 %s: no such file", session.ErrDelete, target)
	}
	delete(parent.children, base)
	r.record("delete", target)
	return nil
}

func (s *Session) RemoveDir(remoteName string) error {
	r := s.remote
	r.mu.Lock()
	defer r.mu.Unlock()
	target := s.abs(remoteName)
	if err := r.failure("rmdir", target); err != nil {
		return fmt.Errorf("%w: %w", session.ErrDelete, err)
	}
	dir, base := path.Split(target)
	parent := r.lookup(dir)
	if parent == nil || parent.children[base] == nil || !parent.children[base].dir {
		return fmt.Errorf("%w: 550 %s: no such directory", session.ErrDelete, target)
	}
	if len(parent.children[base].children) > 0 {
		return fmt.Errorf("%w: 550 %s: directory not empty", session.ErrDelete, target)
	}
	delete(parent.children, base)
	r.record("rmdir", target)
	return nil
}

func (s *Session) Close() error {
	s.remote.mu.Lock()
	defer s.remote.mu.Unlock()
	s.closed = true
	return nil
}

var (
	_ session.Session = (*Session)(nil)
	_ session.Opener  = (*Remote)(nil)
)

// Fleet routes each profile to its own Remote by host
type Fleet struct {
	mu      sync.Mutex
	remotes map[string]*Remote
}

// NewFleet returns an empty fleet; remotes are created on first use
func NewFleet() *Fleet {
	return &Fleet{remotes: make(map[string]*Remote)}
}

// Remote returns the remote for host, creating it if needed
func (f *Fleet) Remote(host string) *Remote {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.remotes[host]
	if !ok {
		r = NewRemote()
		f.remotes[host] = r
	}
	return r
}

// Open implements session.Opener
func (f *Fleet) Open(ctx context.Context, p storage.Profile) (session.Session, error) {
	return f.Remote(p.Host).Open(ctx, p)
}

// Opens sums Open calls across all remotes
func (f *Fleet) Opens() int {
	f.mu.Lock()
	remotes := make([]*Remote, 0, len(f.remotes))
	for _, r := range f.remotes {
		remotes = append(remotes, r)
	}
	f.mu.Unlock()

	total := 0
	for _, r := range remotes {
		total += r.Opens()
	}
	return total
}
