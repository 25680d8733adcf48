package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quocson95/ftpfleet/pkg/storage"
)

// DialFunc opens a backend session for one profile
type DialFunc func(ctx context.Context, p storage.Profile, opts Options, log zerolog.Logger) (Session, error)

// Manager opens sessions and allows at most one live session per endpoint.
// A second Open for the same endpoint blocks until the first session closes.
type Manager struct {
	opts     Options
	log      zerolog.Logger
	backends map[string]DialFunc

	mu    sync.Mutex
	locks map[string]*endpointLock
}

type endpointLock struct {
	slot chan struct{}
	refs int
}

// NewManager creates a manager with the FTP and SFTP backends registered
func NewManager(opts Options, log zerolog.Logger) *Manager {
	return &Manager{
		opts: opts,
		log:  log,
		backends: map[string]DialFunc{
			storage.ProtocolFTP:  DialFTP,
			storage.ProtocolSFTP: DialSFTP,
		},
		locks: make(map[string]*endpointLock),
	}
}

// Register replaces the backend for a protocol
func (m *Manager) Register(protocol string, dial DialFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backends[protocol] = dial
}

// Open locks the endpoint and dials it. The lock is released when the
// returned session is closed, or immediately if dialing fails.
func (m *Manager) Open(ctx context.Context, p storage.Profile) (Session, error) {
	protocol := p.Protocol
	if protocol == "" {
		protocol = storage.ProtocolFTP
	}

	m.mu.Lock()
	dial, ok := m.backends[protocol]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unsupported protocol %q", ErrConnect, protocol)
	}

	id := p.EndpointID()
	release, err := m.acquire(ctx, id)
	if err != nil {
		return nil, wrap(ErrConnect, "failed to wait for "+id, err)
	}

	log := m.log.With().Str("host", p.Host).Logger()
	sess, err := dial(ctx, p, m.opts, log)
	if err != nil {
		release()
		return nil, err
	}
	return &lockedSession{Session: sess, release: release}, nil
}

// Busy reports whether a session for the endpoint is open or waiting
func (m *Manager) Busy(p storage.Profile) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locks[p.EndpointID()]
	return ok
}

func (m *Manager) acquire(ctx context.Context, id string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &endpointLock{slot: make(chan struct{}, 1)}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.slot <- struct{}{}:
		return func() {
			<-l.slot
			m.unref(id, l)
		}, nil
	case <-ctx.Done():
		m.unref(id, l)
		return nil, ctx.Err()
	}
}

func (m *Manager) unref(id string, l *endpointLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, id)
	}
}

type lockedSession struct {
	Session
	once    sync.Once
	release func()
}

func (s *lockedSession) Close() error {
	err := s.Session.Close()
	s.once.Do(s.release)
	return err
}

var _ Opener = (*Manager)(nil)
