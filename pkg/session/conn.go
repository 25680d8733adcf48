package session

import (
	"bytes"
	"net"
	"sync"
	"time"
)

// deadlineConn pushes the read/write deadline forward on every call, turning a
// fixed timeout into an idle timeout.
type deadlineConn struct {
	net.Conn
	idle time.Duration
}

func newDeadlineConn(c net.Conn, idle time.Duration) net.Conn {
	if idle <= 0 {
		return c
	}
	return &deadlineConn{Conn: c, idle: idle}
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.idle)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.idle)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}

// dataTap copies what is read from connections dialed while it is started.
// Connections dialed before start, like the control connection, are never
// copied.
type dataTap struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (t *dataTap) start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = new(bytes.Buffer)
}

// stop returns everything copied since start
func (t *dataTap) stop() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.buf == nil {
		return nil
	}
	out := t.buf.Bytes()
	t.buf = nil
	return out
}

func (t *dataTap) wrap(c net.Conn) net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.buf == nil {
		return c
	}
	return &tappedConn{Conn: c, tap: t, buf: t.buf}
}

type tappedConn struct {
	net.Conn
	tap *dataTap
	buf *bytes.Buffer
}

func (c *tappedConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.tap.mu.Lock()
		c.buf.Write(p[:n])
		c.tap.mu.Unlock()
	}
	return n, err
}
