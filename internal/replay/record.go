// Package replay implements the optional recording/playback harness from
// spec.md §6's closing paragraph: tee each connection's request/response
// bytes to "<n>.request"/"<n>.response" files, and replay recorded
// requests against a live server, diffing status, headers (excluding
// Date and Etag) and body bytes. Grounded in the teacher's plain-net.Conn
// style (server.go dials and accepts raw net.Conn directly, with no
// framework in front of it) — recording is implemented as a net.Listener/
// net.Conn decorator so internal/httpcore never has to know it's being
// taped.
package replay

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// Recorder wraps a net.Listener so every accepted connection's raw bytes
// are teed to a numbered pair of files under dir.
type Recorder struct {
	dir     string
	counter atomic.Int64
}

// NewRecorder builds a Recorder writing numbered request/response files
// under dir. dir is created if it does not already exist.
func NewRecorder(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("replay: create record dir: %w", err)
	}
	return &Recorder{dir: dir}, nil
}

// Wrap wraps l so every accepted connection is recorded; its signature
// matches httpserver.Config.ListenerWrap (func(net.Listener) net.Listener).
func (r *Recorder) Wrap(l net.Listener) net.Listener {
	return &recordingListener{Listener: l, rec: r}
}

type recordingListener struct {
	net.Listener
	rec *Recorder
}

func (l *recordingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	n := l.rec.counter.Add(1)
	return newRecordingConn(conn, l.rec.dir, n), nil
}

// recordingConn tees every byte read (the request, since a connection
// carries exactly one per spec.md's no-keep-alive rule) and every byte
// written (the response) to <n>.request/<n>.response, flushing both to
// disk on Close.
type recordingConn struct {
	net.Conn
	dir string
	n   int64

	mu  sync.Mutex
	req []byte
	res []byte
}

func newRecordingConn(c net.Conn, dir string, n int64) *recordingConn {
	return &recordingConn{Conn: c, dir: dir, n: n}
}

func (c *recordingConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.mu.Lock()
		c.req = append(c.req, b[:n]...)
		c.mu.Unlock()
	}
	return n, err
}

func (c *recordingConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.mu.Lock()
		c.res = append(c.res, b[:n]...)
		c.mu.Unlock()
	}
	return n, err
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	req, res := c.req, c.res
	c.mu.Unlock()
	reqPath := filepath.Join(c.dir, fmt.Sprintf("%d.request", c.n))
	resPath := filepath.Join(c.dir, fmt.Sprintf("%d.response", c.n))
	_ = os.WriteFile(reqPath, req, 0o644)
	_ = os.WriteFile(resPath, res, 0o644)
	return c.Conn.Close()
}
