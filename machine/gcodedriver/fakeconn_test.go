package gcodedriver

import (
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mastercactapus/gpnp/transport"
	"github.com/stretchr/testify/require"
)

// fakeConn is a scripted controller. reply is called for every line
// written and may emit responses.
type fakeConn struct {
	mx      sync.Mutex
	written []string

	reply func(c *fakeConn, line string)

	lines     chan string
	closeOnce sync.Once
	closeCh   chan struct{}

	// lateReads counts ReadLine calls made after Close.
	lateReads int32
}

func newFakeConn(reply func(c *fakeConn, line string)) *fakeConn {
	return &fakeConn{
		reply:   reply,
		lines:   make(chan string, 100),
		closeCh: make(chan struct{}),
	}
}

// marlin answers M114 with a position and everything with ok.
func marlin(c *fakeConn, line string) {
	if line == "M114" {
		c.emit("X:0.00 Y:0.00 Z:0.00 E:0.00 Count X:0 Y:0 Z:0")
	}
	c.emit("ok")
}

func (c *fakeConn) emit(line string) {
	select {
	case c.lines <- line:
	case <-c.closeCh:
	}
}

func (c *fakeConn) emitAfter(delay time.Duration, line string) {
	time.AfterFunc(delay, func() { c.emit(line) })
}

func (c *fakeConn) Write(p []byte) (int, error) {
	select {
	case <-c.closeCh:
		return 0, io.ErrClosedPipe
	default:
	}
	line := strings.TrimSuffix(string(p), "\n")
	c.mx.Lock()
	c.written = append(c.written, line)
	c.mx.Unlock()
	if c.reply != nil {
		c.reply(c, line)
	}
	return len(p), nil
}

func (c *fakeConn) ReadLine(timeout time.Duration) (string, error) {
	if c.closed() {
		atomic.AddInt32(&c.lateReads, 1)
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case l := <-c.lines:
		return l, nil
	case <-c.closeCh:
		return "", io.ErrClosedPipe
	case <-t.C:
		return "", transport.ErrReadTimeout
	}
}

func (c *fakeConn) Close() error {
	err := io.ErrClosedPipe
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = nil
	})
	return err
}

func (c *fakeConn) Written() []string {
	c.mx.Lock()
	defer c.mx.Unlock()
	return append([]string(nil), c.written...)
}

// Since returns the lines written after the first n.
func (c *fakeConn) Since(n int) []string {
	return c.Written()[n:]
}

func (c *fakeConn) closed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CommandTimeout = 200 * time.Millisecond
	cfg.Logger = log.New(io.Discard, "", 0)
	return cfg
}

func newTestDriver(t *testing.T, cfg Config, conn *fakeConn) *Driver {
	t.Helper()
	d, err := New(cfg, func() (transport.Conn, error) { return conn, nil })
	require.NoError(t, err)
	return d
}

// connected returns a ready driver and the number of lines the
// handshake wrote.
func connected(t *testing.T, cfg Config, conn *fakeConn) (*Driver, int) {
	t.Helper()
	d := newTestDriver(t, cfg, conn)
	require.NoError(t, d.Connect())
	return d, len(conn.Written())
}
