// Package transport provides line oriented byte streams for drivers.
package transport

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"time"
)

// ErrReadTimeout is returned by ReadLine when no line arrived in time.
// It is not a failure of the underlying stream.
var ErrReadTimeout = errors.New("read timeout")

// Conn is a line based connection to a controller.
type Conn interface {
	io.Writer

	// ReadLine returns the next line without its terminator. A negative
	// timeout waits forever.
	ReadLine(timeout time.Duration) (string, error)

	Close() error
}

// LineConn adapts any io.ReadWriteCloser into a Conn.
type LineConn struct {
	rwc io.ReadWriteCloser

	wMx sync.Mutex

	lines chan string
	done  chan struct{}
	err   error

	closeOnce sync.Once
	closeCh   chan struct{}
}

var _ Conn = &LineConn{}

// NewLineConn starts reading lines from rwc.
func NewLineConn(rwc io.ReadWriteCloser) *LineConn {
	c := &LineConn{
		rwc:     rwc,
		lines:   make(chan string, 64),
		done:    make(chan struct{}),
		closeCh: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *LineConn) readLoop() {
	defer close(c.done)
	scan := bufio.NewScanner(c.rwc)
	for scan.Scan() {
		select {
		case c.lines <- scan.Text():
		case <-c.closeCh:
			c.err = io.ErrClosedPipe
			return
		}
	}
	c.err = scan.Err()
	if c.err == nil {
		c.err = io.EOF
	}
}

// Write sends p as-is.
func (c *LineConn) Write(p []byte) (int, error) {
	select {
	case <-c.closeCh:
		return 0, io.ErrClosedPipe
	default:
	}
	c.wMx.Lock()
	defer c.wMx.Unlock()
	return c.rwc.Write(p)
}

func (c *LineConn) ReadLine(timeout time.Duration) (string, error) {
	select {
	case l := <-c.lines:
		return l, nil
	case <-c.closeCh:
		return "", io.ErrClosedPipe
	default:
	}

	var expire <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}

	select {
	case l := <-c.lines:
		return l, nil
	case <-c.done:
		// anything read before the stream ended is still delivered
		select {
		case l := <-c.lines:
			return l, nil
		default:
		}
		return "", c.err
	case <-c.closeCh:
		return "", io.ErrClosedPipe
	case <-expire:
		return "", ErrReadTimeout
	}
}

// Close closes the underlying stream.
func (c *LineConn) Close() error {
	err := io.ErrClosedPipe
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.rwc.Close()
	})
	return err
}
