package gcodedriver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mastercactapus/gpnp/transport"
)

const (
	// Infinite disables the timeout of a command.
	Infinite time.Duration = -1

	// readTimeout bounds each transport read so the read loop notices
	// cancellation promptly.
	readTimeout = 250 * time.Millisecond
)

// session is one open transport and the goroutine reading from it.
type session struct {
	conn  transport.Conn
	queue *responseQueue

	cancel   context.CancelFunc
	readDone chan struct{}

	// failed is set, under Driver.stateMx, once the reader gave up.
	failed bool
}

func (d *Driver) startSession(conn transport.Conn) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		conn:     conn,
		queue:    newResponseQueue(),
		cancel:   cancel,
		readDone: make(chan struct{}),
	}
	go d.readLoop(ctx, s)
	return s
}

// stop cancels the read loop, waits for it to exit, then closes the
// transport. Commands still waiting on the queue fail with ErrNotConnected.
func (s *session) stop() error {
	s.cancel()
	<-s.readDone
	err := s.conn.Close()
	s.queue.close(ErrNotConnected)
	return err
}

func (d *Driver) readLoop(ctx context.Context, s *session) {
	defer close(s.readDone)
	for ctx.Err() == nil {
		line, err := s.conn.ReadLine(readTimeout)
		if errors.Is(err, transport.ErrReadTimeout) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Println("ERROR: read:", err)
			s.queue.close(fmt.Errorf("%w: read: %v", ErrTransport, err))
			d.dropSession(s)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		d.debugf("<< %s", line)
		s.queue.push(line)
	}
}

// dropSession forgets s after its reader failed, so the driver reports
// disconnected and the next Connect dials again.
func (d *Driver) dropSession(s *session) {
	d.stateMx.Lock()
	s.failed = true
	installed := d.sess == s
	if installed {
		d.sess = nil
		d.enabled = false
	}
	d.stateMx.Unlock()

	if !installed {
		return
	}
	err := s.conn.Close()
	if err != nil {
		d.log.Println("ERROR: close:", err)
	}
	d.publish()
}

// sendCommand writes command (if not empty) and waits for a line matching
// the confirm pattern. Lines already queued before the write are returned
// first but never count as confirmation. On failure the lines collected so
// far are returned along with a *CommandError.
func (d *Driver) sendCommand(s *session, command string, timeout time.Duration) ([]string, error) {
	// anything left over belongs to an earlier exchange
	responses := s.queue.drain()

	d.debugf("sendCommand(%q, %v)", command, timeout)
	if command != "" {
		d.debugf(">> %s", command)
		_, err := io.WriteString(s.conn, command+"\n")
		if err != nil {
			return responses, &CommandError{Command: command, Timeout: timeout, Err: fmt.Errorf("%w: write: %v", ErrTransport, err)}
		}
	}

	start := time.Now()
	for {
		remaining := Infinite
		if timeout >= 0 {
			remaining = timeout - time.Since(start)
			if remaining <= 0 {
				return responses, &CommandError{Command: command, Timeout: timeout, Err: ErrCommandTimeout}
			}
		}

		line, ok, err := s.queue.take(remaining)
		if err != nil {
			return responses, &CommandError{Command: command, Timeout: timeout, Err: err}
		}
		if !ok {
			continue
		}
		responses = append(responses, line)
		if d.cfg.confirmRx.MatchString(line) {
			break
		}
	}

	responses = append(responses, s.queue.drain()...)
	d.debugf("%s => %q", command, responses)
	return responses, nil
}

// sendGcode sends each non-blank line of gcode in order, stopping at the
// first failure.
func (d *Driver) sendGcode(s *session, gcode string, timeout time.Duration) ([]string, error) {
	var responses []string
	for _, line := range strings.Split(gcode, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		res, err := d.sendCommand(s, line, timeout)
		responses = append(responses, res...)
		if err != nil {
			return responses, err
		}
	}
	return responses, nil
}

// SendCommand sends a single line and returns every response collected
// until it was confirmed. An empty command only collects responses.
func (d *Driver) SendCommand(command string, timeout time.Duration) ([]string, error) {
	d.mx.Lock()
	defer d.mx.Unlock()

	s, err := d.ready()
	if err != nil {
		return nil, err
	}
	return d.sendCommand(s, command, timeout)
}

// SendGcode sends a multi-line template, one command per line.
func (d *Driver) SendGcode(gcode string, timeout time.Duration) ([]string, error) {
	d.mx.Lock()
	defer d.mx.Unlock()

	s, err := d.ready()
	if err != nil {
		return nil, err
	}
	return d.sendGcode(s, gcode, timeout)
}
