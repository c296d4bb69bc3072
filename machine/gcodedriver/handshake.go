package gcodedriver

import (
	"errors"
	"fmt"
	"time"
)

const (
	handshakeTimeout = 5 * time.Second
	handshakePoll    = 200 * time.Millisecond
)

// connect opens the transport and waits for the controller to answer the
// sync command. On success the controller is disabled and sent the
// startup commands.
func (d *Driver) connect() error {
	d.connMx.Lock()
	defer d.connMx.Unlock()

	if d.session() != nil {
		return nil
	}

	conn, err := d.dial()
	if err != nil {
		return fmt.Errorf("%w: open: %v", ErrTransport, err)
	}
	s := d.startSession(conn)

	err = d.handshake(s)
	if err == nil {
		// motors off until explicitly enabled
		_, err = d.sendGcode(s, d.cfg.Commands.Disable, d.cfg.CommandTimeout)
	}
	if err == nil {
		_, err = d.sendGcode(s, d.cfg.Commands.Connect, d.cfg.CommandTimeout)
	}
	if err != nil {
		stopErr := s.stop()
		if stopErr != nil {
			d.log.Println("ERROR: close:", stopErr)
		}
		return err
	}

	d.stateMx.Lock()
	failed := s.failed
	if !failed {
		d.sess = s
		d.enabled = false
	}
	d.stateMx.Unlock()
	if failed {
		// the reader died between the handshake and now
		s.stop()
		return fmt.Errorf("%w: connection lost during startup", ErrTransport)
	}
	d.publish()
	return nil
}

func (d *Driver) handshake(s *session) error {
	deadline := time.Now().Add(handshakeTimeout)

	responses, err := d.sendGcode(s, d.cfg.Commands.Sync, handshakeTimeout)
	for {
		for _, line := range responses {
			if d.cfg.syncRx.MatchString(line) {
				return nil
			}
		}
		// a timeout just means the controller is not talking yet
		if err != nil && !errors.Is(err, ErrCommandTimeout) {
			return err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if remaining > handshakePoll {
			remaining = handshakePoll
		}
		responses, err = d.sendCommand(s, "", remaining)
	}

	return fmt.Errorf("%w: check your port and baud rate", ErrHandshakeTimeout)
}

// disconnect stops the read loop and closes the transport.
func (d *Driver) disconnect() error {
	d.connMx.Lock()
	defer d.connMx.Unlock()

	d.stateMx.Lock()
	s := d.sess
	d.sess = nil
	d.enabled = false
	d.stateMx.Unlock()

	if s == nil {
		return nil
	}
	err := s.stop()
	d.publish()
	return err
}
