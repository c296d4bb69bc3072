package gcodedriver

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCommandTimeout means no confirming line arrived in time.
	ErrCommandTimeout = errors.New("timeout waiting for response")

	// ErrHandshakeTimeout means the controller never answered the sync
	// command in a recognizable way.
	ErrHandshakeTimeout = errors.New("unable to receive connection response")

	// ErrTransport wraps read and write failures of the connection.
	ErrTransport = errors.New("transport error")

	// ErrNotConnected is returned by operations that need a ready
	// connection, and by commands interrupted by Disconnect.
	ErrNotConnected = errors.New("not connected")

	// ErrConfig wraps invalid driver configuration.
	ErrConfig = errors.New("invalid driver config")
)

// CommandError describes a failed command exchange.
type CommandError struct {
	Command string
	Timeout time.Duration
	Err     error
}

func (e *CommandError) Error() string {
	if errors.Is(e.Err, ErrCommandTimeout) {
		if e.Command == "" {
			return fmt.Sprintf("%v after %v", e.Err, e.Timeout)
		}
		return fmt.Sprintf("%v to %q after %v", e.Err, e.Command, e.Timeout)
	}
	return fmt.Sprintf("send %q: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
