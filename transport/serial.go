package transport

import (
	"io"
	"time"

	"github.com/tarm/serial"
)

// SerialConfig selects a local serial port.
type SerialConfig struct {
	Name string
	Baud int

	// ReadTimeout bounds each read so Close is noticed promptly.
	ReadTimeout time.Duration
}

// OpenSerial opens a serial port as a line connection.
func OpenSerial(cfg SerialConfig) (*LineConn, error) {
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 250 * time.Millisecond
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Name,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, err
	}
	return NewLineConn(serialPort{p}), nil
}

type serialPort struct{ *serial.Port }

// Read hides expired read timeouts, which tarm/serial reports as an
// empty read (with io.EOF on posix systems).
func (p serialPort) Read(b []byte) (int, error) {
	for {
		n, err := p.Port.Read(b)
		if n == 0 && (err == nil || err == io.EOF) {
			continue
		}
		return n, err
	}
}
