package gcodedriver

import (
	"fmt"
	"time"

	"github.com/mastercactapus/gpnp/machine"
	"github.com/mastercactapus/gpnp/transport"
)

// Dialer opens the byte stream to a controller.
type Dialer func() (transport.Conn, error)

// TransportConfig selects how a driver reaches its controller.
type TransportConfig struct {
	// Type is one of "serial", "tcp" or "spjs".
	Type string `toml:"type"`

	// Port is the serial device, local or on the SPJS host.
	Port string `toml:"port"`
	Baud int    `toml:"baud"`

	// Address is host:port for tcp, or the websocket URL for spjs.
	Address     string        `toml:"address"`
	DialTimeout time.Duration `toml:"dial_timeout"`
}

// Dial opens the configured transport.
func (t TransportConfig) Dial() (transport.Conn, error) {
	switch t.Type {
	case "", "serial":
		if t.Port == "" {
			return nil, fmt.Errorf("%w: transport.port is required for serial", ErrConfig)
		}
		c, err := transport.OpenSerial(transport.SerialConfig{
			Name:        t.Port,
			Baud:        t.Baud,
			ReadTimeout: readTimeout,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "tcp":
		if t.Address == "" {
			return nil, fmt.Errorf("%w: transport.address is required for tcp", ErrConfig)
		}
		timeout := t.DialTimeout
		if timeout == 0 {
			timeout = 5 * time.Second
		}
		c, err := transport.DialTCP(t.Address, timeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "spjs":
		if t.Address == "" || t.Port == "" {
			return nil, fmt.Errorf("%w: transport.address and transport.port are required for spjs", ErrConfig)
		}
		return transport.DialSPJS(t.Address, t.Port, t.Baud), nil
	}
	return nil, fmt.Errorf("%w: unknown transport type %q", ErrConfig, t.Type)
}

// Build creates the driver described by cfg along with its chained
// secondaries, using dial to open each driver's transport.
func Build(cfg Config, dial func(TransportConfig) (transport.Conn, error)) (*Driver, error) {
	secondaries := make(machine.Chain, 0, len(cfg.Secondaries))
	for i, sc := range cfg.Secondaries {
		d, err := Build(sc, dial)
		if err != nil {
			return nil, fmt.Errorf("secondary %d: %w", i, err)
		}
		secondaries = append(secondaries, d)
	}

	tc := cfg.Transport
	return New(cfg, func() (transport.Conn, error) { return dial(tc) }, secondaries...)
}
