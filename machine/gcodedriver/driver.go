// Package gcodedriver drives a motion controller that speaks a line based
// text protocol (G-code over serial, TCP or SPJS).
//
// Each operation is rendered from a configurable command template, sent one
// line at a time, and confirmed by waiting for a response line matching the
// confirm pattern. Operations are then replayed on any secondary drivers.
package gcodedriver

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/mastercactapus/gpnp/coord"
	"github.com/mastercactapus/gpnp/gcode"
	"github.com/mastercactapus/gpnp/machine"
)

// Driver is a machine.Driver for G-code controllers.
type Driver struct {
	cfg         Config
	dial        Dialer
	secondaries machine.Chain
	log         *log.Logger

	// mx serializes command exchanges; only one command is ever in flight.
	mx sync.Mutex
	// connMx guards connect and disconnect.
	connMx sync.Mutex

	stateMx sync.Mutex
	sess    *session
	enabled bool
	x, y, z float64
	c       float64
	state   chan machine.State
}

var _ machine.Driver = &Driver{}

// New validates cfg and returns a disconnected Driver. Every operation is
// replayed on secondaries, in order, after it succeeds on this driver.
func New(cfg Config, dial Dialer, secondaries ...machine.Driver) (*Driver, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if dial == nil {
		dial = cfg.Transport.Dial
	}
	d := &Driver{
		cfg:         cfg,
		dial:        dial,
		secondaries: machine.Chain(secondaries),
		log:         cfg.Logger,
		state:       make(chan machine.State),
	}
	if d.log == nil {
		d.log = log.New(log.Writer(), log.Prefix(), log.Flags())
	}
	return d, nil
}

func (d *Driver) debugf(format string, args ...interface{}) {
	if !d.cfg.Debug {
		return
	}
	d.log.Output(2, fmt.Sprintf(format, args...))
}

func (d *Driver) session() *session {
	d.stateMx.Lock()
	defer d.stateMx.Unlock()
	return d.sess
}

func (d *Driver) ready() (*session, error) {
	s := d.session()
	if s == nil {
		return nil, ErrNotConnected
	}
	return s, nil
}

// Connected reports whether the controller completed the handshake.
func (d *Driver) Connected() bool { return d.session() != nil }

// Secondaries returns the chained drivers.
func (d *Driver) Secondaries() machine.Chain { return d.secondaries }

// State returns a channel of state changes. Updates are dropped if no
// one is receiving.
func (d *Driver) State() <-chan machine.State { return d.state }

// CurrentState returns the connection state and head position.
func (d *Driver) CurrentState() machine.State {
	d.stateMx.Lock()
	defer d.stateMx.Unlock()
	return machine.State{
		Connected: d.sess != nil,
		Enabled:   d.enabled,
		Position:  coord.NewLocation(d.cfg.Units, d.x, d.y, d.z, d.c),
	}
}

func (d *Driver) publish() {
	select {
	case d.state <- d.CurrentState():
	default:
	}
}

// Connect opens the transport and performs the handshake. It does nothing
// if the driver is already connected.
func (d *Driver) Connect() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.connect()
}

// Disconnect closes this driver's transport, then disconnects the
// secondaries.
func (d *Driver) Disconnect() error {
	err := d.disconnect()
	if err != nil {
		d.log.Println("ERROR: disconnect:", err)
	}
	return d.secondaries.Each(machine.Driver.Disconnect)
}

// Close disconnects, then closes the secondaries.
func (d *Driver) Close() error {
	err := d.disconnect()
	if err != nil {
		d.log.Println("ERROR: close:", err)
	}
	return d.secondaries.Each(machine.Driver.Close)
}

// SetEnabled enables or disables the motors, connecting first if needed.
// Disabling is passed on to the secondaries even when this driver is not
// connected.
func (d *Driver) SetEnabled(enabled bool) error {
	d.mx.Lock()
	defer d.mx.Unlock()

	if enabled {
		err := d.connect()
		if err != nil {
			return err
		}
	}

	if s := d.session(); s != nil {
		cmd := d.cfg.Commands.Disable
		if enabled {
			cmd = d.cfg.Commands.Enable
		}
		_, err := d.sendGcode(s, cmd, d.cfg.CommandTimeout)
		if err != nil {
			return err
		}
		d.stateMx.Lock()
		d.enabled = enabled
		d.stateMx.Unlock()
		d.publish()
	}

	return d.secondaries.Each(func(sd machine.Driver) error { return sd.SetEnabled(enabled) })
}

// Home runs the home command without a timeout.
func (d *Driver) Home() error {
	err := d.run(d.cfg.Commands.Home, Infinite)
	if err != nil {
		return err
	}
	return d.secondaries.Each(machine.Driver.Home)
}

// Location returns the last commanded position plus the offsets of hm.
// Only nozzles report a Z position.
func (d *Driver) Location(hm machine.HeadMountable) coord.Location {
	d.stateMx.Lock()
	l := coord.NewLocation(d.cfg.Units, d.x, d.y, d.z, d.c)
	d.stateMx.Unlock()

	l = l.Add(hm.HeadOffsets())
	if !machine.IsNozzle(hm) {
		l = l.WithZ(0)
	}
	return l
}

// axisValue leaves an axis out of the move command if it does not change.
func axisValue(target, current float64) interface{} {
	if target == current {
		return nil
	}
	return target
}

// MoveTo moves hm to loc at speed, a fraction of the maximum feed rate.
func (d *Driver) MoveTo(hm machine.HeadMountable, loc coord.Location, speed float64) error {
	d.mx.Lock()
	defer d.mx.Unlock()

	s, err := d.ready()
	if err != nil {
		return err
	}

	target := loc.ConvertToUnits(d.cfg.Units).Subtract(hm.HeadOffsets())
	x, y, z, c := target.X, target.Y, target.Z, target.Rotation

	// only nozzles move Z
	if !machine.IsNozzle(hm) {
		z = math.NaN()
	}

	d.stateMx.Lock()
	curX, curY, curZ, curC := d.x, d.y, d.z, d.c
	d.stateMx.Unlock()

	if math.IsNaN(x) {
		x = curX
	}
	if math.IsNaN(y) {
		y = curY
	}
	if math.IsNaN(z) {
		z = curZ
	}
	if math.IsNaN(c) {
		c = curC
	}

	cmd, err := gcode.Expand(d.cfg.Commands.MoveTo, gcode.Vars{
		"X":        axisValue(x, curX),
		"Y":        axisValue(y, curY),
		"Z":        axisValue(z, curZ),
		"Rotation": axisValue(c, curC),
		"FeedRate": d.cfg.MaxFeedRate * speed,
	})
	if err != nil {
		return fmt.Errorf("move_to: %w", err)
	}

	_, err = d.sendGcode(s, cmd, d.cfg.CommandTimeout)
	if err != nil {
		return err
	}

	d.stateMx.Lock()
	d.x, d.y, d.z, d.c = x, y, z, c
	d.stateMx.Unlock()
	d.publish()

	return d.secondaries.Each(func(sd machine.Driver) error { return sd.MoveTo(hm, loc, speed) })
}

// Pick runs the pick command for nozzle.
func (d *Driver) Pick(nozzle machine.HeadMountable) error {
	err := d.run(d.cfg.Commands.Pick, d.cfg.CommandTimeout)
	if err != nil {
		return err
	}
	return d.secondaries.Each(func(sd machine.Driver) error { return sd.Pick(nozzle) })
}

// Place runs the place command for nozzle.
func (d *Driver) Place(nozzle machine.HeadMountable) error {
	err := d.run(d.cfg.Commands.Place, d.cfg.CommandTimeout)
	if err != nil {
		return err
	}
	return d.secondaries.Each(func(sd machine.Driver) error { return sd.Place(nozzle) })
}

func actuateCommand(name, tmpl string, a machine.Actuator, valueName string, value interface{}) (string, error) {
	cmd, err := gcode.Expand(tmpl, gcode.Vars{
		"Name":    a.Name(),
		"Index":   a.Index(),
		valueName: value,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return cmd, nil
}

// ActuateBool sets a boolean actuator, substituting {Name}, {Index} and
// {BooleanValue}.
func (d *Driver) ActuateBool(a machine.Actuator, on bool) error {
	cmd, err := actuateCommand("actuate_boolean", d.cfg.Commands.ActuateBoolean, a, "BooleanValue", on)
	if err != nil {
		return err
	}
	err = d.run(cmd, d.cfg.CommandTimeout)
	if err != nil {
		return err
	}
	return d.secondaries.Each(func(sd machine.Driver) error { return sd.ActuateBool(a, on) })
}

// ActuateValue sets a numeric actuator, substituting {Name}, {Index} and
// {DoubleValue}.
func (d *Driver) ActuateValue(a machine.Actuator, value float64) error {
	cmd, err := actuateCommand("actuate_double", d.cfg.Commands.ActuateDouble, a, "DoubleValue", value)
	if err != nil {
		return err
	}
	err = d.run(cmd, d.cfg.CommandTimeout)
	if err != nil {
		return err
	}
	return d.secondaries.Each(func(sd machine.Driver) error { return sd.ActuateValue(a, value) })
}

// run sends a template on the ready connection.
func (d *Driver) run(cmd string, timeout time.Duration) error {
	d.mx.Lock()
	defer d.mx.Unlock()

	s, err := d.ready()
	if err != nil {
		return err
	}
	_, err = d.sendGcode(s, cmd, timeout)
	return err
}
