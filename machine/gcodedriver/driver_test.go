package gcodedriver

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/mastercactapus/gpnp/coord"
	"github.com/mastercactapus/gpnp/gcode"
	"github.com/mastercactapus/gpnp/machine"
	"github.com/mastercactapus/gpnp/sim"
	"github.com/mastercactapus/gpnp/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	nozzle = machine.Mount{Label: "N1", Type: machine.KindNozzle}
	camera = machine.Mount{
		Label:   "top",
		Type:    machine.KindCamera,
		Offsets: coord.NewLocation(coord.Millimeters, 10, 5, 3, 0),
	}
	vacuum = machine.Output{Label: "vacuum", Number: 7}
)

type recorder struct {
	name  string
	calls *[]string
	err   error
}

func (r recorder) record(op string) error {
	*r.calls = append(*r.calls, r.name+"."+op)
	return r.err
}

func (r recorder) Connect() error {
	return r.record("connect")
}
func (r recorder) Disconnect() error {
	return r.record("disconnect")
}
func (r recorder) SetEnabled(bool) error {
	return r.record("enable")
}
func (r recorder) Home() error {
	return r.record("home")
}
func (r recorder) Location(machine.HeadMountable) coord.Location {
	return coord.Location{}
}
func (r recorder) MoveTo(_ machine.HeadMountable, loc coord.Location, _ float64) error {
	return r.record("move " + loc.String())
}
func (r recorder) Pick(machine.HeadMountable) error {
	return r.record("pick")
}
func (r recorder) Place(machine.HeadMountable) error {
	return r.record("place")
}
func (r recorder) ActuateBool(machine.Actuator, bool) error {
	return r.record("actuate")
}
func (r recorder) ActuateValue(machine.Actuator, float64) error {
	return r.record("actuate")
}
func (r recorder) Close() error {
	return r.record("close")
}

func TestDriver_MoveTo(t *testing.T) {
	conn := newFakeConn(marlin)
	d, n := connected(t, testConfig(), conn)
	defer d.Close()

	target := coord.NewLocation(coord.Millimeters, 10, 20, math.NaN(), math.NaN())
	require.NoError(t, d.MoveTo(nozzle, target, 1))
	assert.Equal(t, []string{"G0X10.0000Y20.0000F1000", "M400"}, conn.Since(n))

	// nothing changed, only the feed rate is sent
	require.NoError(t, d.MoveTo(nozzle, target, 0.5))
	assert.Equal(t, []string{"G0F500", "M400"}, conn.Since(n + 2))

	assert.Equal(t, coord.NewLocation(coord.Millimeters, 10, 20, 0, 0), d.Location(nozzle))
}

func TestDriver_MoveTo_Units(t *testing.T) {
	conn := newFakeConn(marlin)
	d, n := connected(t, testConfig(), conn)
	defer d.Close()

	target := coord.NewLocation(coord.Inches, 1, math.NaN(), 0.5, 90)
	require.NoError(t, d.MoveTo(nozzle, target, 1))
	assert.Equal(t, "G0X25.4000Z12.7000E90.0000F1000", conn.Since(n)[0])
}

func TestDriver_MoveTo_NonNozzleKeepsZ(t *testing.T) {
	conn := newFakeConn(marlin)
	d, n := connected(t, testConfig(), conn)
	defer d.Close()

	// camera is offset by (10, 5, 3); the head moves so the camera lands on target
	target := coord.NewLocation(coord.Millimeters, 50, 50, 40, math.NaN())
	require.NoError(t, d.MoveTo(camera, target, 1))
	assert.Equal(t, "G0X40.0000Y45.0000F1000", conn.Since(n)[0])

	assert.Equal(t, coord.NewLocation(coord.Millimeters, 40, 45, 0, 0), d.Location(nozzle))
	assert.Equal(t, coord.NewLocation(coord.Millimeters, 50, 50, 0, 0), d.Location(camera))
}

func TestDriver_MoveTo_Timeout(t *testing.T) {
	conn := newFakeConn(func(c *fakeConn, line string) {
		if line == "M400" {
			return
		}
		marlin(c, line)
	})
	d, _ := connected(t, testConfig(), conn)
	defer d.Close()

	err := d.MoveTo(nozzle, coord.NewLocation(coord.Millimeters, 10, 10, 1, 0), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandTimeout))
	assert.Equal(t, coord.NewLocation(coord.Millimeters, 0, 0, 0, 0), d.Location(nozzle))
}

func TestDriver_NotConnected(t *testing.T) {
	d := newTestDriver(t, testConfig(), newFakeConn(marlin))

	assert.Equal(t, ErrNotConnected, d.Home())
	assert.Equal(t, ErrNotConnected, d.MoveTo(nozzle, coord.Location{}, 1))
	assert.Equal(t, ErrNotConnected, d.Pick(nozzle))
	assert.Equal(t, ErrNotConnected, d.Place(nozzle))
	assert.Equal(t, ErrNotConnected, d.ActuateBool(vacuum, true))
	assert.Equal(t, ErrNotConnected, d.ActuateValue(vacuum, 1))

	// disabling a disconnected driver is fine
	assert.NoError(t, d.SetEnabled(false))
}

func TestDriver_SetEnabled(t *testing.T) {
	conn := newFakeConn(marlin)
	d := newTestDriver(t, testConfig(), conn)
	defer d.Close()

	require.NoError(t, d.SetEnabled(true))
	assert.True(t, d.Connected())
	assert.True(t, d.CurrentState().Enabled)
	written := conn.Written()
	assert.Equal(t, "M810", written[len(written)-1])

	require.NoError(t, d.SetEnabled(false))
	assert.False(t, d.CurrentState().Enabled)
	assert.Equal(t, []string{"M84", "M811"}, conn.Since(len(written)))
}

func TestDriver_Actuate(t *testing.T) {
	cfg := testConfig()
	cfg.Commands.ActuateBoolean = "M42 P{Index} S{BooleanValue}"
	cfg.Commands.ActuateDouble = "; {Name}\nM42 P{Index} S{DoubleValue:%.1f}"
	conn := newFakeConn(marlin)
	d, n := connected(t, cfg, conn)
	defer d.Close()

	require.NoError(t, d.ActuateBool(vacuum, true))
	require.NoError(t, d.ActuateValue(vacuum, 127))
	assert.Equal(t, []string{"M42 P7 Strue", "; vacuum", "M42 P7 S127.0"}, conn.Since(n))
}

func TestDriver_BadFormatSendsNothing(t *testing.T) {
	cfg := testConfig()
	cfg.Commands.ActuateBoolean = "M42 P{Index:%.1f} S{BooleanValue:%d}"
	cfg.Commands.ActuateDouble = "M42 P{Index} S{DoubleValue:%d}"
	cfg.Commands.MoveTo = "G0{X:X%d}F{FeedRate:%.0f}"
	require.NoError(t, cfg.Validate())

	conn := newFakeConn(marlin)
	d, n := connected(t, cfg, conn)
	defer d.Close()

	err := d.ActuateBool(vacuum, true)
	assert.True(t, errors.Is(err, gcode.ErrBadTemplate), "%v", err)
	err = d.ActuateValue(vacuum, 127)
	assert.True(t, errors.Is(err, gcode.ErrBadTemplate), "%v", err)
	err = d.MoveTo(nozzle, coord.NewLocation(coord.Millimeters, 10, 0, 0, 0), 1)
	assert.True(t, errors.Is(err, gcode.ErrBadTemplate), "%v", err)

	assert.Empty(t, conn.Since(n))
	assert.Equal(t, coord.NewLocation(coord.Millimeters, 0, 0, 0, 0), d.Location(nozzle))
}

func TestDriver_PickPlace(t *testing.T) {
	conn := newFakeConn(marlin)
	d, n := connected(t, testConfig(), conn)
	defer d.Close()

	require.NoError(t, d.Pick(nozzle))
	require.NoError(t, d.Place(nozzle))
	assert.Equal(t, []string{"M3", "M5"}, conn.Since(n))
}

func TestDriver_EmptyCommand(t *testing.T) {
	cfg := testConfig()
	cfg.Commands.Pick = ""
	conn := newFakeConn(marlin)
	d, n := connected(t, cfg, conn)
	defer d.Close()

	assert.NoError(t, d.Pick(nozzle))
	assert.Empty(t, conn.Since(n))
}

func TestDriver_Secondaries(t *testing.T) {
	var calls []string
	a := recorder{name: "a", calls: &calls}
	b := recorder{name: "b", calls: &calls}

	conn := newFakeConn(marlin)
	d, err := New(testConfig(), func() (transport.Conn, error) { return conn, nil }, a, b)
	require.NoError(t, err)
	require.NoError(t, d.Connect())
	assert.Empty(t, calls, "connect is not passed on")

	loc := coord.NewLocation(coord.Millimeters, 1, math.NaN(), math.NaN(), math.NaN())
	require.NoError(t, d.MoveTo(nozzle, loc, 1))
	require.NoError(t, d.Home())
	require.NoError(t, d.Close())

	assert.Equal(t, []string{
		"a.move " + loc.String(),
		"b.move " + loc.String(),
		"a.home",
		"b.home",
		"a.close",
		"b.close",
	}, calls)
}

func TestDriver_SecondaryError(t *testing.T) {
	var calls []string
	errBroken := errors.New("broken")
	a := recorder{name: "a", calls: &calls, err: errBroken}
	b := recorder{name: "b", calls: &calls}

	conn := newFakeConn(marlin)
	d, err := New(testConfig(), func() (transport.Conn, error) { return conn, nil }, a, b)
	require.NoError(t, err)
	require.NoError(t, d.Connect())
	defer d.Close()
	n := len(conn.Written())

	assert.Equal(t, errBroken, d.Home())
	assert.Equal(t, []string{"a.home"}, calls)

	// the primary already ran
	assert.Contains(t, conn.Since(n), "G28 X0 Y0")
}

func TestDriver_PrimaryErrorSkipsSecondaries(t *testing.T) {
	var calls []string
	a := recorder{name: "a", calls: &calls}

	conn := newFakeConn(func(c *fakeConn, line string) {
		if line == "M3" {
			return
		}
		marlin(c, line)
	})
	d, err := New(testConfig(), func() (transport.Conn, error) { return conn, nil }, a)
	require.NoError(t, err)
	require.NoError(t, d.Connect())
	defer d.Close()

	assert.Error(t, d.Pick(nozzle))
	assert.Empty(t, calls)
}

func TestDriver_State(t *testing.T) {
	conn := newFakeConn(marlin)
	d := newTestDriver(t, testConfig(), conn)
	defer d.Close()

	states := make(chan machine.State, 10)
	go func() {
		for s := range d.State() {
			states <- s
		}
	}()
	// give the reader a moment to start receiving
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, d.Connect())
	select {
	case s := <-states:
		assert.True(t, s.Connected)
		assert.False(t, s.Enabled)
	case <-time.After(time.Second):
		t.Fatal("no state update")
	}
}

func TestDriver_Simulator(t *testing.T) {
	cfg := DefaultConfig()
	ctrl := sim.New(sim.Options{})
	d, err := New(cfg, func() (transport.Conn, error) { return transport.NewLineConn(ctrl), nil })
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.SetEnabled(true))
	require.NoError(t, d.Home())
	require.NoError(t, d.MoveTo(nozzle, coord.NewLocation(coord.Millimeters, 10, 5, 2, 90), 1))
	require.NoError(t, d.MoveTo(nozzle, coord.NewLocation(coord.Millimeters, math.NaN(), 7, math.NaN(), math.NaN()), 1))

	pos, e := ctrl.Position()
	assert.Equal(t, coord.Point{X: 10, Y: 7, Z: 2}, pos)
	assert.Equal(t, 90.0, e)

	res, err := d.SendCommand("M114", time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"X:10.00 Y:7.00 Z:2.00 E:90.00 Count X:0 Y:0 Z:0", "ok"}, res)

	assert.Contains(t, ctrl.Received(), "G0Y7.0000F1000")
}
