package machine

import (
	"fmt"
	"strings"

	"github.com/mastercactapus/gpnp/coord"
)

// A Driver turns machine operations into controller commands.
//
// Drivers may be chained: a primary driver replays each operation on its
// secondaries, in order, after its own exchange succeeds.
type Driver interface {
	Connect() error
	Disconnect() error
	SetEnabled(enabled bool) error
	Home() error

	// Location returns the current position of hm, including its offsets.
	Location(hm HeadMountable) coord.Location
	// MoveTo moves hm to loc. NaN axes are left where they are; speed
	// scales the driver's maximum feed rate.
	MoveTo(hm HeadMountable, loc coord.Location, speed float64) error

	Pick(nozzle HeadMountable) error
	Place(nozzle HeadMountable) error

	ActuateBool(a Actuator, on bool) error
	ActuateValue(a Actuator, value float64) error

	Close() error
}

// Chain is an ordered list of secondary drivers.
type Chain []Driver

// Each calls fn for every driver in order, stopping at the first error.
func (c Chain) Each(fn func(Driver) error) error {
	for _, d := range c {
		err := fn(d)
		if err != nil {
			return err
		}
	}
	return nil
}

type MountKind int

const (
	KindNozzle MountKind = iota
	KindCamera
	KindActuator
)

func (k MountKind) String() string {
	switch k {
	case KindNozzle:
		return "nozzle"
	case KindCamera:
		return "camera"
	case KindActuator:
		return "actuator"
	}
	return fmt.Sprintf("MountKind(%d)", int(k))
}

func (k *MountKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "nozzle":
		*k = KindNozzle
	case "camera":
		*k = KindCamera
	case "actuator":
		*k = KindActuator
	default:
		return fmt.Errorf("unknown mount kind %q", text)
	}
	return nil
}

// HeadMountable is anything carried by the head at a fixed offset.
type HeadMountable interface {
	Name() string
	HeadOffsets() coord.Location
	Kind() MountKind
}

// IsNozzle reports whether hm may move the Z axis.
func IsNozzle(hm HeadMountable) bool { return hm.Kind() == KindNozzle }

type Actuator interface {
	Name() string
	Index() int
}

// Mount is a basic HeadMountable.
type Mount struct {
	Label   string
	Offsets coord.Location
	Type    MountKind
}

func (m Mount) Name() string                { return m.Label }
func (m Mount) HeadOffsets() coord.Location { return m.Offsets }
func (m Mount) Kind() MountKind             { return m.Type }

// Output is a basic Actuator.
type Output struct {
	Label  string
	Number int
}

func (o Output) Name() string { return o.Label }
func (o Output) Index() int   { return o.Number }
