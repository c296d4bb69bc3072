package machine

import (
	"errors"
	"fmt"

	"github.com/mastercactapus/gpnp/coord"
)

// ErrUnknown is returned when a mount or actuator name is not configured.
var ErrUnknown = errors.New("unknown name")

// Machine binds a Driver to the named head mountables and actuators it
// is asked to operate.
type Machine struct {
	Driver

	mounts    []HeadMountable
	actuators []Actuator

	mountByName    map[string]HeadMountable
	actuatorByName map[string]Actuator
}

type State struct {
	Connected bool
	Enabled   bool
	Position  coord.Location
}

func NewMachine(d Driver, mounts []HeadMountable, actuators []Actuator) (*Machine, error) {
	m := &Machine{
		Driver:         d,
		mounts:         mounts,
		actuators:      actuators,
		mountByName:    make(map[string]HeadMountable, len(mounts)),
		actuatorByName: make(map[string]Actuator, len(actuators)),
	}
	for _, hm := range mounts {
		if _, ok := m.mountByName[hm.Name()]; ok {
			return nil, fmt.Errorf("duplicate mount %q", hm.Name())
		}
		m.mountByName[hm.Name()] = hm
	}
	for _, a := range actuators {
		if _, ok := m.actuatorByName[a.Name()]; ok {
			return nil, fmt.Errorf("duplicate actuator %q", a.Name())
		}
		m.actuatorByName[a.Name()] = a
	}
	return m, nil
}

func (m *Machine) Mounts() []HeadMountable { return m.mounts }
func (m *Machine) Actuators() []Actuator   { return m.actuators }

func (m *Machine) Mount(name string) (HeadMountable, error) {
	hm, ok := m.mountByName[name]
	if !ok {
		return nil, fmt.Errorf("mount %q: %w", name, ErrUnknown)
	}
	return hm, nil
}

func (m *Machine) Actuator(name string) (Actuator, error) {
	a, ok := m.actuatorByName[name]
	if !ok {
		return nil, fmt.Errorf("actuator %q: %w", name, ErrUnknown)
	}
	return a, nil
}
