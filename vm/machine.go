package vm

import (
	"errors"

	"github.com/mastercactapus/gpnp/coord"
	"github.com/mastercactapus/gpnp/gcode"
)

// Machine tracks controller position the way Marlin-style firmware does,
// with E standing in for the nozzle rotation axis.
type Machine struct {
	pos coord.Point
	wco coord.Point

	e, eOffset float64

	modal [256]float64

	feed float64
}

func NewMachine() *Machine {
	m := &Machine{}

	m.modal[gcode.ModalGroupMotion] = 0
	m.modal[gcode.ModalGroupPlaneSelection] = 17
	m.modal[gcode.ModalGroupDistanceMode] = 90
	m.modal[gcode.ModalGroupFeedRateMode] = 94
	m.modal[gcode.ModalGroupUnits] = 21

	return m
}

func (m Machine) Inches() bool         { return m.modal[gcode.ModalGroupUnits] == 20 }
func (m Machine) RelativeMotion() bool { return m.modal[gcode.ModalGroupDistanceMode] == 91 }

// WPos is the logical position reported to the host, after any G92 offset.
func (m Machine) WPos() coord.Point {
	return m.pos.Sub(m.wco)
}
func (m Machine) MPos() coord.Point {
	return m.pos
}
func (m Machine) WCO() coord.Point {
	return m.wco
}

// E returns the logical position of the rotation axis.
func (m Machine) E() float64 { return m.e - m.eOffset }

// Feed returns the last programmed feed rate.
func (m Machine) Feed() float64 { return m.feed }

func isSupported(g gcode.Word) bool {
	switch g.W {
	case 'G':
		switch g.Arg {
		case 0, 1, 4, 20, 21, 28, 90, 91, 92, 94:
			return true
		}
		return false
	case 'F', 'M', 'P', 'S', 'T':
		return true
	}
	return g.IsAxis()
}

func hasWord(b gcode.Block, w gcode.Word) bool {
	for _, g := range b {
		if g == w {
			return true
		}
	}
	return false
}

func (m *Machine) Run(b gcode.Block) error {
	err := b.Validate()
	if err != nil {
		return err
	}
	for _, g := range b {
		if !isSupported(g) {
			return errors.New("unsupported code: " + g.String())
		}
		mg := g.ModalGroup()
		if mg != gcode.ModalGroupNone && mg != gcode.ModalGroupNonModal {
			m.modal[mg] = g.Arg
		}
		if g.W == 'F' {
			m.feed = g.Arg
		}
	}

	mul := 1.0
	if m.Inches() {
		mul = 25.4
	}

	switch {
	case hasWord(b, gcode.Word{W: 'G', Arg: 28}):
		m.home(b)
		return nil
	case hasWord(b, gcode.Word{W: 'G', Arg: 92}):
		m.setPosition(b, mul)
		return nil
	case hasWord(b, gcode.Word{W: 'G', Arg: 4}):
		return nil
	}

	switch m.modal[gcode.ModalGroupMotion] {
	case 0, 1:
	default:
		return nil
	}

	for _, g := range b {
		if !g.IsAxis() {
			continue
		}
		if m.RelativeMotion() {
			m.move(g.W, m.axis(g.W)+g.Arg*mul)
		} else {
			m.move(g.W, g.Arg*mul)
		}
	}

	return nil
}

// axis returns the logical position of a single axis.
func (m *Machine) axis(w byte) float64 {
	wpos := m.WPos()
	switch w {
	case 'X':
		return wpos.X
	case 'Y':
		return wpos.Y
	case 'Z':
		return wpos.Z
	case 'E':
		return m.E()
	}
	return 0
}

// move sets the logical position of a single axis.
func (m *Machine) move(w byte, val float64) {
	switch w {
	case 'X':
		m.pos.X = val + m.wco.X
	case 'Y':
		m.pos.Y = val + m.wco.Y
	case 'Z':
		m.pos.Z = val + m.wco.Z
	case 'E':
		// rotation is in degrees and not scaled by G20
		m.e = val + m.eOffset
	}
}

func (m *Machine) home(b gcode.Block) {
	var axes []byte
	for _, g := range b {
		if g.IsAxis() {
			axes = append(axes, g.W)
		}
	}
	if len(axes) == 0 {
		axes = []byte{'X', 'Y', 'Z'}
	}
	for _, w := range axes {
		switch w {
		case 'X':
			m.pos.X, m.wco.X = 0, 0
		case 'Y':
			m.pos.Y, m.wco.Y = 0, 0
		case 'Z':
			m.pos.Z, m.wco.Z = 0, 0
		case 'E':
			m.e, m.eOffset = 0, 0
		}
	}
}

func (m *Machine) setPosition(b gcode.Block, mul float64) {
	for _, g := range b {
		switch g.W {
		case 'X':
			m.wco.X = m.pos.X - g.Arg*mul
		case 'Y':
			m.wco.Y = m.pos.Y - g.Arg*mul
		case 'Z':
			m.wco.Z = m.pos.Z - g.Arg*mul
		case 'E':
			m.eOffset = m.e - g.Arg
		}
	}
}
