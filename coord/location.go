package coord

import (
	"fmt"
	"math"
)

// Location is a machine position. A NaN axis is unspecified and means
// "leave this axis where it is" to a driver.
type Location struct {
	Units LengthUnit

	X, Y, Z float64

	// Rotation is in degrees and is never unit converted.
	Rotation float64
}

// Unspecified is the sentinel for an axis that should not change.
var Unspecified = math.NaN()

// NewLocation is a convenience constructor.
func NewLocation(u LengthUnit, x, y, z, rotation float64) Location {
	return Location{Units: u, X: x, Y: y, Z: z, Rotation: rotation}
}

// ConvertToUnits returns l with X, Y and Z expressed in u.
func (l Location) ConvertToUnits(u LengthUnit) Location {
	if l.Units == u {
		return l
	}
	l.X = l.Units.Convert(l.X, u)
	l.Y = l.Units.Convert(l.Y, u)
	l.Z = l.Units.Convert(l.Z, u)
	l.Units = u
	return l
}

// Add will add the target values to l, converting target to l's units first.
func (l Location) Add(target Location) Location {
	target = target.ConvertToUnits(l.Units)
	l.X += target.X
	l.Y += target.Y
	l.Z += target.Z
	l.Rotation += target.Rotation
	return l
}

// Subtract will subtract the target values from l, converting target to l's units first.
func (l Location) Subtract(target Location) Location {
	target = target.ConvertToUnits(l.Units)
	l.X -= target.X
	l.Y -= target.Y
	l.Z -= target.Z
	l.Rotation -= target.Rotation
	return l
}

// Derive returns a copy of l with every non-nil argument replacing
// the matching axis.
func (l Location) Derive(x, y, z, rotation *float64) Location {
	if x != nil {
		l.X = *x
	}
	if y != nil {
		l.Y = *y
	}
	if z != nil {
		l.Z = *z
	}
	if rotation != nil {
		l.Rotation = *rotation
	}
	return l
}

// WithZ is shorthand for Derive(nil, nil, &z, nil).
func (l Location) WithZ(z float64) Location {
	return l.Derive(nil, nil, &z, nil)
}

func (l Location) String() string {
	return fmt.Sprintf("(%f, %f, %f, %f %s)", l.X, l.Y, l.Z, l.Rotation, l.Units)
}
