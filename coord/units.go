package coord

import (
	"fmt"
	"strings"
)

// LengthUnit is the linear unit a Location's X, Y and Z are expressed in.
type LengthUnit int

const (
	Millimeters LengthUnit = iota
	Centimeters
	Meters
	Inches
	Feet
	Microns
)

var unitNames = [...]string{
	Millimeters: "mm",
	Centimeters: "cm",
	Meters:      "m",
	Inches:      "in",
	Feet:        "ft",
	Microns:     "um",
}

// millimeters per unit
var unitScale = [...]float64{
	Millimeters: 1,
	Centimeters: 10,
	Meters:      1000,
	Inches:      25.4,
	Feet:        304.8,
	Microns:     0.001,
}

// IsValid reports whether u is one of the known units.
func (u LengthUnit) IsValid() bool { return u >= Millimeters && u <= Microns }

func (u LengthUnit) String() string {
	if !u.IsValid() {
		return fmt.Sprintf("LengthUnit(%d)", int(u))
	}
	return unitNames[u]
}

// Convert will convert val, expressed in u, to the target unit.
func (u LengthUnit) Convert(val float64, target LengthUnit) float64 {
	if u == target {
		return val
	}
	return val * unitScale[u] / unitScale[target]
}

// ParseLengthUnit accepts the short names ("mm", "in") as well as the
// long ones ("millimeters", "inches").
func ParseLengthUnit(s string) (LengthUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mm", "millimeter", "millimeters":
		return Millimeters, nil
	case "cm", "centimeter", "centimeters":
		return Centimeters, nil
	case "m", "meter", "meters":
		return Meters, nil
	case "in", "inch", "inches":
		return Inches, nil
	case "ft", "foot", "feet":
		return Feet, nil
	case "um", "micron", "microns":
		return Microns, nil
	}
	return Millimeters, fmt.Errorf("unknown length unit %q", s)
}

// UnmarshalText allows LengthUnit to be used directly in config files.
func (u *LengthUnit) UnmarshalText(text []byte) error {
	v, err := ParseLengthUnit(string(text))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

func (u LengthUnit) MarshalText() ([]byte, error) {
	if !u.IsValid() {
		return nil, fmt.Errorf("invalid length unit %d", int(u))
	}
	return []byte(u.String()), nil
}
