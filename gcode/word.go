package gcode

import "strconv"

// wordPrecision is the number of decimals kept when a word is printed.
// Marlin parses at most micron resolution for linear axes.
const wordPrecision = 3

// Word is a single letter code and its argument, such as G28 or X10.5.
// A bare letter (the X in "G28 X") has an Arg of 0.
type Word struct {
	W   byte
	Arg float64
}

// IsAxis reports whether w addresses a head axis. E is included since
// pick and place firmware drives nozzle rotation from the extruder.
func (w Word) IsAxis() bool {
	switch w.W {
	case 'X', 'Y', 'Z', 'E':
		return true
	}
	return false
}

// IsValid reports whether w uses an upper case letter.
func (w Word) IsValid() bool {
	return w.W >= 'A' && w.W <= 'Z'
}

// String prints w the compact way Marlin echoes it back: no spaces,
// no trailing zeros ("G0", "X1.5", "F3000").
func (w Word) String() string {
	b := strconv.AppendFloat([]byte{w.W}, w.Arg, 'f', wordPrecision, 64)
	for b[len(b)-1] == '0' {
		b = b[:len(b)-1]
	}
	if b[len(b)-1] == '.' {
		b = b[:len(b)-1]
	}
	if string(b[1:]) == "-0" {
		return string(w.W) + "0"
	}
	return string(b)
}
