package gcode

// ModalGroup identifies words that are mutually exclusive within a block.
type ModalGroup byte

const (
	ModalGroupNone ModalGroup = iota
	ModalGroupNonModal
	ModalGroupMotion
	ModalGroupPlaneSelection
	ModalGroupDistanceMode
	ModalGroupExtruderMode
	ModalGroupFeedRateMode
	ModalGroupUnits
	ModalGroupCoordinateSystem
	ModalGroupStopping
	ModalGroupSpindle
	ModalGroupCoolant
	ModalGroupMotors
	ModalGroupFeedRate
)

// ModalGroup returns the group w belongs to, limited to the codes
// Marlin style pick and place firmware understands.
func (w Word) ModalGroup() ModalGroup {
	switch w.W {
	case 'G':
		switch w.Arg {
		case 4, 28, 92:
			return ModalGroupNonModal
		case 0, 1, 2, 3:
			return ModalGroupMotion
		case 17, 18, 19:
			return ModalGroupPlaneSelection
		case 90, 91:
			return ModalGroupDistanceMode
		case 93, 94:
			return ModalGroupFeedRateMode
		case 20, 21:
			return ModalGroupUnits
		case 54, 55, 56, 57, 58, 59:
			return ModalGroupCoordinateSystem
		}
	case 'M':
		switch w.Arg {
		case 0, 1, 2, 30:
			return ModalGroupStopping
		case 3, 4, 5:
			// vacuum pump on most pick and place heads
			return ModalGroupSpindle
		case 7, 8, 9:
			return ModalGroupCoolant
		case 82, 83:
			return ModalGroupExtruderMode
		case 17, 18, 84:
			return ModalGroupMotors
		}
	case 'F':
		return ModalGroupFeedRate
	}
	return ModalGroupNone
}
