package midi

// ControllerType identifies the kind of controller
type ControllerType int

const (
	ControllerUnknown ControllerType = iota
	ControllerPads
	ControllerKeyboard
)

func (t ControllerType) String() string {
	switch t {
	case ControllerPads:
		return "pads"
	case ControllerKeyboard:
		return "keyboard"
	}
	return "unknown"
}

// LEDUpdate is a single LED change on a grid controller.
// Rows 0-7 are the pad grid (row 0 at the bottom), row 8 is the upper selector
// button row, row 9 the lower selector row.
type LEDUpdate struct {
	Row, Col int
	Color    [3]uint8
	Channel  uint8
}

// Controller is the interface for MIDI input devices
type Controller interface {
	ID() string
	Type() ControllerType

	// Framed input, in arrival order
	Messages() <-chan Message

	// Output to the controller (no-op for devices without LEDs)
	SetLEDBatch(updates []LEDUpdate) error

	// Lifecycle
	Close() error
}

// Grid geometry
const (
	GridRows  = 8
	GridCols  = 8
	FirstPad  = 36 // note number of the bottom-left pad
	LastPad   = FirstPad + GridRows*GridCols - 1
	RowUpper  = 8
	RowLower  = 9
	CCUpper   = 20  // first CC of the upper selector row
	CCLower   = 102 // first CC of the lower selector row
	SelectorN = 8
)

// PadRowCol converts a pad note number to grid coordinates using truncating division.
// ok is false for notes outside the grid.
func PadRowCol(id uint8) (row, col int, ok bool) {
	if id < FirstPad || id > LastPad {
		return -1, -1, false
	}
	off := int(id) - FirstPad
	return off / GridCols, off % GridCols, true
}

// PadID is the inverse of PadRowCol
func PadID(row, col int) uint8 {
	return uint8(FirstPad + row*GridCols + col)
}

// Channel modes for LEDUpdate.Channel
const (
	ChannelStatic uint8 = 0 // solid color
	ChannelFlash  uint8 = 1 // flashing
	ChannelPulse  uint8 = 2 // pulsing (fades)
)
