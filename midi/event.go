package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Kind tags the payload carried by an Event
type Kind uint8

// KindNone is the zero value and marks a tombstoned timeline entry
const (
	KindNone Kind = iota
	KindNoteOn
	KindNoteOff
	KindPolyPressure
	KindControl
	KindProgram
	KindPressure
	KindPitchBend
)

var kindNames = [...]string{"none", "note-on", "note-off", "poly-pressure", "cc", "program", "pressure", "pitch-bend"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Event is a channel voice message stored in the timeline and sent to the synth.
// Data holds the two data bytes; for pitch bend they are LSB, MSB.
type Event struct {
	Kind    Kind
	Channel uint8
	Data    [2]uint8
}

func NoteOn(ch, note, vel uint8) Event {
	return Event{Kind: KindNoteOn, Channel: ch & 0x0f, Data: [2]uint8{note & 0x7f, vel & 0x7f}}
}

func NoteOff(ch, note uint8) Event {
	return Event{Kind: KindNoteOff, Channel: ch & 0x0f, Data: [2]uint8{note & 0x7f, 0}}
}

func Control(ch, cc, val uint8) Event {
	return Event{Kind: KindControl, Channel: ch & 0x0f, Data: [2]uint8{cc & 0x7f, val & 0x7f}}
}

func Program(ch, program uint8) Event {
	return Event{Kind: KindProgram, Channel: ch & 0x0f, Data: [2]uint8{program & 0x7f, 0}}
}

func Pressure(ch, pressure uint8) Event {
	return Event{Kind: KindPressure, Channel: ch & 0x0f, Data: [2]uint8{pressure & 0x7f, 0}}
}

func PolyPressure(ch, note, pressure uint8) Event {
	return Event{Kind: KindPolyPressure, Channel: ch & 0x0f, Data: [2]uint8{note & 0x7f, pressure & 0x7f}}
}

// PitchBend takes the absolute 14-bit bend value (8192 = centre)
func PitchBend(ch uint8, abs uint16) Event {
	return Event{Kind: KindPitchBend, Channel: ch & 0x0f, Data: [2]uint8{uint8(abs & 0x7f), uint8(abs>>7) & 0x7f}}
}

func (e Event) Tombstone() bool { return e.Kind == KindNone }

func (e Event) Note() uint8     { return e.Data[0] }
func (e Event) Velocity() uint8 { return e.Data[1] }

// Bend returns the absolute 14-bit pitch bend value
func (e Event) Bend() uint16 { return uint16(e.Data[0]) | uint16(e.Data[1])<<7 }

// HasNote reports whether Data[0] is a note number
func (e Event) HasNote() bool {
	return e.Kind == KindNoteOn || e.Kind == KindNoteOff || e.Kind == KindPolyPressure
}

// WithChannel returns a copy of e moved to channel ch
func (e Event) WithChannel(ch uint8) Event {
	e.Channel = ch & 0x0f
	return e
}

// Transpose shifts note-carrying events by d semitones. Events that would land outside
// [0,127] are reported as not ok. Other kinds are returned unchanged.
func (e Event) Transpose(d int) (Event, bool) {
	if !e.HasNote() || d == 0 {
		return e, true
	}
	n := int(e.Data[0]) + d
	if n < 0 || n > 127 {
		return e, false
	}
	e.Data[0] = uint8(n)
	return e, true
}

// Message converts the event to a wire message
func (e Event) Message() gomidi.Message {
	switch e.Kind {
	case KindNoteOn:
		return gomidi.NoteOn(e.Channel, e.Data[0], e.Data[1])
	case KindNoteOff:
		return gomidi.NoteOff(e.Channel, e.Data[0])
	case KindPolyPressure:
		return gomidi.PolyAfterTouch(e.Channel, e.Data[0], e.Data[1])
	case KindControl:
		return gomidi.ControlChange(e.Channel, e.Data[0], e.Data[1])
	case KindProgram:
		return gomidi.ProgramChange(e.Channel, e.Data[0])
	case KindPressure:
		return gomidi.AfterTouch(e.Channel, e.Data[0])
	case KindPitchBend:
		return gomidi.Pitchbend(e.Channel, int16(e.Bend())-8192)
	}
	return nil
}

// FromMessage decodes a channel voice message. Note-on with velocity 0 becomes note-off.
func FromMessage(msg gomidi.Message) (Event, bool) {
	var ch, a, b uint8
	var rel int16
	var abs uint16
	switch {
	case msg.GetNoteStart(&ch, &a, &b):
		return NoteOn(ch, a, b), true
	case msg.GetNoteEnd(&ch, &a):
		return NoteOff(ch, a), true
	case msg.GetPolyAfterTouch(&ch, &a, &b):
		return PolyPressure(ch, a, b), true
	case msg.GetControlChange(&ch, &a, &b):
		return Control(ch, a, b), true
	case msg.GetProgramChange(&ch, &a):
		return Program(ch, a), true
	case msg.GetAfterTouch(&ch, &a):
		return Pressure(ch, a), true
	case msg.GetPitchBend(&ch, &rel, &abs):
		return PitchBend(ch, abs), true
	}
	return Event{}, false
}

func (e Event) String() string {
	switch e.Kind {
	case KindPitchBend:
		return fmt.Sprintf("%s ch%d %d", e.Kind, e.Channel, e.Bend())
	case KindProgram, KindPressure:
		return fmt.Sprintf("%s ch%d %d", e.Kind, e.Channel, e.Data[0])
	}
	return fmt.Sprintf("%s ch%d %d %d", e.Kind, e.Channel, e.Data[0], e.Data[1])
}
