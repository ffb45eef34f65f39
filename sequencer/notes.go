package sequencer

import "midipush/midi"

// Notes tracks the notes currently held down
type Notes struct {
	V    midi.NoteSet
	Cnt  int
	Vel  [128]uint8
	Last int
}

func NewNotes() Notes {
	return Notes{Last: -1}
}

// Apply folds one key event into the held set and reports whether V changed
func (n *Notes) Apply(e KeyEvent) bool {
	before := n.V
	if e.On() {
		n.V.Set(e.Note)
		n.Cnt++
		v := e.Velocity
		if v > 127 {
			v = 127
		}
		n.Vel[e.Note] = uint8(v)
		n.Last = e.Note
	} else {
		n.V.Clear(e.Note)
		n.Cnt--
	}
	if n.V.Empty() {
		n.Cnt = 0
	}
	return n.V != before || e.On()
}

// Flush releases every held note
func (n *Notes) Flush() bool {
	if n.V.Empty() {
		return false
	}
	n.V = midi.NoteSet{}
	n.Cnt = 0
	return true
}

// Held reports whether any note is down
func (n Notes) Held() bool { return !n.V.Empty() }
