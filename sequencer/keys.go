package sequencer

import (
	"fmt"
	"time"

	"midipush/midi"
)

// HistoryDepth is the number of key events remembered per source
const HistoryDepth = 32

// DefaultDebounce is the window in which a repeated strike counts as contact bounce
const DefaultDebounce = 100 * time.Millisecond

// KeyEvent is a canonical key press or release. Velocity > 0 is a press.
type KeyEvent struct {
	Note     int
	Velocity int
	Time     time.Time
	Source   midi.Source
	Bounce   bool
}

func (e KeyEvent) On() bool { return e.Velocity > 0 }

// History is a ring of recent key events
type History struct {
	buf  [HistoryDepth]KeyEvent
	head int
	n    int
}

func (h *History) Push(e KeyEvent) {
	h.buf[h.head] = e
	h.head = (h.head + 1) % HistoryDepth
	if h.n < HistoryDepth {
		h.n++
	}
}

func (h *History) Len() int { return h.n }

// Each walks newest first until fn returns false
func (h *History) Each(fn func(e KeyEvent) bool) {
	for i := 1; i <= h.n; i++ {
		if !fn(h.buf[(h.head-i+HistoryDepth)%HistoryDepth]) {
			return
		}
	}
}

// Curve shapes pad velocity
type Curve int

const (
	CurveLinear Curve = iota
	CurveSoft
	CurveHard
	CurveFixed
)

var curveNames = []string{"linear", "soft", "hard", "fixed"}

func (c Curve) String() string {
	if int(c) >= 0 && int(c) < len(curveNames) {
		return curveNames[c]
	}
	return fmt.Sprintf("curve(%d)", int(c))
}

// ParseCurve accepts a curve name or its index
func ParseCurve(s string) (Curve, error) {
	for i, name := range curveNames {
		if s == name || s == fmt.Sprint(i) {
			return Curve(i), nil
		}
	}
	return CurveLinear, fmt.Errorf("unknown pad curve %q", s)
}

// Apply maps a raw velocity in 1..127 through the curve
func (c Curve) Apply(v int) int {
	if v <= 0 {
		return 0
	}
	if v > 127 {
		v = 127
	}
	switch c {
	case CurveSoft:
		inv := 127 - v
		return 127 - inv*inv/127
	case CurveHard:
		if out := v * v / 127; out > 0 {
			return out
		}
		return 1
	case CurveFixed:
		return 100
	}
	return v
}

type strike struct {
	at    time.Time
	valid bool
}

// Keys turns pad and keyboard input into KeyEvents
type Keys struct {
	Octave    int
	Curve     Curve
	Threshold int
	Debounce  time.Duration

	history [midi.NumSources]History
	merged  History
	last    [midi.NumSources][128]strike
	lastOn  [midi.NumSources][128]int
}

func NewKeys() *Keys {
	return &Keys{Octave: 0, Debounce: DefaultDebounce}
}

// PadNote maps a pad to a note: rows are a fourth apart, columns a semitone
func PadNote(id uint8, octave int) (int, bool) {
	row, col, ok := midi.PadRowCol(id)
	if !ok {
		return 0, false
	}
	note := 36 + 12*octave + 5*row + col
	if note < 0 || note > 127 {
		return 0, false
	}
	return note, true
}

// Pad handles a pad message; vel 0 is a release
func (k *Keys) Pad(id uint8, vel int, t time.Time) (KeyEvent, bool) {
	note, ok := PadNote(id, k.Octave)
	if !ok {
		return KeyEvent{}, false
	}
	if vel > 0 {
		vel = k.Curve.Apply(vel)
		if vel < k.Threshold {
			return KeyEvent{}, false
		}
	}
	return k.event(midi.SourcePads, note, vel, t), true
}

// Key handles a note from the external keyboard
func (k *Keys) Key(note, vel int, t time.Time) (KeyEvent, bool) {
	if note < 0 || note > 127 {
		return KeyEvent{}, false
	}
	return k.event(midi.SourceKeys, note, vel, t), true
}

func (k *Keys) event(src midi.Source, note, vel int, t time.Time) KeyEvent {
	e := KeyEvent{Note: note, Velocity: vel, Time: t, Source: src}
	prev := &k.last[src][note]
	if e.On() {
		if prev.valid && t.Sub(prev.at) < k.Debounce {
			e.Bounce = true
			if k.lastOn[src][note] > e.Velocity {
				e.Velocity = k.lastOn[src][note]
			}
		}
		k.lastOn[src][note] = e.Velocity
	}
	*prev = strike{at: t, valid: true}

	k.history[src].Push(e)
	k.merged.Push(e)
	return e
}

// History returns the ring for one source
func (k *Keys) History(src midi.Source) *History { return &k.history[src] }

// Merged returns the ring holding every source
func (k *Keys) Merged() *History { return &k.merged }
