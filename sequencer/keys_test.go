package sequencer

import (
	"testing"
	"time"

	"midipush/midi"
)

func TestPadNoteLayout(t *testing.T) {
	tests := []struct {
		id     uint8
		octave int
		want   int
		ok     bool
	}{
		{36, 0, 36, true},
		{37, 0, 37, true},
		{44, 0, 41, true},   // row 1 is a fourth up
		{43, 0, 43, true},   // row 0 col 7
		{99, 0, 78, true},   // row 7 col 7: 36+35+7
		{36, 2, 60, true},   // octave shift
		{99, 5, 138, false}, // off the top
		{36, -4, -12, false},
		{35, 0, 0, false},
		{100, 0, 0, false},
	}
	for _, tt := range tests {
		got, ok := PadNote(tt.id, tt.octave)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("PadNote(%d, %d) = %d %v, want %d %v", tt.id, tt.octave, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCurves(t *testing.T) {
	if CurveLinear.Apply(64) != 64 {
		t.Error("linear changed velocity")
	}
	if got := CurveSoft.Apply(32); got <= 32 {
		t.Errorf("soft should boost low velocities, got %d", got)
	}
	if got := CurveHard.Apply(64); got >= 64 {
		t.Errorf("hard should damp mid velocities, got %d", got)
	}
	if CurveHard.Apply(1) != 1 {
		t.Error("hard curve produced a silent note-on")
	}
	if CurveFixed.Apply(5) != 100 {
		t.Error("fixed curve")
	}
	for _, c := range []Curve{CurveLinear, CurveSoft, CurveHard} {
		if c.Apply(127) != 127 {
			t.Errorf("%s: full velocity not preserved", c)
		}
	}
	if c, err := ParseCurve("hard"); err != nil || c != CurveHard {
		t.Errorf("parse name: %v %v", c, err)
	}
	if c, err := ParseCurve("1"); err != nil || c != CurveSoft {
		t.Errorf("parse index: %v %v", c, err)
	}
	if _, err := ParseCurve("wobbly"); err == nil {
		t.Error("unknown curve accepted")
	}
}

func TestPadThreshold(t *testing.T) {
	k := NewKeys()
	k.Threshold = 20
	t0 := time.Unix(100, 0)
	if _, ok := k.Pad(36, 10, t0); ok {
		t.Error("soft hit under the threshold was accepted")
	}
	if e, ok := k.Pad(36, 30, t0); !ok || e.Velocity != 30 {
		t.Errorf("hit over the threshold: %+v %v", e, ok)
	}
	if e, ok := k.Pad(36, 0, t0); !ok || e.On() {
		t.Errorf("release must pass regardless of threshold: %+v %v", e, ok)
	}
}

func TestDebounceTakesMaxVelocity(t *testing.T) {
	k := NewKeys()
	t0 := time.Unix(100, 0)
	first, _ := k.Key(60, 40, t0)
	if first.Bounce {
		t.Error("first strike flagged as bounce")
	}
	second, _ := k.Key(60, 90, t0.Add(30*time.Millisecond))
	if !second.Bounce || second.Velocity != 90 {
		t.Errorf("second strike: %+v", second)
	}

	// weaker bounce keeps the stronger earlier velocity
	k2 := NewKeys()
	k2.Key(60, 90, t0)
	k2.Key(60, 0, t0.Add(10*time.Millisecond))
	third, _ := k2.Key(60, 40, t0.Add(30*time.Millisecond))
	if !third.Bounce || third.Velocity != 90 {
		t.Errorf("weak bounce: %+v", third)
	}

	// outside the window it is a fresh strike
	late, _ := k2.Key(60, 40, t0.Add(500*time.Millisecond))
	if late.Bounce || late.Velocity != 40 {
		t.Errorf("late strike: %+v", late)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	k := NewKeys()
	t0 := time.Unix(0, 0)
	for i := 0; i < HistoryDepth+5; i++ {
		k.Key(i, 100, t0.Add(time.Duration(i)*time.Second))
	}
	h := k.History(midi.SourceKeys)
	if h.Len() != HistoryDepth {
		t.Errorf("len %d", h.Len())
	}
	var notes []int
	h.Each(func(e KeyEvent) bool {
		notes = append(notes, e.Note)
		return len(notes) < 3
	})
	if len(notes) != 3 || notes[0] != HistoryDepth+4 || notes[2] != HistoryDepth+2 {
		t.Errorf("newest first: %v", notes)
	}
	if k.History(midi.SourcePads).Len() != 0 {
		t.Error("pad history should be empty")
	}
	if k.Merged().Len() != HistoryDepth {
		t.Error("merged history not filled")
	}
}

func TestNotesTracker(t *testing.T) {
	n := NewNotes()
	n.Apply(KeyEvent{Note: 60, Velocity: 100})
	n.Apply(KeyEvent{Note: 64, Velocity: 80})
	if n.Cnt != 2 || n.Last != 64 || n.Vel[60] != 100 {
		t.Errorf("after presses: %+v", n)
	}
	n.Apply(KeyEvent{Note: 60})
	if n.V != midi.NoteSetOf(64) || n.Cnt != 1 {
		t.Errorf("after one release: cnt %d", n.Cnt)
	}
	// a release with no press (e.g. after a flush) keeps the count sane
	n.Apply(KeyEvent{Note: 64})
	n.Apply(KeyEvent{Note: 70})
	if !n.V.Empty() || n.Cnt != 0 {
		t.Errorf("count not forced to zero: %d", n.Cnt)
	}

	n.Apply(KeyEvent{Note: 50, Velocity: 1})
	if !n.Flush() || n.Held() || n.Cnt != 0 {
		t.Error("flush")
	}
	if n.Flush() {
		t.Error("second flush reported a change")
	}
}
