package sequencer

import (
	"testing"
	"time"

	"midipush/timeline"
)

func TestClockInterval(t *testing.T) {
	c := NewClock(125)
	if c.Interval() != 20*time.Millisecond {
		t.Errorf("125 bpm interval: %v", c.Interval())
	}
	if c.SetBPM(5) != MinBPM || c.SetBPM(1000) != MaxBPM {
		t.Error("bpm not clamped")
	}
}

func TestClockDue(t *testing.T) {
	c := NewClock(125) // 20ms
	t0 := time.Unix(0, 0)
	if c.Due(t0) {
		t.Fatal("first call should only start the clock")
	}
	if c.Due(t0.Add(20 * time.Millisecond)) {
		t.Error("tick fired at exactly one interval")
	}
	if !c.Due(t0.Add(21 * time.Millisecond)) {
		t.Error("tick did not fire after one interval")
	}
	// scheduled from the previous fire (20ms), not from the call (21ms)
	if !c.Due(t0.Add(41 * time.Millisecond)) {
		t.Error("drift-free schedule missed a tick")
	}
	// far behind: resync to now
	if !c.Due(t0.Add(500 * time.Millisecond)) {
		t.Error("late tick did not fire")
	}
	if c.Due(t0.Add(510 * time.Millisecond)) {
		t.Error("resync did not move the schedule")
	}
}

func TestNextPage(t *testing.T) {
	tests := []struct {
		page int
		mask uint8
		want int
	}{
		{0, 0, 1},
		{63, 0, 0},
		{5, 0b000100, 6}, // bit 2 held at 1: 0b101 -> 0b110
		{7, 0b000100, 12},
		{8, 0b111000, 9},
		{15, 0b111000, 8},  // stays in bank 1
		{12, 0b111111, 13}, // fully masked falls back to +1
	}
	for _, tt := range tests {
		if got := NextPage(tt.page, tt.mask); got != tt.want {
			t.Errorf("NextPage(%d, %06b) = %d, want %d", tt.page, tt.mask, got, tt.want)
		}
	}
}

func TestAdvance(t *testing.T) {
	if got := Advance(5, 0); got != 6 {
		t.Errorf("advance 5: %d", got)
	}
	if got := Advance(23, 0); got != 24 {
		t.Errorf("advance across page: %d", got)
	}
	if got := Advance(timeline.Beats-1, 0); got != 0 {
		t.Errorf("advance wraps: %d", got)
	}
	// bank lock: page 15 loops back to page 8
	if got := Advance(15*24+23, 0b111000); got != 8*24 {
		t.Errorf("masked advance: %d", got)
	}
}

func TestShuttleAndJump(t *testing.T) {
	if got := Shuttle(3, -1); got != timeline.Beats-3 {
		t.Errorf("shuttle back across zero: %d", got)
	}
	if got := Shuttle(10, 2); got != 22 {
		t.Errorf("shuttle forward: %d", got)
	}
	if got := Jump(24*3+7, 10); got != 247 {
		t.Errorf("jump keeps phase: %d", got)
	}
}
