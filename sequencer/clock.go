package sequencer

import (
	"time"

	"midipush/timeline"
)

// Tempo limits
const (
	MinBPM     = 20
	MaxBPM     = 300
	DefaultBPM = 120
)

// Clock decides when the next tempo tick is due. Ticks are 1/24 of a quarter note.
type Clock struct {
	bpm      int
	interval time.Duration
	last     time.Time
	started  bool
}

func NewClock(bpm int) *Clock {
	c := &Clock{}
	c.SetBPM(bpm)
	return c
}

// SetBPM clamps and applies a tempo, returning the value in effect
func (c *Clock) SetBPM(bpm int) int {
	if bpm < MinBPM {
		bpm = MinBPM
	}
	if bpm > MaxBPM {
		bpm = MaxBPM
	}
	c.bpm = bpm
	c.interval = time.Minute / time.Duration(bpm*timeline.BeatsPerPage)
	return bpm
}

func (c *Clock) BPM() int                { return c.bpm }
func (c *Clock) Interval() time.Duration { return c.interval }

// Reset starts counting intervals from t
func (c *Clock) Reset(t time.Time) {
	c.last = t
	c.started = true
}

// Restart makes the next Due call start counting from its own time
func (c *Clock) Restart() { c.started = false }

// Due reports whether a tick fires at t. The next tick is scheduled one interval after
// the previous one; a caller that fell more than one interval behind is resynced to t.
func (c *Clock) Due(t time.Time) bool {
	if !c.started {
		c.Reset(t)
		return false
	}
	elapsed := t.Sub(c.last)
	if elapsed <= c.interval {
		return false
	}
	if elapsed > 2*c.interval {
		c.last = t
	} else {
		c.last = c.last.Add(c.interval)
	}
	return true
}

// Until returns how long until the next tick may fire
func (c *Clock) Until(t time.Time) time.Duration {
	if !c.started {
		return c.interval
	}
	d := c.last.Add(c.interval).Sub(t)
	if d < 0 {
		return 0
	}
	return d
}

// NextPage is the masked increment of page: bits set in mask hold their value while
// the free bits count up. A fully masked page falls back to plain +1.
func NextPage(page int, mask uint8) int {
	m := int(mask) & (timeline.Pages - 1)
	next := ((((page | m) + 1) &^ m) | (page & m)) & (timeline.Pages - 1)
	if next == page {
		next = (page + 1) & (timeline.Pages - 1)
	}
	return next
}

// Advance moves one beat forward, following the page mask at page boundaries
func Advance(then int, mask uint8) int {
	now := timeline.Wrap(then + 1)
	if now%timeline.BeatsPerPage == 0 {
		now = NextPage(timeline.Page(then), mask) * timeline.BeatsPerPage
	}
	return now
}

// Shuttle scrubs by amount steps of a quarter page
func Shuttle(then, amount int) int {
	return timeline.Wrap(then + amount*6)
}

// Jump moves to page keeping the position within the page
func Jump(then, page int) int {
	return timeline.Wrap(page*timeline.BeatsPerPage + timeline.Wrap(then)%timeline.BeatsPerPage)
}
