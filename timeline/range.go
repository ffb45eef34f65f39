// Package timeline stores the looper's circular timeline: a sparse table of discrete
// events keyed by beat and a dense per-beat, per-channel grid of sustained notes.
package timeline

// Timeline geometry
const (
	BeatsPerPage = 24
	Pages        = 64
	Beats        = BeatsPerPage * Pages
	Channels     = 16
)

// Wrap reduces b into [0, Beats)
func Wrap(b int) int {
	b %= Beats
	if b < 0 {
		b += Beats
	}
	return b
}

// Page returns the page holding beat b
func Page(b int) int { return Wrap(b) / BeatsPerPage }

// Range is a half-open span of beats [Start, Stop) walked forward with wrap-around.
// Start == Stop is empty.
type Range struct {
	Start, Stop int
}

// Len is the forward distance from Start to Stop
func (r Range) Len() int { return Wrap(r.Stop - r.Start) }

func (r Range) Empty() bool { return r.Len() == 0 }

// Contains reports whether beat b lies inside the range
func (r Range) Contains(b int) bool {
	return Wrap(b-r.Start) < r.Len()
}

// Each calls fn for every beat in the range, in forward order
func (r Range) Each(fn func(b int)) {
	n := r.Len()
	for i := 0; i < n; i++ {
		fn(Wrap(r.Start + i))
	}
}

// Normalize returns the shorter arc between then and now. When the forward distance
// exceeds half the timeline the pair is swapped, so backward scrubs visit the same
// beats a forward move would.
func Normalize(then, now int) Range {
	r := Range{Start: Wrap(then), Stop: Wrap(now)}
	if r.Len() > Beats/2 {
		r.Start, r.Stop = r.Stop, r.Start
	}
	return r
}

// Span is the range of beats the clock arrived at when it moved from then to now.
// Forward moves cover (then, now]; backward moves cover [now, then), so the landing
// beat is always inside and the origin never is. A stationary clock touches the
// current beat.
func Span(then, now int) Range {
	then, now = Wrap(then), Wrap(now)
	switch d := Wrap(now - then); {
	case d == 0:
		return Range{Start: now, Stop: Wrap(now + 1)}
	case d <= Beats/2:
		return Range{Start: Wrap(then + 1), Stop: Wrap(now + 1)}
	}
	return Range{Start: now, Stop: then}
}
