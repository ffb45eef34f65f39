package midi

import "math/bits"

// NoteSet is a 128-bit set of MIDI note numbers
type NoteSet [2]uint64

// NoteSetOf builds a set from the given notes (out of range notes are ignored)
func NoteSetOf(notes ...int) NoteSet {
	var s NoteSet
	for _, n := range notes {
		s = s.With(n)
	}
	return s
}

func (s NoteSet) Has(n int) bool {
	if n < 0 || n > 127 {
		return false
	}
	return s[n>>6]&(1<<uint(n&63)) != 0
}

// With returns s with note n set
func (s NoteSet) With(n int) NoteSet {
	if n < 0 || n > 127 {
		return s
	}
	s[n>>6] |= 1 << uint(n&63)
	return s
}

// Without returns s with note n cleared
func (s NoteSet) Without(n int) NoteSet {
	if n < 0 || n > 127 {
		return s
	}
	s[n>>6] &^= 1 << uint(n&63)
	return s
}

func (s *NoteSet) Set(n int)   { *s = s.With(n) }
func (s *NoteSet) Clear(n int) { *s = s.Without(n) }

func (s NoteSet) Or(o NoteSet) NoteSet     { return NoteSet{s[0] | o[0], s[1] | o[1]} }
func (s NoteSet) And(o NoteSet) NoteSet    { return NoteSet{s[0] & o[0], s[1] & o[1]} }
func (s NoteSet) AndNot(o NoteSet) NoteSet { return NoteSet{s[0] &^ o[0], s[1] &^ o[1]} }
func (s NoteSet) Xor(o NoteSet) NoteSet    { return NoteSet{s[0] ^ o[0], s[1] ^ o[1]} }

func (s NoteSet) Empty() bool { return s[0] == 0 && s[1] == 0 }

func (s NoteSet) Count() int { return bits.OnesCount64(s[0]) + bits.OnesCount64(s[1]) }

// Lowest returns the lowest note in the set, or -1 if empty
func (s NoteSet) Lowest() int {
	if s[0] != 0 {
		return bits.TrailingZeros64(s[0])
	}
	if s[1] != 0 {
		return 64 + bits.TrailingZeros64(s[1])
	}
	return -1
}

// Each calls fn for every note in ascending order
func (s NoteSet) Each(fn func(n int)) {
	for w := 0; w < 2; w++ {
		word := s[w]
		for word != 0 {
			b := bits.TrailingZeros64(word)
			fn(w*64 + b)
			word &= word - 1
		}
	}
}

// Shift moves every note up (positive d) or down (negative d); notes leaving [0,127] are dropped
func (s NoteSet) Shift(d int) NoteSet {
	switch {
	case d == 0:
		return s
	case d >= 128 || d <= -128:
		return NoteSet{}
	case d > 0:
		if d >= 64 {
			return NoteSet{0, s[0] << uint(d-64)}
		}
		return NoteSet{s[0] << uint(d), s[1]<<uint(d) | s[0]>>uint(64-d)}
	default:
		d = -d
		if d >= 64 {
			return NoteSet{s[1] >> uint(d-64), 0}
		}
		return NoteSet{s[0]>>uint(d) | s[1]<<uint(64-d), s[1] >> uint(d)}
	}
}
