package sequencer

import (
	"fmt"

	"midipush/midi"
)

// ScaleMode selects how the inferred key is used
type ScaleMode int

const (
	ScaleOff ScaleMode = iota
	ScaleInfer
	ScaleLock
)

func (m ScaleMode) String() string {
	switch m {
	case ScaleOff:
		return "off"
	case ScaleInfer:
		return "infer"
	case ScaleLock:
		return "lock"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Next cycles off -> infer -> lock -> off
func (m ScaleMode) Next() ScaleMode { return (m + 1) % 3 }

// scaleWeights scores a pitch class by its interval above a candidate root
var scaleWeights = [12]int{16, -10, 7, -10, 10, 8, -10, 12, -10, 7, -10, 6}

// triadThreshold is the score of a bare major triad (root, third, fifth)
const triadThreshold = 16 + 10 + 12

const maxPitchClasses = 7

var majorSteps = [12]bool{true, false, true, false, true, true, false, true, false, true, false, true}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Scale is the inferred major key
type Scale struct {
	Mode ScaleMode
	Root int
}

func (s Scale) String() string {
	if s.Mode == ScaleOff {
		return "-"
	}
	return noteNames[s.Root%12] + " maj"
}

// InScale reports whether note belongs to the major scale on Root
func (s Scale) InScale(note int) bool {
	return majorSteps[((note-s.Root)%12+12)%12]
}

// Allows reports whether note may be recorded and passed through
func (s Scale) Allows(note int) bool {
	return s.Mode != ScaleLock || s.InScale(note)
}

// Filter drops the notes Allows rejects
func (s Scale) Filter(set midi.NoteSet) midi.NoteSet {
	if s.Mode != ScaleLock {
		return set
	}
	var out midi.NoteSet
	set.Each(func(n int) {
		if s.InScale(n) {
			out.Set(n)
		}
	})
	return out
}

// Observe re-infers the root from h and reports whether it changed. Lock mode keeps
// the root it was locked on.
func (s *Scale) Observe(h *History) bool {
	if s.Mode != ScaleInfer {
		return false
	}
	root := InferRoot(h, s.Root)
	if root == s.Root {
		return false
	}
	s.Root = root
	return true
}

// InferRoot scores each candidate root against the distinct pitch classes struck
// most recently. A chord that clears the triad threshold wins outright; otherwise
// the previous root gets a bias so that repeated tonics do not flip the key.
func InferRoot(h *History, prev int) int {
	var score [12]int
	var seen [12]bool
	distinct := 0
	found := -1

	h.Each(func(e KeyEvent) bool {
		if !e.On() || e.Bounce {
			return true
		}
		pc := e.Note % 12
		if seen[pc] {
			return true
		}
		seen[pc] = true
		distinct++
		for r := 0; r < 12; r++ {
			score[r] += scaleWeights[(pc-r+12)%12]
		}
		if distinct >= 3 {
			if best := bestAbove(score, prev, triadThreshold); best >= 0 {
				found = best
				return false
			}
		}
		return distinct < maxPitchClasses
	})
	if found >= 0 {
		return found
	}
	if distinct == 0 {
		return prev
	}

	score[prev] += 4 * distinct
	best := prev
	for r := 0; r < 12; r++ {
		if score[r] > score[best] {
			best = r
		}
	}
	return best
}

// bestAbove returns the highest scoring root at or above min, preferring prev on ties
func bestAbove(score [12]int, prev, min int) int {
	best := -1
	if score[prev] >= min {
		best = prev
	}
	for r := 0; r < 12; r++ {
		if score[r] >= min && (best < 0 || score[r] > score[best]) {
			best = r
		}
	}
	return best
}
