package timeline

import (
	"errors"
	"sort"

	"midipush/midi"
)

// ErrScanInProgress is returned by Compact while a range scan is running
var ErrScanInProgress = errors.New("timeline: compaction during scan")

// View is the read-only face of the store handed to playback and display
type View interface {
	Sustain(beat, ch int) midi.NoteSet
	Occupied(beat int) bool
	EachEvent(beat int, fn func(e midi.Event))
	HasOnset(beat, ch, note int) bool
	Beats() []int
	Events() int
	Active() uint16
}

// Store owns both representations of the timeline. Only the record/delete/copy
// state machine holds a *Store; everything else sees a View.
type Store struct {
	events     map[int][]midi.Event
	sustain    [Beats][Channels]midi.NoteSet
	active     uint16
	tombstones int
	scanning   int
}

func New() *Store {
	return &Store{events: make(map[int][]midi.Event)}
}

var _ View = (*Store)(nil)

func (s *Store) Sustain(beat, ch int) midi.NoteSet {
	return s.sustain[Wrap(beat)][ch&0x0f]
}

// Occupied reports whether any channel sustains a note at beat
func (s *Store) Occupied(beat int) bool {
	for _, set := range s.sustain[Wrap(beat)] {
		if !set.Empty() {
			return true
		}
	}
	return false
}

// EachEvent calls fn for the live events at beat in insertion order
func (s *Store) EachEvent(beat int, fn func(e midi.Event)) {
	s.scanning++
	defer func() { s.scanning-- }()
	for _, e := range s.events[Wrap(beat)] {
		if !e.Tombstone() {
			fn(e)
		}
	}
}

// Scan walks the events of every beat in r. Returning false from fn stops the walk.
func (s *Store) Scan(r Range, fn func(beat int, e midi.Event) bool) {
	s.scanning++
	defer func() { s.scanning-- }()
	n := r.Len()
	for i := 0; i < n; i++ {
		b := Wrap(r.Start + i)
		for _, e := range s.events[b] {
			if e.Tombstone() {
				continue
			}
			if !fn(b, e) {
				return
			}
		}
	}
}

// HasOnset reports whether a note-on for note on channel ch is stored at beat
func (s *Store) HasOnset(beat, ch, note int) bool {
	return s.findOnset(Wrap(beat), ch, note) >= 0
}

func (s *Store) findOnset(beat, ch, note int) int {
	for i, e := range s.events[beat] {
		if e.Kind == midi.KindNoteOn && int(e.Channel) == ch && int(e.Note()) == note {
			return i
		}
	}
	return -1
}

// Beats returns the beats holding at least one live event, ascending
func (s *Store) Beats() []int {
	beats := make([]int, 0, len(s.events))
	for b, evs := range s.events {
		for _, e := range evs {
			if !e.Tombstone() {
				beats = append(beats, b)
				break
			}
		}
	}
	sort.Ints(beats)
	return beats
}

// Events counts live events
func (s *Store) Events() int {
	n := 0
	for _, evs := range s.events {
		for _, e := range evs {
			if !e.Tombstone() {
				n++
			}
		}
	}
	return n
}

// Tombstones counts erased events awaiting compaction
func (s *Store) Tombstones() int { return s.tombstones }

// Active has bit c set when channel c holds any sustain or event
func (s *Store) Active() uint16 { return s.active }

// Clear wipes every channel
func (s *Store) Clear() bool {
	changed := s.active != 0 || len(s.events) != 0
	s.events = make(map[int][]midi.Event)
	s.sustain = [Beats][Channels]midi.NoteSet{}
	s.active = 0
	s.tombstones = 0
	return changed
}

// ClearChannel wipes the events and sustain column of channel c
func (s *Store) ClearChannel(c int) bool {
	c &= 0x0f
	changed := false
	for b := range s.sustain {
		if !s.sustain[b][c].Empty() {
			s.sustain[b][c] = midi.NoteSet{}
			changed = true
		}
	}
	for b, evs := range s.events {
		kept := evs[:0:0]
		for _, e := range evs {
			switch {
			case e.Tombstone():
				s.tombstones--
			case int(e.Channel) == c:
				changed = true
			default:
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(s.events, b)
		} else {
			s.events[b] = kept
		}
	}
	s.active &^= 1 << uint(c)
	return changed
}

// Append ORs mask into the sustain grid for every beat of r on channel c
func (s *Store) Append(r Range, c int, mask midi.NoteSet) bool {
	if mask.Empty() {
		return false
	}
	c &= 0x0f
	changed := false
	r.Each(func(b int) {
		next := s.sustain[b][c].Or(mask)
		if next != s.sustain[b][c] {
			s.sustain[b][c] = next
			changed = true
		}
	})
	if changed {
		s.active |= 1 << uint(c)
	}
	return changed
}

// AppendEvent stores e at beat alongside any events already there
func (s *Store) AppendEvent(beat int, e midi.Event) {
	if e.Tombstone() {
		return
	}
	b := Wrap(beat)
	s.events[b] = append(s.events[b], e)
	s.active |= 1 << uint(e.Channel)
}

// Retouch raises the velocity of the onset of note at beat. It reports whether
// such an onset exists.
func (s *Store) Retouch(beat, c, note int, vel uint8) bool {
	b := Wrap(beat)
	i := s.findOnset(b, c&0x0f, note)
	if i < 0 {
		return false
	}
	s.events[b][i].Data[1] = vel & 0x7f
	return true
}

// EraseRange clears mask from channel c over r and removes the note-ons of those notes.
// A sustain run cut by the range is removed entirely: its tail is cleared forward
// until the run ends or another onset of the same note begins, and its head is
// cleared backward up to and including the onset it grew from.
func (s *Store) EraseRange(r Range, c int, mask midi.NoteSet) bool {
	if mask.Empty() || r.Empty() {
		return false
	}
	c &= 0x0f
	r = Range{Start: Wrap(r.Start), Stop: Wrap(r.Stop)}
	s.scanning++
	defer func() { s.scanning-- }()

	changed := false
	mask.Each(func(n int) {
		headed := s.sustain[r.Start][c].Has(n) && s.findOnset(r.Start, c, n) < 0

		r.Each(func(b int) {
			if s.clearBit(b, c, n) {
				changed = true
			}
			if s.removeOnset(b, c, n) {
				changed = true
			}
		})

		// tail
		for i, b := 0, r.Stop; i < Beats && s.sustain[b][c].Has(n); i, b = i+1, Wrap(b+1) {
			if s.findOnset(b, c, n) >= 0 {
				break
			}
			s.clearBit(b, c, n)
			changed = true
		}

		// head
		if !headed {
			return
		}
		for i, b := 0, Wrap(r.Start-1); i < Beats && s.sustain[b][c].Has(n); i, b = i+1, Wrap(b-1) {
			s.clearBit(b, c, n)
			changed = true
			if s.removeOnset(b, c, n) {
				break
			}
		}
	})
	if changed {
		s.refreshChannel(c)
	}
	return changed
}

func (s *Store) clearBit(b, c, n int) bool {
	if !s.sustain[b][c].Has(n) {
		return false
	}
	s.sustain[b][c].Clear(n)
	return true
}

func (s *Store) removeOnset(b, c, n int) bool {
	i := s.findOnset(b, c, n)
	if i < 0 {
		return false
	}
	s.events[b][i] = midi.Event{}
	s.tombstones++
	return true
}

// Compact drops erased events. It refuses to run while a scan is in progress.
func (s *Store) Compact() (int, error) {
	if s.scanning > 0 {
		return 0, ErrScanInProgress
	}
	removed := 0
	for b, evs := range s.events {
		kept := evs[:0]
		for _, e := range evs {
			if e.Tombstone() {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(s.events, b)
		} else {
			s.events[b] = kept
		}
	}
	s.tombstones = 0
	s.refreshActive()
	return removed, nil
}

func (s *Store) refreshChannel(c int) {
	bit := uint16(1) << uint(c)
	s.active &^= bit
	for b := range s.sustain {
		if !s.sustain[b][c].Empty() {
			s.active |= bit
			return
		}
	}
	for _, evs := range s.events {
		for _, e := range evs {
			if !e.Tombstone() && int(e.Channel) == c {
				s.active |= bit
				return
			}
		}
	}
}

func (s *Store) refreshActive() {
	for c := 0; c < Channels; c++ {
		s.refreshChannel(c)
	}
}
