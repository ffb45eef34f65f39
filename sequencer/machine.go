package sequencer

import (
	"midipush/debug"
	"midipush/midi"
	"midipush/timeline"
)

// CopyState describes an armed page copy. It exists only while a copy is armed, so
// every field is valid whenever the pointer is non-nil.
type CopyState struct {
	Shift     int
	FirstBeat int
	FirstNote int
	ArmedNote int
	Anchored  bool
}

// Transpose is the interval applied to copied notes
func (c *CopyState) Transpose() int { return c.ArmedNote - c.FirstNote }

// copyBeat is copy output computed one beat ahead of the clock
type copyBeat struct {
	beat    int
	valid   bool
	emitted bool
	events  []midi.Event
	overlay [timeline.Channels]midi.NoteSet
}

// Machine is the only writer of the timeline. It turns the mode flags, the held
// notes and clock movement into store mutations.
type Machine struct {
	store *timeline.Store

	Recording bool
	Deleting  bool
	Channel   int

	copy  *CopyState
	ahead copyBeat

	recorded  midi.NoteSet
	onsetBeat [128]int
	clearing  bool

	// Preview holds copied events due on the current beat when not recording
	Preview []midi.Event
	// Overlay holds copied notes sounding on the current beat when not recording
	Overlay [timeline.Channels]midi.NoteSet
}

func NewMachine(store *timeline.Store) *Machine {
	m := &Machine{store: store}
	m.resetOnsets()
	return m
}

// View exposes the timeline read-only
func (m *Machine) View() timeline.View { return m.store }

func (m *Machine) Copy() *CopyState { return m.copy }

func (m *Machine) resetOnsets() {
	m.recorded = midi.NoteSet{}
	for i := range m.onsetBeat {
		m.onsetBeat[i] = -1
	}
}

// SetRecording starts or ends a recording stint
func (m *Machine) SetRecording(on bool) {
	if m.Recording != on {
		m.resetOnsets()
	}
	m.Recording = on
}

// SetDeleting toggles delete mode; leaving it compacts the timeline
func (m *Machine) SetDeleting(on bool) bool {
	was := m.Deleting
	m.Deleting = on
	if was && !on {
		m.clearing = false
		removed, err := m.store.Compact()
		if err != nil {
			debug.Warn("machine", "compact: %v", err)
			return false
		}
		debug.Log("machine", "compacted %d events", removed)
		return removed > 0
	}
	return false
}

// SetChannel moves recording to another channel
func (m *Machine) SetChannel(ch int) {
	if ch != m.Channel {
		m.resetOnsets()
	}
	m.Channel = ch & 0x0f
}

// NewPressed clears the current channel, or everything while deleting
func (m *Machine) NewPressed() bool {
	if m.Deleting {
		m.clearing = true
		m.Disarm()
		return m.store.Clear()
	}
	return m.store.ClearChannel(m.Channel)
}

// NewReleased ends delete mode if New cleared everything
func (m *Machine) NewReleased() bool {
	if !m.clearing {
		return false
	}
	m.SetDeleting(false)
	return true
}

// ArmCopy prepares to replay the material preceding page target, transposed so its
// lowest note lands on armedNote. Returns false when the timeline is empty.
func (m *Machine) ArmCopy(target, armedNote int) bool {
	start := target * timeline.BeatsPerPage
	first := -1
	for i := 1; i <= timeline.Beats; i++ {
		b := timeline.Wrap(start - i)
		if m.store.Occupied(b) {
			first = b
			break
		}
	}
	if first < 0 {
		m.Disarm()
		return false
	}

	lowest := -1
	for c := 0; c < timeline.Channels; c++ {
		if n := m.store.Sustain(first, c).Lowest(); n >= 0 && (lowest < 0 || n < lowest) {
			lowest = n
		}
	}
	m.copy = &CopyState{
		Shift:     timeline.Wrap(start - first + 1),
		FirstBeat: first,
		FirstNote: lowest,
		ArmedNote: armedNote,
	}
	m.ahead = copyBeat{}
	debug.Log("machine", "copy armed: first=%d shift=%d anchor=%d", first, m.copy.Shift, armedNote)
	return true
}

// Disarm drops any armed copy and its preview
func (m *Machine) Disarm() bool {
	if m.copy == nil {
		return false
	}
	m.copy = nil
	m.ahead = copyBeat{}
	m.Overlay = [timeline.Channels]midi.NoteSet{}
	m.Preview = m.Preview[:0]
	return true
}

// Step applies the current mode to the beats the clock moved through. held is the
// filtered held-note set, bounced the notes whose strike this pass was contact bounce,
// vel the per-note velocities and aux the pressure and bend events to record.
func (m *Machine) Step(then, now int, held, bounced midi.NoteSet, vel *[128]uint8, aux []midi.Event) bool {
	m.Preview = m.Preview[:0]
	r := timeline.Span(then, now)
	changed := false

	switch {
	case m.Deleting:
		if !held.Empty() {
			changed = m.store.EraseRange(r, m.Channel, held)
		}
	case m.Recording:
		changed = m.record(r, now, held, bounced, vel, aux)
	}

	if m.copyTick(now) {
		changed = true
	}
	return changed
}

func (m *Machine) record(r timeline.Range, now int, held, bounced midi.NoteSet, vel *[128]uint8, aux []midi.Event) bool {
	ch := m.Channel
	changed := false

	onsets := held.AndNot(m.recorded)
	onsets.Each(func(n int) {
		if bounced.Has(n) && m.onsetBeat[n] >= 0 {
			if m.store.Retouch(m.onsetBeat[n], ch, n, vel[n]) {
				changed = true
				return
			}
		}
		if m.store.Sustain(r.Start, ch).Has(n) {
			return
		}
		m.store.AppendEvent(r.Start, midi.NoteOn(uint8(ch), uint8(n), vel[n]))
		m.onsetBeat[n] = r.Start
		changed = true
	})
	// a bounce while the note is still held raises the recorded velocity
	bounced.And(held).AndNot(onsets).Each(func(n int) {
		if m.onsetBeat[n] >= 0 && m.store.Retouch(m.onsetBeat[n], ch, n, vel[n]) {
			changed = true
		}
	})
	m.recorded = m.recorded.Or(onsets).And(held)

	for _, e := range aux {
		switch e.Kind {
		case midi.KindPitchBend, midi.KindPressure, midi.KindPolyPressure:
			m.store.AppendEvent(now, e.WithChannel(uint8(ch)))
			changed = true
		}
	}

	if m.store.Append(r, ch, held) {
		changed = true
	}
	return changed
}

// copyTick emits the copy computed for the current beat and computes the next one
func (m *Machine) copyTick(now int) bool {
	if m.copy == nil {
		return false
	}
	changed := false
	if m.ahead.valid && m.ahead.beat == now && !m.ahead.emitted {
		m.Preview = append(m.Preview, m.ahead.events...)
		m.Overlay = m.ahead.overlay
		m.ahead.emitted = true
		changed = len(m.ahead.events) > 0
	}

	dest := timeline.Wrap(now + 1)
	if m.ahead.valid && m.ahead.beat == dest {
		return changed
	}
	if m.fillAhead(dest) {
		changed = true
	}
	return changed
}

// fillAhead reads the source beat for dest and transposes it. While recording the
// result is written to the timeline; otherwise it is kept for preview.
func (m *Machine) fillAhead(dest int) bool {
	cp := m.copy
	src := timeline.Wrap(dest - cp.Shift)

	m.ahead = copyBeat{beat: dest, valid: true, events: m.ahead.events[:0]}
	m.store.EachEvent(src, func(e midi.Event) {
		if e.Kind == midi.KindNoteOn && !cp.Anchored {
			cp.FirstNote = int(e.Note())
			cp.Anchored = true
		}
		if te, ok := e.Transpose(cp.Transpose()); ok {
			m.ahead.events = append(m.ahead.events, te)
		}
	})
	d := cp.Transpose()
	for c := 0; c < timeline.Channels; c++ {
		m.ahead.overlay[c] = m.store.Sustain(src, c).Shift(d)
	}

	if !m.Recording {
		return false
	}

	changed := false
	for _, e := range m.ahead.events {
		if e.Kind == midi.KindNoteOn && m.store.Sustain(dest, int(e.Channel)).Has(int(e.Note())) {
			continue
		}
		m.store.AppendEvent(dest, e)
		changed = true
	}
	for c := 0; c < timeline.Channels; c++ {
		if m.store.Append(timeline.Range{Start: dest, Stop: dest + 1}, c, m.ahead.overlay[c]) {
			changed = true
		}
	}
	m.ahead.events = m.ahead.events[:0]
	m.ahead.overlay = [timeline.Channels]midi.NoteSet{}
	return changed
}
