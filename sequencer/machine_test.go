package sequencer

import (
	"testing"
	"time"

	"midipush/midi"
	"midipush/timeline"
)

func velocities(pairs ...int) *[128]uint8 {
	var v [128]uint8
	for i := 0; i+1 < len(pairs); i += 2 {
		v[pairs[i]] = uint8(pairs[i+1])
	}
	return &v
}

func eventsAt(v timeline.View, beat int) []midi.Event {
	var out []midi.Event
	v.EachEvent(beat, func(e midi.Event) { out = append(out, e) })
	return out
}

func TestRecordNoteAtBeat(t *testing.T) {
	store := timeline.New()
	m := NewMachine(store)
	m.SetRecording(true)

	vel := velocities(60, 100)
	m.Step(5, 5, midi.NoteSetOf(60), midi.NoteSet{}, vel, nil)

	evs := eventsAt(store, 5)
	if len(evs) != 1 || evs[0] != midi.NoteOn(0, 60, 100) {
		t.Fatalf("events at 5: %v", evs)
	}
	if !store.Sustain(5, 0).Has(60) {
		t.Fatal("sustain bit not set at 5")
	}

	// released: the clock moves on without further mutation
	for _, step := range [][2]int{{5, 6}, {6, 7}, {7, 8}, {99, 100}} {
		m.Step(step[0], step[1], midi.NoteSet{}, midi.NoteSet{}, vel, nil)
		if !store.Sustain(5, 0).Has(60) {
			t.Errorf("bit 60 at beat 5 lost when clock reached %d", step[1])
		}
	}
	if store.Sustain(6, 0).Has(60) {
		t.Error("released note kept sustaining")
	}
	if store.Events() != 1 {
		t.Errorf("events: %d", store.Events())
	}
}

func TestHeldNoteSustainsAcrossBeats(t *testing.T) {
	store := timeline.New()
	m := NewMachine(store)
	m.SetRecording(true)
	vel := velocities(60, 100)
	held := midi.NoteSetOf(60)

	m.Step(10, 10, held, midi.NoteSet{}, vel, nil)
	for b := 10; b < 15; b++ {
		m.Step(b, b+1, held, midi.NoteSet{}, vel, nil)
	}
	for b := 10; b <= 15; b++ {
		if !store.Sustain(b, 0).Has(60) {
			t.Errorf("beat %d not sustained", b)
		}
	}
	if store.Events() != 1 || !store.HasOnset(10, 0, 60) {
		t.Errorf("want a single onset at 10, have %d events", store.Events())
	}
}

func TestDebouncedStrikeRecordsOnce(t *testing.T) {
	store := timeline.New()
	m := NewMachine(store)
	m.SetRecording(true)
	keys := NewKeys()
	notes := NewNotes()

	t0 := time.Unix(50, 0)
	feed := func(note, vel int, at time.Time) {
		e, _ := keys.Key(note, vel, at)
		notes.Apply(e)
		var bounced midi.NoteSet
		if e.Bounce {
			bounced.Set(e.Note)
		}
		m.Step(20, 20, notes.V, bounced, &notes.Vel, nil)
	}
	feed(60, 40, t0)
	feed(60, 0, t0.Add(10*time.Millisecond))
	feed(60, 90, t0.Add(30*time.Millisecond))

	evs := eventsAt(store, 20)
	if len(evs) != 1 || evs[0].Velocity() != 90 {
		t.Errorf("events at 20: %v", evs)
	}
}

func TestRecordSkipsAlreadySustainedNote(t *testing.T) {
	store := timeline.New()
	store.AppendEvent(0, midi.NoteOn(0, 60, 80))
	store.Append(timeline.Range{Start: 0, Stop: 10}, 0, midi.NoteSetOf(60))

	m := NewMachine(store)
	m.SetRecording(true)
	m.Step(4, 4, midi.NoteSetOf(60, 64), midi.NoteSet{}, velocities(60, 100, 64, 100), nil)

	if store.HasOnset(4, 0, 60) {
		t.Error("duplicate onset written over a sustained note")
	}
	if !store.HasOnset(4, 0, 64) {
		t.Error("new note not written")
	}
}

func TestRecordAuxEvents(t *testing.T) {
	store := timeline.New()
	m := NewMachine(store)
	m.SetRecording(true)
	m.SetChannel(3)
	aux := []midi.Event{midi.PitchBend(0, 9000), midi.Pressure(0, 40), midi.Control(0, 1, 20)}
	m.Step(7, 7, midi.NoteSet{}, midi.NoteSet{}, velocities(), aux)

	evs := eventsAt(store, 7)
	if len(evs) != 2 {
		t.Fatalf("events: %v", evs)
	}
	for _, e := range evs {
		if e.Channel != 3 {
			t.Errorf("aux not moved to the recording channel: %s", e)
		}
	}
}

func TestDeleteWithHeldNotes(t *testing.T) {
	store := timeline.New()
	store.AppendEvent(10, midi.NoteOn(0, 60, 80))
	store.Append(timeline.Range{Start: 10, Stop: 20}, 0, midi.NoteSetOf(60))

	m := NewMachine(store)
	m.SetRecording(true)
	m.SetDeleting(true)
	// delete wins over record
	m.Step(14, 14, midi.NoteSetOf(60), midi.NoteSet{}, velocities(60, 100), nil)

	if store.Sustain(14, 0).Has(60) || store.Sustain(10, 0).Has(60) || store.Sustain(19, 0).Has(60) {
		t.Error("sustain run not erased")
	}
	if store.Tombstones() != 1 {
		t.Errorf("tombstones %d", store.Tombstones())
	}
	m.SetDeleting(false)
	if store.Tombstones() != 0 || store.Events() != 0 {
		t.Error("leaving delete mode did not compact")
	}
}

func TestDeleteWithoutNotesIsNoop(t *testing.T) {
	store := timeline.New()
	store.Append(timeline.Range{Start: 0, Stop: 5}, 0, midi.NoteSetOf(60))
	m := NewMachine(store)
	m.SetDeleting(true)
	if m.Step(0, 3, midi.NoteSet{}, midi.NoteSet{}, velocities(), nil) {
		t.Error("delete without held notes changed the timeline")
	}
}

func TestNewClearsChannelOrEverything(t *testing.T) {
	store := timeline.New()
	store.Append(timeline.Range{Start: 0, Stop: 2}, 0, midi.NoteSetOf(60))
	store.Append(timeline.Range{Start: 0, Stop: 2}, 1, midi.NoteSetOf(60))

	m := NewMachine(store)
	m.SetChannel(1)
	m.NewPressed()
	if store.Active() != 1 {
		t.Errorf("new without delete: active %016b", store.Active())
	}
	if m.NewReleased() {
		t.Error("release after channel clear should do nothing")
	}

	m.SetDeleting(true)
	m.NewPressed()
	if store.Active() != 0 {
		t.Error("new with delete did not clear everything")
	}
	if !m.Deleting {
		t.Error("delete should stay on while New is held")
	}
	m.NewReleased()
	if m.Deleting {
		t.Error("delete not disabled on New release")
	}
}

// copyFixture records note 60 on channel 0 at beats 2-4 with its onset at 2
func copyFixture() *timeline.Store {
	store := timeline.New()
	store.AppendEvent(2, midi.NoteOn(0, 60, 100))
	store.Append(timeline.Range{Start: 2, Stop: 5}, 0, midi.NoteSetOf(60))
	return store
}

func TestArmCopy(t *testing.T) {
	m := NewMachine(copyFixture())
	if !m.ArmCopy(1, 67) {
		t.Fatal("arm failed")
	}
	cp := m.Copy()
	if cp.FirstBeat != 4 || cp.Shift != 21 || cp.FirstNote != 60 || cp.ArmedNote != 67 {
		t.Errorf("copy state %+v", cp)
	}
	if !m.Disarm() || m.Copy() != nil {
		t.Error("disarm")
	}

	empty := NewMachine(timeline.New())
	if empty.ArmCopy(3, 60) || empty.Copy() != nil {
		t.Error("arming on an empty timeline")
	}
}

func TestCopyPreviewDoesNotTouchTimeline(t *testing.T) {
	store := copyFixture()
	m := NewMachine(store)
	m.ArmCopy(1, 67)
	none := midi.NoteSet{}
	vel := velocities()

	// computes beat 23 from source beat 2
	m.Step(21, 22, none, none, vel, nil)
	if len(m.Preview) != 0 {
		t.Errorf("preview emitted early: %v", m.Preview)
	}
	m.Step(22, 23, none, none, vel, nil)
	if len(m.Preview) != 1 || m.Preview[0] != midi.NoteOn(0, 67, 100) {
		t.Errorf("preview at 23: %v", m.Preview)
	}
	if m.Overlay[0] != midi.NoteSetOf(67) {
		t.Errorf("overlay at 23: %v", m.Overlay[0])
	}
	m.Step(23, 24, none, none, vel, nil)
	m.Step(24, 25, none, none, vel, nil)
	if len(m.Preview) != 0 || m.Overlay[0] != midi.NoteSetOf(67) {
		t.Errorf("beat 25: preview %v overlay %v", m.Preview, m.Overlay[0])
	}
	m.Step(25, 26, none, none, vel, nil)
	if !m.Overlay[0].Empty() {
		t.Errorf("overlay past the copied run: %v", m.Overlay[0])
	}

	if store.Events() != 1 || store.Occupied(23) {
		t.Error("preview wrote to the timeline")
	}
}

func TestCopyWhileRecordingWritesTransposed(t *testing.T) {
	store := copyFixture()
	m := NewMachine(store)
	m.SetRecording(true)
	m.ArmCopy(1, 67)
	none := midi.NoteSet{}
	vel := velocities()

	for b := 21; b < 27; b++ {
		m.Step(b, b+1, none, none, vel, nil)
	}
	if !store.HasOnset(23, 0, 67) {
		t.Error("transposed onset missing at 23")
	}
	for b := 23; b <= 25; b++ {
		if !store.Sustain(b, 0).Has(67) {
			t.Errorf("beat %d missing transposed sustain", b)
		}
	}
	if store.Sustain(26, 0).Has(67) {
		t.Error("copied past the source run")
	}
	if len(m.Preview) != 0 || !m.Overlay[0].Empty() {
		t.Error("recording copy should not preview")
	}
}

func TestCopyDropsNotesOutOfRange(t *testing.T) {
	store := timeline.New()
	store.AppendEvent(0, midi.NoteOn(0, 120, 100))
	store.AppendEvent(0, midi.NoteOn(0, 100, 100))
	store.Append(timeline.Range{Start: 0, Stop: 1}, 0, midi.NoteSetOf(100, 120))
	m := NewMachine(store)
	m.ArmCopy(1, 110) // anchor on 100 (first note-on read re-anchors to 120)
	none := midi.NoteSet{}
	for b := 21; b < 25; b++ {
		m.Step(b, b+1, none, none, velocities(), nil)
	}
	cp := m.Copy()
	if !cp.Anchored || cp.FirstNote != 120 {
		t.Errorf("anchor %+v", cp)
	}
	// transpose is 110-120 = -10
	for _, e := range m.Preview {
		if e.Note() != 110 && e.Note() != 90 {
			t.Errorf("unexpected preview note %d", e.Note())
		}
	}
}
