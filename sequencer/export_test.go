package sequencer

import (
	"bytes"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"midipush/midi"
	"midipush/timeline"
)

type noteAt struct {
	tick uint32
	on   bool
	ch   uint8
	key  uint8
}

func readNotes(t *testing.T, data []byte) (*smf.SMF, []noteAt) {
	t.Helper()
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Tracks) != 1 {
		t.Fatalf("%d tracks", len(s.Tracks))
	}
	var notes []noteAt
	var abs uint32
	for _, ev := range s.Tracks[0] {
		abs += ev.Delta
		var ch, key, vel uint8
		msg := gomidi.Message(ev.Message)
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			notes = append(notes, noteAt{abs, true, ch, key})
		case msg.GetNoteEnd(&ch, &key):
			notes = append(notes, noteAt{abs, false, ch, key})
		}
	}
	return s, notes
}

func TestExportTimeline(t *testing.T) {
	store := timeline.New()
	store.AppendEvent(4, midi.NoteOn(1, 60, 100))
	store.Append(timeline.Range{Start: 4, Stop: 7}, 1, midi.NoteSetOf(60))
	store.AppendEvent(1535, midi.NoteOn(3, 40, 90))
	store.Append(timeline.Range{Start: 1535, Stop: 1536}, 3, midi.NoteSetOf(40))
	store.AppendEvent(10, midi.NoteOn(2, 70, 90))
	store.Append(timeline.Range{Start: 10, Stop: 11}, 2, midi.NoteSetOf(70))

	st := TaskState{BPM: 100, Mute: 1 << 2}
	var buf bytes.Buffer
	if err := Export(&buf, store, st); err != nil {
		t.Fatal(err)
	}

	s, notes := readNotes(t, buf.Bytes())
	if tf, ok := s.TimeFormat.(smf.MetricTicks); !ok || tf != 24 {
		t.Errorf("time format %v", s.TimeFormat)
	}
	if tc := s.TempoChanges(); len(tc) == 0 || tc[0].BPM != 100 {
		t.Errorf("tempo %v", tc)
	}

	want := []noteAt{
		{4, true, 1, 60},
		{7, false, 1, 60},
		{1535, true, 3, 40},
		{1536, false, 3, 40},
	}
	if len(notes) != len(want) {
		t.Fatalf("notes %v, want %v", notes, want)
	}
	for i := range want {
		if notes[i] != want[i] {
			t.Errorf("note %d: %v, want %v", i, notes[i], want[i])
		}
	}
}

func TestExportEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, timeline.New(), TaskState{BPM: 120}); err != nil {
		t.Fatal(err)
	}
	_, notes := readNotes(t, buf.Bytes())
	if len(notes) != 0 {
		t.Errorf("empty timeline exported notes: %v", notes)
	}
}
