package sequencer

import (
	"testing"

	"midipush/midi"
	"midipush/timeline"
)

func countKind(evs []midi.Event, k midi.Kind) int {
	n := 0
	for _, e := range evs {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func TestStartAndStopResync(t *testing.T) {
	c := NewControls(120)
	c.Program[2] = 33
	p := NewPlayback(-1)
	p.Start(&c)
	out := p.Drain()
	if len(out) != 3*timeline.Channels {
		t.Fatalf("start sent %d messages", len(out))
	}
	if out[6] != midi.Control(2, 0, 0) || out[7] != midi.Program(2, 33) || out[8] != midi.Control(2, 7, 100) {
		t.Errorf("channel 2 sound: %v", out[6:9])
	}

	p.Stop(&c)
	out = p.Drain()
	if len(out) != 2*timeline.Channels || out[0] != midi.Control(0, 123, 0) {
		t.Errorf("stop: %v", out)
	}
}

func TestNoteEndsWithSustainRun(t *testing.T) {
	store := timeline.New()
	store.AppendEvent(4, midi.NoteOn(1, 60, 100))
	store.Append(timeline.Range{Start: 4, Stop: 7}, 1, midi.NoteSetOf(60))

	c := NewControls(120)
	p := NewPlayback(-1)
	p.Start(&c)
	p.Drain()
	var overlay [timeline.Channels]midi.NoteSet

	for beat := 3; beat <= 8; beat++ {
		p.Beat(store, beat, 0)
		p.Release(store, beat, &overlay, 0, midi.NoteSet{})
		out := p.Drain()
		switch beat {
		case 4:
			if len(out) != 1 || out[0] != midi.NoteOn(1, 60, 100) {
				t.Errorf("beat 4: %v", out)
			}
		case 7:
			if len(out) != 1 || out[0] != midi.NoteOff(1, 60) {
				t.Errorf("beat 7: %v", out)
			}
		default:
			if len(out) != 0 {
				t.Errorf("beat %d: %v", beat, out)
			}
		}
	}
}

func TestMutedChannelSilent(t *testing.T) {
	store := timeline.New()
	store.AppendEvent(0, midi.NoteOn(2, 60, 100))
	store.AppendEvent(0, midi.PitchBend(2, 100))
	p := NewPlayback(-1)
	p.Playing = true
	p.Beat(store, 0, 1<<2)
	if len(p.Drain()) != 0 {
		t.Error("muted channel emitted")
	}
	p.Beat(store, 0, 0)
	if out := p.Drain(); len(out) != 2 {
		t.Errorf("unmuted: %v", out)
	}
}

func TestLiveNoteReleasedByKeyUp(t *testing.T) {
	store := timeline.New()
	p := NewPlayback(-1)
	var overlay [timeline.Channels]midi.NoteSet

	p.Live(5, midi.NoteOn(0, 64, 90), 0)
	p.Release(store, 0, &overlay, 5, midi.NoteSetOf(64))
	out := p.Drain()
	if len(out) != 1 || out[0] != midi.NoteOn(5, 64, 90) {
		t.Fatalf("pass-through: %v", out)
	}
	if !p.Sounding(5).Has(64) {
		t.Error("live note not sounding")
	}

	p.Release(store, 0, &overlay, 5, midi.NoteSet{})
	out = p.Drain()
	if len(out) != 1 || out[0] != midi.NoteOff(5, 64) {
		t.Errorf("key up: %v", out)
	}
}

func TestLiveNoteHeldBySustainWhilePlaying(t *testing.T) {
	store := timeline.New()
	store.Append(timeline.Range{Start: 0, Stop: 10}, 0, midi.NoteSetOf(60))
	p := NewPlayback(-1)
	p.Playing = true
	var overlay [timeline.Channels]midi.NoteSet

	p.Live(0, midi.NoteOn(0, 60, 90), 0)
	p.Release(store, 3, &overlay, 0, midi.NoteSet{})
	if countKind(p.Drain(), midi.KindNoteOff) != 0 {
		t.Error("note released while the timeline still sustains it")
	}
	p.Release(store, 10, &overlay, 0, midi.NoteSet{})
	if countKind(p.Drain(), midi.KindNoteOff) != 1 {
		t.Error("note not released after the run")
	}
}

func TestOverlayKeepsPreviewSounding(t *testing.T) {
	store := timeline.New()
	p := NewPlayback(-1)
	var overlay [timeline.Channels]midi.NoteSet
	overlay[4] = midi.NoteSetOf(67)

	p.Preview([]midi.Event{midi.NoteOn(4, 67, 100)}, 0)
	p.Release(store, 0, &overlay, 0, midi.NoteSet{})
	if countKind(p.Drain(), midi.KindNoteOff) != 0 {
		t.Error("preview note cut while in overlay")
	}
	overlay[4] = midi.NoteSet{}
	p.Release(store, 1, &overlay, 0, midi.NoteSet{})
	if out := p.Drain(); len(out) != 1 || out[0] != midi.NoteOff(4, 67) {
		t.Errorf("overlay end: %v", out)
	}
}

func TestMetronome(t *testing.T) {
	store := timeline.New()
	p := NewPlayback(76)
	p.Playing = true

	p.Beat(store, 24, 0)
	if out := p.Drain(); len(out) != 1 || out[0] != midi.NoteOn(MetronomeChannel, 76, 100) {
		t.Errorf("page start: %v", out)
	}
	p.Beat(store, 25, 0)
	if out := p.Drain(); len(out) != 1 || out[0] != midi.NoteOff(MetronomeChannel, 76) {
		t.Errorf("next beat: %v", out)
	}
	p.Beat(store, 30, 0)
	if len(p.Drain()) != 0 {
		t.Error("metronome mid page")
	}

	p.SetMetronome(-1)
	p.Beat(store, 48, 0)
	if len(p.Drain()) != 0 {
		t.Error("disabled metronome clicked")
	}
}

func TestStoppedPlaybackIgnoresTimeline(t *testing.T) {
	store := timeline.New()
	store.AppendEvent(0, midi.NoteOn(0, 60, 100))
	p := NewPlayback(76)
	p.Beat(store, 0, 0)
	if len(p.Drain()) != 0 {
		t.Error("stopped playback emitted")
	}
}
