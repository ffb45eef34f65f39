package sequencer

import (
	"midipush/midi"
	"midipush/timeline"
)

// MetronomeChannel is the General MIDI percussion channel
const MetronomeChannel = 9

const (
	ccBank        = 0
	ccVolume      = 7
	ccAllNotesOff = 123
)

// Playback turns the timeline, the copy preview and live input into synth messages.
// Notes end when they drop out of every source that keeps them pressed.
type Playback struct {
	Playing   bool
	Metronome int // note number, -1 disables

	sounding [timeline.Channels]midi.NoteSet
	metroOn  bool

	out []midi.Event
}

func NewPlayback(metronome int) *Playback {
	return &Playback{Metronome: metronome}
}

// Out returns the messages produced since the last Drain
func (p *Playback) Out() []midi.Event { return p.out }

// Drain hands the pending messages to the caller and resets the buffer
func (p *Playback) Drain() []midi.Event {
	out := p.out
	p.out = nil
	return out
}

func (p *Playback) emit(e midi.Event) { p.out = append(p.out, e) }

// Sounding returns the notes currently on for channel ch
func (p *Playback) Sounding(ch int) midi.NoteSet { return p.sounding[ch&0x0f] }

// Sound sends bank, program and volume for one channel
func (p *Playback) Sound(c *Controls, ch int) {
	p.emit(midi.Control(uint8(ch), ccBank, c.Bank[ch]))
	p.emit(midi.Program(uint8(ch), c.Program[ch]))
	p.emit(midi.Control(uint8(ch), ccVolume, c.Volume[ch]))
}

// Start resyncs every channel's sound before the first note
func (p *Playback) Start(c *Controls) {
	p.Playing = true
	for ch := 0; ch < timeline.Channels; ch++ {
		p.Sound(c, ch)
	}
}

// Stop silences every channel and resends volumes
func (p *Playback) Stop(c *Controls) {
	p.Playing = false
	for ch := 0; ch < timeline.Channels; ch++ {
		p.emit(midi.Control(uint8(ch), ccAllNotesOff, 0))
		p.emit(midi.Control(uint8(ch), ccVolume, c.Volume[ch]))
	}
	p.sounding = [timeline.Channels]midi.NoteSet{}
	p.metroOn = false
}

func (p *Playback) noteOn(e midi.Event, mute uint16) {
	ch := int(e.Channel)
	if mute&(1<<uint(ch)) != 0 {
		return
	}
	if e.Kind == midi.KindNoteOn {
		if p.sounding[ch].Has(int(e.Note())) {
			// retrigger
			p.emit(midi.NoteOff(e.Channel, e.Note()))
		}
		p.sounding[ch].Set(int(e.Note()))
	}
	p.emit(e)
}

// Beat emits the stored events at beat and drives the metronome
func (p *Playback) Beat(v timeline.View, beat int, mute uint16) {
	if !p.Playing {
		return
	}
	if p.metroOn {
		p.emit(midi.NoteOff(MetronomeChannel, uint8(p.Metronome)))
		p.metroOn = false
	}
	v.EachEvent(beat, func(e midi.Event) {
		p.noteOn(e, mute)
	})
	if p.Metronome >= 0 && beat%timeline.BeatsPerPage == 0 {
		p.emit(midi.NoteOn(MetronomeChannel, uint8(p.Metronome), 100))
		p.metroOn = true
	}
}

// Preview emits events from a copy preview
func (p *Playback) Preview(events []midi.Event, mute uint16) {
	for _, e := range events {
		p.noteOn(e, mute)
	}
}

// Live passes a key press or an aux event from the player through on channel ch
func (p *Playback) Live(ch int, e midi.Event, mute uint16) {
	if e.Kind == midi.KindNoteOff {
		return
	}
	p.noteOn(e.WithChannel(uint8(ch)), mute)
}

// SetMetronome picks the metronome note; a negative note turns it off
func (p *Playback) SetMetronome(note int) {
	if p.metroOn && note != p.Metronome {
		p.emit(midi.NoteOff(MetronomeChannel, uint8(p.Metronome)))
		p.metroOn = false
	}
	p.Metronome = note
}

// Release ends every sounding note that nothing presses any more
func (p *Playback) Release(v timeline.View, beat int, overlay *[timeline.Channels]midi.NoteSet, ch int, live midi.NoteSet) {
	for c := 0; c < timeline.Channels; c++ {
		if p.sounding[c].Empty() {
			continue
		}
		pressed := overlay[c]
		if p.Playing {
			pressed = pressed.Or(v.Sustain(beat, c))
		}
		if c == ch {
			pressed = pressed.Or(live)
		}
		off := p.sounding[c].AndNot(pressed)
		off.Each(func(n int) {
			p.emit(midi.NoteOff(uint8(c), uint8(n)))
		})
		p.sounding[c] = p.sounding[c].AndNot(off)
	}
}
