package sequencer

import (
	"fmt"
	"io"
	"os"

	"gitlab.com/gomidi/midi/v2/smf"

	"midipush/midi"
	"midipush/timeline"
)

// ExportResolution is one beat per tick, 24 ticks per quarter note
const ExportResolution = smf.MetricTicks(timeline.BeatsPerPage)

// Export renders the whole timeline as a format 0 standard MIDI file. A fresh
// playback runs over every beat so the file holds exactly what would be heard,
// including note-offs where sustain runs end.
func Export(w io.Writer, v timeline.View, st TaskState) error {
	c := NewControls(st.BPM)
	c.Mute = st.Mute
	c.Bank, c.Program, c.Volume = st.Bank, st.Program, st.Volume

	var none [timeline.Channels]midi.NoteSet
	p := NewPlayback(-1)

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(float64(c.BPM)))
	delta := uint32(0)
	flush := func() {
		for _, e := range p.Drain() {
			tr.Add(delta, e.Message())
			delta = 0
		}
	}

	p.Start(&c)
	flush()
	for beat := 0; beat < timeline.Beats; beat++ {
		p.Beat(v, beat, c.Mute)
		p.Release(v, beat, &none, -1, midi.NoteSet{})
		flush()
		delta++
	}
	// whatever still sounds at the loop point ends here
	p.Playing = false
	p.Release(v, 0, &none, -1, midi.NoteSet{})
	flush()
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = ExportResolution
	if err := s.Add(tr); err != nil {
		return fmt.Errorf("add track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("write smf: %w", err)
	}
	return nil
}

// ExportFile writes the engine's timeline to path
func ExportFile(path string, e *Engine) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := Export(f, e.View(), e.State()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
