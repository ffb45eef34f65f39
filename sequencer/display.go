package sequencer

import (
	"fmt"

	"midipush/midi"
	"midipush/theme"
	"midipush/timeline"
)

// Frame is one rendering of the controller's LEDs
type Frame struct {
	Pads  [midi.GridRows][midi.GridCols][3]uint8
	Upper [midi.SelectorN][3]uint8
	Lower [midi.SelectorN][3]uint8
	Text  string
}

// LEDs flattens the frame into updates for every LED, pads first
func (f *Frame) LEDs() []midi.LEDUpdate {
	out := make([]midi.LEDUpdate, 0, midi.GridRows*midi.GridCols+2*midi.SelectorN)
	for r := 0; r < midi.GridRows; r++ {
		for c := 0; c < midi.GridCols; c++ {
			out = append(out, midi.LEDUpdate{Row: r, Col: c, Color: f.Pads[r][c]})
		}
	}
	for c := 0; c < midi.SelectorN; c++ {
		out = append(out, midi.LEDUpdate{Row: midi.RowUpper, Col: c, Color: f.Upper[c]})
		out = append(out, midi.LEDUpdate{Row: midi.RowLower, Col: c, Color: f.Lower[c]})
	}
	return out
}

var (
	colorHeld   = [3]uint8{255, 255, 255}
	colorRoot   = [3]uint8{60, 60, 160}
	colorScale  = [3]uint8{14, 14, 40}
	colorOctave = [3]uint8{24, 24, 24}
	colorRecord = [3]uint8{255, 0, 0}
	colorDelete = [3]uint8{255, 120, 0}
	colorPlay   = [3]uint8{0, 255, 0}
	colorIdle   = [3]uint8{90, 90, 90}
)

// DisplayInput is everything the display reads for one frame
type DisplayInput struct {
	View     timeline.View
	Beat     int
	Channel  int
	Octave   int
	Held     midi.NoteSet
	Overlay  *[timeline.Channels]midi.NoteSet
	Scale    Scale
	Controls *Controls
	Deleting bool
	Page     *PageState
}

// Display renders frames using the palette for channel colours
type Display struct {
	palette *theme.Palette
}

func NewDisplay(p *theme.Palette) *Display {
	return &Display{palette: p}
}

// ChannelColor is the palette colour for channel ch
func (d *Display) ChannelColor(ch int) [3]uint8 {
	return d.palette.Lookup(float64(ch&0x0f) / float64(timeline.Channels))
}

func dim(c [3]uint8) [3]uint8 {
	return [3]uint8{c[0] / 4, c[1] / 4, c[2] / 4}
}

// Render builds the frame for in
func (d *Display) Render(in DisplayInput) Frame {
	var f Frame
	ch := in.Channel
	sustained := in.View.Sustain(in.Beat, ch)
	chColor := d.ChannelColor(ch)

	for r := 0; r < midi.GridRows; r++ {
		for c := 0; c < midi.GridCols; c++ {
			note, ok := PadNote(midi.PadID(r, c), in.Octave)
			if !ok {
				continue
			}
			var col [3]uint8
			switch {
			case in.Held.Has(note):
				col = colorHeld
			case sustained.Has(note):
				col = chColor
			case in.Overlay != nil && in.Overlay[ch].Has(note):
				col = dim(chColor)
			case in.Scale.Mode != ScaleOff && note%12 == in.Scale.Root:
				col = colorRoot
			case in.Scale.Mode != ScaleOff && in.Scale.InScale(note):
				col = colorScale
			case in.Scale.Mode == ScaleOff && note%12 == 0:
				col = colorOctave
			}
			f.Pads[r][c] = col
		}
	}

	page := timeline.Page(in.Beat)
	mode := colorIdle
	switch {
	case in.Deleting:
		mode = colorDelete
	case in.Controls.Recording:
		mode = colorRecord
	case in.Controls.Playing:
		mode = colorPlay
	}
	f.Upper[page&7] = mode
	f.Lower[page>>3] = mode
	if in.Page != nil && in.Page.Navigating {
		t := in.Page.Target
		f.Upper[t&7] = colorHeld
		f.Lower[t>>3] = colorHeld
	}

	f.Text = fmt.Sprintf("%02d.%02d ch%-2d %s", page, in.Beat%timeline.BeatsPerPage, ch+1, in.Scale)
	return f
}
