package sequencer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"midipush/midi"
	"midipush/theme"
	"midipush/timeline"
)

// SelfTests lists the names RunSelfTest accepts
var SelfTests = []string{"clock", "leds", "export", "scale"}

var ErrUnknownTest = errors.New("unknown self test")

// SelfTestEnv is what a self test may use. Pads and ExportPath are optional.
type SelfTestEnv struct {
	Out        io.Writer
	Pads       midi.Controller
	Palette    *theme.Palette
	ExportPath string
}

func RunSelfTest(ctx context.Context, name string, env SelfTestEnv) error {
	if env.Out == nil {
		env.Out = os.Stdout
	}
	if env.Palette == nil {
		env.Palette = theme.Default()
	}
	switch name {
	case "clock":
		return testClock(ctx, env.Out)
	case "leds":
		return testLEDs(ctx, env)
	case "export":
		return testExport(env)
	case "scale":
		return testScale(env.Out)
	}
	return fmt.Errorf("%w %q (have %v)", ErrUnknownTest, name, SelfTests)
}

// testClock runs the tempo clock against the wall clock and reports drift
func testClock(ctx context.Context, w io.Writer) error {
	const bpm, ticks = 125, 240
	c := NewClock(bpm)
	start := time.Now()
	c.Reset(start)
	var worst time.Duration
	prev := start
	for n := 0; n < ticks; {
		now := time.Now()
		if c.Due(now) {
			if late := now.Sub(prev) - c.Interval(); late > worst {
				worst = late
			}
			prev = now
			n++
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.Until(now)):
		}
	}
	elapsed := time.Since(start)
	want := time.Duration(ticks) * c.Interval()
	fmt.Fprintf(w, "clock: %d ticks at %d bpm in %v (ideal %v), worst late tick %v\n", ticks, bpm, elapsed, want, worst)
	if drift := elapsed - want; drift > want/20 || drift < -want/20 {
		return fmt.Errorf("clock drift %v over %v", drift, want)
	}
	return nil
}

// testLEDs sweeps the palette across the pad grid
func testLEDs(ctx context.Context, env SelfTestEnv) error {
	if env.Pads == nil {
		return errors.New("leds: no pad controller connected")
	}
	const frames = 64
	for f := 0; f < frames; f++ {
		updates := make([]midi.LEDUpdate, 0, midi.GridRows*midi.GridCols)
		for r := 0; r < midi.GridRows; r++ {
			for c := 0; c < midi.GridCols; c++ {
				pos := float64((r*midi.GridCols+c+f)%frames) / frames
				updates = append(updates, midi.LEDUpdate{Row: r, Col: c, Color: env.Palette.Lookup(pos)})
			}
		}
		if err := env.Pads.SetLEDBatch(updates); err != nil {
			return fmt.Errorf("leds: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(30 * time.Millisecond):
		}
	}
	blank := Frame{}
	if err := env.Pads.SetLEDBatch(blank.LEDs()); err != nil {
		return fmt.Errorf("leds: %w", err)
	}
	fmt.Fprintf(env.Out, "leds: %d frames sent to %s\n", frames, env.Pads.ID())
	return nil
}

// testExport records an arpeggio through the engine with external ticks, exports it
// and reads the file back
func testExport(env SelfTestEnv) error {
	e, err := NewEngine(timeline.New(), Options{Metronome: -1, Palette: env.Palette})
	if err != nil {
		return err
	}
	t := time.Now()
	send := func(msg gomidi.Message) {
		t = t.Add(time.Second)
		e.Handle(midi.Message{Source: midi.SourceKeys, Msg: msg, Time: t})
	}
	surface := func(cc uint8) {
		for _, v := range []uint8{127, 0} {
			t = t.Add(time.Second)
			e.Handle(midi.Message{Source: midi.SourceUI, Msg: gomidi.ControlChange(0, cc, v), Time: t})
		}
	}

	surface(CCRecord)
	surface(CCPlay)
	arp := []uint8{60, 64, 67, 72}
	for i := 0; i < 16; i++ {
		n := arp[i%len(arp)]
		send(gomidi.NoteOn(0, n, 100))
		for s := 0; s < 5; s++ {
			e.Step()
		}
		send(gomidi.NoteOff(0, n))
		e.Step()
	}
	surface(CCRecord)

	var buf bytes.Buffer
	if err := Export(&buf, e.View(), e.State()); err != nil {
		return err
	}
	s, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("export: read back: %w", err)
	}
	ons := 0
	for _, ev := range s.Tracks[0] {
		var ch, key, vel uint8
		if gomidi.Message(ev.Message).GetNoteStart(&ch, &key, &vel) {
			ons++
		}
	}
	fmt.Fprintf(env.Out, "export: %d bytes, %d note-ons\n", buf.Len(), ons)
	if ons != 16 {
		return fmt.Errorf("export: %d note-ons, want 16", ons)
	}
	if env.ExportPath != "" {
		if err := os.WriteFile(env.ExportPath, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Fprintf(env.Out, "export: wrote %s\n", env.ExportPath)
	}
	return nil
}

// testScale plays major triads into the inference; each should name its own root
func testScale(w io.Writer) error {
	prog := []struct {
		chord []int
		root  int
	}{
		{[]int{60, 64, 67}, 0},
		{[]int{65, 69, 72}, 5},
		{[]int{67, 71, 74}, 7},
		{[]int{62, 66, 69, 74}, 2},
		{[]int{69, 73, 76}, 9},
	}
	s := Scale{Mode: ScaleInfer}
	var h History
	for _, p := range prog {
		for _, n := range p.chord {
			h.Push(KeyEvent{Note: n, Velocity: 100})
		}
		s.Observe(&h)
		fmt.Fprintf(w, "scale: %v -> %s\n", p.chord, s)
		if s.Root != p.root {
			return fmt.Errorf("scale: %v inferred %s, want %s", p.chord, s, noteNames[p.root])
		}
	}
	return nil
}
