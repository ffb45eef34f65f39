package sequencer

import "testing"

func TestRelativeEncoder(t *testing.T) {
	c := NewControls(120)
	var cmd Command
	c.Apply(CCBPM, 3, &cmd)
	c.Apply(CCBPM, 127, &cmd) // -1
	if c.BPM != 122 {
		t.Errorf("bpm %d, want 122", c.BPM)
	}
	c.Apply(CCBPM, 64, &cmd) // -64
	c.Apply(CCBPM, 64, &cmd)
	if c.BPM != MinBPM {
		t.Errorf("bpm not clamped: %d", c.BPM)
	}
	c.Apply(CCShuttle, 126, &cmd)
	if cmd.Shuttle != -2 {
		t.Errorf("shuttle %d", cmd.Shuttle)
	}
}

func TestArrowLayouts(t *testing.T) {
	c := NewControls(120)
	var cmd Command
	c.Apply(CCArrowA+1, 127, &cmd)
	if c.Octave != 2 || !cmd.OctaveChanged {
		t.Errorf("octave-first: octave %d", c.Octave)
	}
	c.Apply(CCArrowB, 127, &cmd)
	if c.Channel != 15 || !cmd.ChannelChanged {
		t.Errorf("channel wraps down: %d", c.Channel)
	}
	c.Apply(CCArrowB, 0, &cmd) // release does nothing
	if c.Channel != 15 {
		t.Error("release stepped the channel")
	}

	c = NewControls(120)
	c.ChannelFirst = true
	cmd.Reset()
	c.Apply(CCArrowA+1, 127, &cmd)
	if c.Channel != 1 || c.Octave != 1 {
		t.Errorf("channel-first: channel %d octave %d", c.Channel, c.Octave)
	}
	for i := 0; i < 10; i++ {
		c.Apply(CCArrowB+1, 127, &cmd)
	}
	if c.Octave != maxOctave {
		t.Errorf("octave not clamped: %d", c.Octave)
	}
}

func TestProgramWrapsIntoBank(t *testing.T) {
	c := NewControls(120)
	c.Channel = 3
	var cmd Command
	c.Apply(CCProgram, 127, &cmd) // -1 from 0
	if c.Program[3] != 127 || c.Bank[3] != 127 {
		t.Errorf("down: program %d bank %d", c.Program[3], c.Bank[3])
	}
	c.Apply(CCProgram, 2, &cmd)
	if c.Program[3] != 1 || c.Bank[3] != 0 {
		t.Errorf("up: program %d bank %d", c.Program[3], c.Bank[3])
	}
	if !cmd.SoundChanged {
		t.Error("sound change not flagged")
	}
	c.Apply(CCVolume, 60, &cmd)
	if c.Volume[3] != 127 {
		t.Errorf("volume not clamped: %d", c.Volume[3])
	}
}

func TestToggles(t *testing.T) {
	c := NewControls(120)
	var cmd Command
	for _, cc := range []uint8{CCPlay, CCRecord, CCDelete, CCMute, CCScale} {
		c.Apply(cc, 127, &cmd)
		c.Apply(cc, 0, &cmd)
	}
	if !c.Playing || !c.Recording || !c.Muted(0) || c.ScaleMode != ScaleInfer {
		t.Errorf("toggles: %+v", c)
	}
	if !cmd.PlayChanged || !cmd.RecordChanged || !cmd.DeleteToggle {
		t.Error("change flags")
	}
}

func TestPageButtonsAndMask(t *testing.T) {
	c := NewControls(120)
	var cmd Command
	c.Apply(CCPageLow+2, 127, &cmd)
	c.Apply(CCPageHigh+7, 0, &cmd)
	want := []Selector{{GroupLow, 2, true}, {GroupHigh, 7, false}}
	if len(cmd.Selectors) != 2 || cmd.Selectors[0] != want[0] || cmd.Selectors[1] != want[1] {
		t.Errorf("selectors: %+v", cmd.Selectors)
	}
	c.Apply(CCPageMask+5, 127, &cmd)
	c.Apply(CCPageMask, 127, &cmd)
	if c.PageMask != 0b100001 {
		t.Errorf("mask %06b", c.PageMask)
	}
	c.Apply(CCPageMask, 127, &cmd)
	if c.PageMask != 0b100000 {
		t.Errorf("mask toggle %06b", c.PageMask)
	}
}

func TestOneShots(t *testing.T) {
	c := NewControls(120)
	var cmd Command
	if c.Apply(1, 64, &cmd) {
		t.Error("mod wheel decoded as a surface control")
	}
	c.Apply(CCNew, 127, &cmd)
	c.Apply(CCSave, 127, &cmd)
	c.Apply(CCMetronome, 127, &cmd)
	c.Apply(CCPowerOff, 127, &cmd)
	if !cmd.NewDown || !cmd.Save || !cmd.Metronome || !cmd.PowerOff || !cmd.Any() {
		t.Errorf("one shots: %+v", cmd)
	}
	cmd.Reset()
	if cmd.Any() {
		t.Error("reset left commands")
	}
	c.Apply(CCNew, 0, &cmd)
	if !cmd.NewUp {
		t.Error("new release")
	}
}
