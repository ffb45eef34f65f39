package sequencer

import "midipush/midi"

// Control surface CC numbers
const (
	CCPowerOff  = 3
	CCMetronome = 9
	CCBPM       = 14
	CCShuttle   = 15
	CCPageLow   = midi.CCUpper // 20-27
	CCPageMask  = 36           // 36-41
	CCArrowA    = 44           // 44 down, 45 up
	CCArrowB    = 46           // 46 down, 47 up
	CCMute      = 48
	CCSave      = 53
	CCScale     = 58
	CCProgram   = 78
	CCVolume    = 79
	CCPlay      = 85
	CCRecord    = 86
	CCNew       = 87
	CCPageHigh  = midi.CCLower // 102-109
	CCDelete    = 118
)

const (
	minOctave     = -3
	maxOctave     = 6
	defaultVolume = 100
)

// Controls is the persistent state set from the control surface
type Controls struct {
	Playing   bool
	Recording bool
	Channel   int
	Octave    int
	BPM       int
	Mute      uint16
	PageMask  uint8
	ScaleMode ScaleMode

	Bank    [16]uint8
	Program [16]uint8
	Volume  [16]uint8

	// ChannelFirst swaps the arrow pairs: CC44/45 step the channel, CC46/47 the octave
	ChannelFirst bool
}

func NewControls(bpm int) Controls {
	c := Controls{BPM: bpm, Octave: 1}
	for i := range c.Volume {
		c.Volume[i] = defaultVolume
	}
	return c
}

// Selector is a page selector button edge
type Selector struct {
	Group int
	Index int
	Down  bool
}

// Command holds the one-shot requests decoded in a pass
type Command struct {
	PowerOff  bool
	Save      bool
	Metronome bool
	Shuttle   int
	NewDown   bool
	NewUp     bool
	Selectors []Selector

	PlayChanged    bool
	RecordChanged  bool
	DeleteToggle   bool // delete mode lives in the machine, which can also end it
	ChannelChanged bool
	OctaveChanged  bool
	SoundChanged   bool // bank, program or volume of the current channel
}

func (c *Command) Reset() {
	*c = Command{Selectors: c.Selectors[:0]}
}

func (c *Command) Any() bool {
	return c.PowerOff || c.Save || c.Metronome || c.Shuttle != 0 || c.NewDown || c.NewUp ||
		len(c.Selectors) > 0 || c.PlayChanged || c.RecordChanged || c.DeleteToggle ||
		c.ChannelChanged || c.OctaveChanged || c.SoundChanged
}

// relative decodes a two's complement encoder value
func relative(val uint8) int {
	if val < 64 {
		return int(val)
	}
	return int(val) - 128
}

// Apply decodes one control change. It reports whether it was a surface control.
func (c *Controls) Apply(cc, val uint8, cmd *Command) bool {
	press := val > 0
	switch {
	case cc >= CCPageLow && cc < CCPageLow+midi.SelectorN:
		cmd.Selectors = append(cmd.Selectors, Selector{Group: GroupLow, Index: int(cc - CCPageLow), Down: press})
		return true
	case cc >= CCPageHigh && cc < CCPageHigh+midi.SelectorN:
		cmd.Selectors = append(cmd.Selectors, Selector{Group: GroupHigh, Index: int(cc - CCPageHigh), Down: press})
		return true
	case cc >= CCPageMask && cc < CCPageMask+6:
		if press {
			c.PageMask ^= 1 << (cc - CCPageMask)
		}
		return true
	}

	switch cc {
	case CCPowerOff:
		cmd.PowerOff = cmd.PowerOff || press
	case CCMetronome:
		cmd.Metronome = cmd.Metronome || press
	case CCBPM:
		c.BPM = clamp(c.BPM+relative(val), MinBPM, MaxBPM)
	case CCShuttle:
		cmd.Shuttle += relative(val)
	case CCArrowA, CCArrowA + 1, CCArrowB, CCArrowB + 1:
		if !press {
			return true
		}
		step := 1
		if cc == CCArrowA || cc == CCArrowB {
			step = -1
		}
		octave := cc < CCArrowB
		if c.ChannelFirst {
			octave = !octave
		}
		if octave {
			if o := clamp(c.Octave+step, minOctave, maxOctave); o != c.Octave {
				c.Octave = o
				cmd.OctaveChanged = true
			}
		} else {
			c.Channel = (c.Channel + step + 16) % 16
			cmd.ChannelChanged = true
		}
	case CCMute:
		if press {
			c.Mute ^= 1 << uint(c.Channel)
		}
	case CCSave:
		cmd.Save = cmd.Save || press
	case CCScale:
		if press {
			c.ScaleMode = c.ScaleMode.Next()
		}
	case CCProgram:
		ch := c.Channel
		p := int(c.Program[ch]) + relative(val)
		bank := int(c.Bank[ch])
		for p > 127 {
			p -= 128
			bank++
		}
		for p < 0 {
			p += 128
			bank--
		}
		c.Program[ch] = uint8(p)
		c.Bank[ch] = uint8(bank & 127)
		cmd.SoundChanged = true
	case CCVolume:
		ch := c.Channel
		c.Volume[ch] = uint8(clamp(int(c.Volume[ch])+relative(val), 0, 127))
		cmd.SoundChanged = true
	case CCPlay:
		if press {
			c.Playing = !c.Playing
			cmd.PlayChanged = true
		}
	case CCRecord:
		if press {
			c.Recording = !c.Recording
			cmd.RecordChanged = true
		}
	case CCNew:
		if press {
			cmd.NewDown = true
		} else {
			cmd.NewUp = true
		}
	case CCDelete:
		cmd.DeleteToggle = cmd.DeleteToggle || press
	default:
		return false
	}
	return true
}

// Muted reports whether channel ch is muted
func (c *Controls) Muted(ch int) bool { return c.Mute&(1<<uint(ch&15)) != 0 }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
