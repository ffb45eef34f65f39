package sequencer

// Page selector groups
const (
	GroupLow  = 0 // CC20-27, page bits 0-2
	GroupHigh = 1 // CC102-109, page bits 3-5
)

const highBits = 0x38

// PageState decodes the two selector rows into a 6-bit page number
type PageState struct {
	Set      uint8
	SetMask  uint8
	KeepMask uint8

	// ArmedNote is the transpose anchor while a copy is armed, -1 otherwise
	ArmedNote  int
	Target     int
	Navigating bool

	down    [2]uint8
	pending bool
}

// PageResult tells the caller what a selector event asks for
type PageResult struct {
	Jump   bool
	Target int
	Arm    bool
	Anchor int // note to transpose copied material onto, set with Arm
	Disarm bool
}

func NewPageState() PageState {
	return PageState{ArmedNote: -1}
}

func (p *PageState) target(cur int) int {
	p.KeepMask = ^p.SetMask & highBits
	return int(p.Set&p.SetMask) | (cur & int(p.KeepMask))
}

// Press handles a selector button going down. held reports whether any note is down,
// lastNote is the most recently pressed one.
func (p *PageState) Press(group, idx, cur int, held bool, lastNote int) PageResult {
	var res PageResult
	if !p.Navigating {
		p.Navigating = true
		p.pending = false
		p.Set, p.SetMask = 0, 0
		if held {
			p.ArmedNote = lastNote
			res.Arm = true
			res.Anchor = lastNote
		} else {
			p.ArmedNote = -1
			res.Disarm = true
		}
	}

	bits := uint8(idx & 7)
	if group == GroupHigh {
		p.Set = p.Set&^highBits | bits<<3
		p.SetMask |= highBits
	} else {
		p.Set = p.Set&^7 | bits
		p.SetMask |= 7
	}
	p.down[group&1] |= 1 << uint(idx&7)
	p.Target = p.target(cur)

	res.Target = p.Target
	return res
}

// Release handles a selector button going up. The page changes once every selector
// is up, unless a copy is armed, in which case it waits for the note release.
func (p *PageState) Release(group, idx, cur int) PageResult {
	p.down[group&1] &^= 1 << uint(idx&7)
	if !p.Navigating || p.down[0] != 0 || p.down[1] != 0 {
		return PageResult{}
	}
	if p.ArmedNote >= 0 {
		p.pending = true
		return PageResult{}
	}
	return p.finish(cur)
}

// NotesReleased is called when the last held note goes up
func (p *PageState) NotesReleased(cur int) PageResult {
	if p.ArmedNote < 0 {
		return PageResult{}
	}
	p.ArmedNote = -1
	if p.pending {
		res := p.finish(cur)
		res.Disarm = true
		return res
	}
	return PageResult{Disarm: true}
}

func (p *PageState) finish(cur int) PageResult {
	p.Navigating = false
	p.pending = false
	p.Target = p.target(cur)
	return PageResult{Jump: true, Target: p.Target}
}
