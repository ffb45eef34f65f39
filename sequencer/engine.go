package sequencer

import (
	"time"

	"midipush/debug"
	"midipush/graph"
	"midipush/midi"
	"midipush/theme"
	"midipush/timeline"
)

// Options configures a new Engine
type Options struct {
	BPM          int
	Curve        Curve
	Threshold    int
	Debounce     time.Duration
	Metronome    int // note number, -1 disables
	ChannelFirst bool
	Palette      *theme.Palette
}

// Result is what one pass asks of the caller
type Result struct {
	Out     []midi.Event // synth messages in order
	Changed bool         // the timeline was mutated
	Stop    bool
	Save    bool
	Display bool // the LED frame changed
}

// Position is the clock: the beat before the last move and the current one
type Position struct {
	Then, Now int
}

// keyBatch is the key input decoded in one pass
type keyBatch struct {
	Events  []KeyEvent
	Aux     []midi.Event
	Bounced midi.NoteSet
	Onset   bool // a fresh (non-bounce) strike arrived
	History *History
}

// Engine holds every component and the graph that evaluates them. It is owned by a
// single goroutine; Handle, Tick and Step each run one pass.
type Engine struct {
	g *graph.Graph

	inputNode, tickNode, controlsNode, displayNode *graph.Node

	inputCell    *graph.Cell[midi.Message]
	tickCell     *graph.Cell[int]
	controlsCell *graph.Cell[Controls]
	cmdCell      *graph.Cell[Command]
	keysCell     *graph.Cell[keyBatch]
	notesCell    *graph.Cell[Notes]
	scaleCell    *graph.Cell[Scale]
	pageCell     *graph.Cell[PageResult]
	navCell      *graph.Cell[PageState]
	posCell      *graph.Cell[Position]
	genCell      *graph.Cell[uint64]
	frameCell    *graph.Cell[Frame]

	in        graph.Dep[midi.Message]
	tick      graph.Dep[int]
	ctl       graph.Dep[Controls]
	cmd       graph.Dep[Command]
	keyDep    graph.Dep[keyBatch]
	noteDep   graph.Dep[Notes]
	scaleDep  graph.Dep[Scale]
	pageDep   graph.Dep[PageResult]
	navDep    graph.Dep[PageState]
	pos       graph.Dep[Position]
	gen       graph.Dep[uint64]
	curPos    graph.Peek[Position]
	lastPos   graph.Last[Position]
	lastNotes graph.Last[Notes]
	lastFrame graph.Last[Frame]

	// state owned by the nodes
	controls Controls
	command  Command
	keys     *Keys
	batch    keyBatch
	notes    Notes
	scale    Scale
	page     PageState
	clock    *Clock
	store    *timeline.Store
	machine  *Machine
	playback *Playback
	display  *Display
	changes  uint64
	ticks    int
}

// NewEngine builds the component graph around store
func NewEngine(store *timeline.Store, opt Options) (*Engine, error) {
	if opt.BPM == 0 {
		opt.BPM = DefaultBPM
	}
	if opt.Debounce == 0 {
		opt.Debounce = DefaultDebounce
	}
	if opt.Palette == nil {
		opt.Palette = theme.Default()
	}
	e := &Engine{
		g:        graph.New(),
		keys:     NewKeys(),
		notes:    NewNotes(),
		page:     NewPageState(),
		clock:    NewClock(opt.BPM),
		store:    store,
		machine:  NewMachine(store),
		playback: NewPlayback(opt.Metronome),
		display:  NewDisplay(opt.Palette),
	}
	e.controls = NewControls(e.clock.BPM())
	e.controls.ChannelFirst = opt.ChannelFirst
	e.keys.Octave = e.controls.Octave
	e.keys.Curve = opt.Curve
	e.keys.Threshold = opt.Threshold
	e.keys.Debounce = opt.Debounce

	if err := e.wire(); err != nil {
		return nil, err
	}
	debug.Log("engine", "graph order %v", e.g.Order())
	return e, nil
}

func (e *Engine) wire() error {
	g := e.g
	e.inputNode = g.Source("input")
	e.tickNode = g.Source("tick")
	e.controlsNode = g.Node("controls", e.evalControls)
	keys := g.Node("keys", e.evalKeys)
	notes := g.Node("notes", e.evalNotes)
	scale := g.Node("scale", e.evalScale)
	page := g.Node("page", e.evalPage)
	clock := g.Node("clock", e.evalClock)
	machine := g.Node("machine", e.evalMachine)
	playback := g.Node("playback", e.evalPlayback)
	e.displayNode = g.Node("display", e.evalDisplay)
	display := e.displayNode

	e.inputCell = graph.NewCell(g, e.inputNode, midi.Message{})
	e.tickCell = graph.NewCell(g, e.tickNode, 0)
	e.controlsCell = graph.NewCell(g, e.controlsNode, e.controls)
	e.cmdCell = graph.NewCell(g, e.controlsNode, Command{})
	e.keysCell = graph.NewCell(g, keys, keyBatch{History: e.keys.Merged()})
	e.notesCell = graph.NewCell(g, notes, e.notes)
	e.scaleCell = graph.NewCell(g, scale, e.scale)
	e.pageCell = graph.NewCell(g, page, PageResult{})
	e.navCell = graph.NewCell(g, page, e.page)
	e.posCell = graph.NewCell(g, clock, Position{})
	e.genCell = graph.NewCell(g, machine, uint64(0))
	e.frameCell = graph.NewCell(g, display, Frame{})

	e.in = graph.Watch(e.controlsNode, e.inputCell)
	graph.Watch(keys, e.inputCell)
	e.tick = graph.Watch(clock, e.tickCell)

	for _, n := range []*graph.Node{keys, notes, scale, page, clock, machine, playback, display} {
		e.ctl = graph.Watch(n, e.controlsCell)
		e.cmd = graph.Watch(n, e.cmdCell)
	}
	for _, n := range []*graph.Node{notes, scale, machine, playback} {
		e.keyDep = graph.Watch(n, e.keysCell)
	}
	for _, n := range []*graph.Node{page, machine, playback, display} {
		e.noteDep = graph.Watch(n, e.notesCell)
	}
	for _, n := range []*graph.Node{machine, playback, display} {
		e.scaleDep = graph.Watch(n, e.scaleCell)
		e.pos = graph.Watch(n, e.posCell)
	}
	e.pageDep = graph.Watch(clock, e.pageCell)
	graph.Watch(machine, e.pageCell)
	e.navDep = graph.Watch(display, e.navCell)
	e.gen = graph.Watch(playback, e.genCell)
	graph.Watch(display, e.genCell)

	// page needs the current page but must not run on every tick
	e.curPos = graph.PeekAt(e.posCell)
	e.lastPos = graph.Committed(e.posCell)
	e.lastNotes = graph.Committed(e.notesCell)
	e.lastFrame = graph.Committed(e.frameCell)

	return g.Seal()
}

func (e *Engine) evalControls() bool {
	e.command.Reset()
	msg := e.in.Get()
	if msg.Source == midi.SourceKeys || msg.Msg == nil {
		return false
	}
	var ch, cc, val uint8
	if !msg.Msg.GetControlChange(&ch, &cc, &val) {
		return false
	}
	before := e.controls
	if !e.controls.Apply(cc, val, &e.command) {
		return false
	}
	e.controlsCell.Set(e.controls)
	e.cmdCell.Set(e.command)
	return e.command.Any() || e.controls != before
}

func (e *Engine) evalKeys() bool {
	if !e.in.Fired() {
		return false
	}
	msg := e.in.Get()
	ev, ok := midi.FromMessage(msg.Msg)
	if !ok {
		return false
	}
	b := keyBatch{Events: e.batch.Events[:0], Aux: e.batch.Aux[:0], History: e.keys.Merged()}
	e.keys.Octave = e.ctl.Get().Octave

	switch ev.Kind {
	case midi.KindNoteOn, midi.KindNoteOff:
		vel := int(ev.Velocity())
		if ev.Kind == midi.KindNoteOff {
			vel = 0
		}
		var ke KeyEvent
		if msg.Source == midi.SourceKeys {
			ke, ok = e.keys.Key(int(ev.Note()), vel, msg.Time)
		} else {
			ke, ok = e.keys.Pad(ev.Note(), vel, msg.Time)
		}
		if !ok {
			return false
		}
		b.Events = append(b.Events, ke)
		if ke.Bounce {
			b.Bounced.Set(ke.Note)
		} else if ke.On() {
			b.Onset = true
		}
	case midi.KindProgram:
		return false
	default:
		if msg.Source != midi.SourceKeys {
			return false
		}
		b.Aux = append(b.Aux, ev)
	}
	e.batch = b
	e.keysCell.Set(b)
	return true
}

func (e *Engine) evalNotes() bool {
	changed := false
	if e.cmd.Fired() && e.cmd.Get().OctaveChanged {
		changed = e.notes.Flush()
	}
	if e.keyDep.Fired() {
		for _, ke := range e.keyDep.Get().Events {
			if e.notes.Apply(ke) {
				changed = true
			}
		}
	}
	e.notesCell.Set(e.notes)
	return changed
}

func (e *Engine) evalScale() bool {
	changed := false
	if mode := e.ctl.Get().ScaleMode; mode != e.scale.Mode {
		e.scale.Mode = mode
		changed = true
	}
	if e.keyDep.Fired() {
		if b := e.keyDep.Get(); b.Onset && e.scale.Observe(b.History) {
			debug.Log("scale", "root %s", e.scale)
			changed = true
		}
	}
	e.scaleCell.Set(e.scale)
	return changed
}

func mergePage(a, b PageResult) PageResult {
	if b.Jump {
		a.Jump, a.Target = true, b.Target
	}
	if b.Arm {
		a.Arm, a.Target, a.Anchor = true, b.Target, b.Anchor
	}
	a.Disarm = a.Disarm || b.Disarm
	return a
}

func (e *Engine) evalPage() bool {
	before := e.page
	var res PageResult
	cur := timeline.Page(e.curPos.Get().Now)
	n := e.noteDep.Get()

	if e.cmd.Fired() {
		for _, s := range e.cmd.Get().Selectors {
			if s.Down {
				res = mergePage(res, e.page.Press(s.Group, s.Index, cur, n.Held(), n.Last))
			} else {
				res = mergePage(res, e.page.Release(s.Group, s.Index, cur))
			}
		}
	}
	if e.noteDep.Fired() && e.lastNotes.Get().Held() && !n.Held() {
		res = mergePage(res, e.page.NotesReleased(cur))
	}
	e.pageCell.Set(res)
	e.navCell.Set(e.page)
	return res != (PageResult{}) || e.page != before
}

func (e *Engine) evalClock() bool {
	prev := e.lastPos.Get().Now
	pos := Position{Then: prev, Now: prev}
	ctl := e.ctl.Get()
	if e.cmd.Fired() {
		e.clock.SetBPM(ctl.BPM)
	}
	if e.tick.Fired() {
		pos.Now = Advance(pos.Now, ctl.PageMask)
		if pos.Now != timeline.Wrap(prev+1) {
			// masked pages are skipped, not swept
			pos.Then = timeline.Wrap(pos.Now - 1)
		}
	}
	if e.cmd.Fired() {
		if s := e.cmd.Get().Shuttle; s != 0 {
			pos.Now = Shuttle(pos.Now, s)
		}
	}
	if e.pageDep.Fired() {
		if r := e.pageDep.Get(); r.Jump {
			// a jump teleports; nothing is swept on the way
			pos.Now = Jump(pos.Now, r.Target)
			pos.Then = pos.Now
		}
	}
	e.posCell.Set(pos)
	return pos.Now != prev || e.tick.Fired()
}

func (e *Engine) evalMachine() bool {
	m := e.machine
	ctl := e.ctl.Get()
	changed := false

	if e.cmd.Fired() {
		cmd := e.cmd.Get()
		if cmd.ChannelChanged {
			m.SetChannel(ctl.Channel)
		}
		if cmd.RecordChanged {
			m.SetRecording(ctl.Recording)
		}
		if cmd.DeleteToggle && m.SetDeleting(!m.Deleting) {
			changed = true
		}
		if cmd.NewDown && m.NewPressed() {
			changed = true
		}
		if cmd.NewUp && m.NewReleased() {
			changed = true
		}
	}
	if e.pageDep.Fired() {
		r := e.pageDep.Get()
		if r.Disarm {
			m.Disarm()
		}
		if r.Arm {
			m.ArmCopy(r.Target, r.Anchor)
		}
	}

	pos := e.pos.Get()
	if !e.pos.Fired() {
		pos.Then = pos.Now
	}
	n := e.noteDep.Get()
	var bounced midi.NoteSet
	var aux []midi.Event
	if e.keyDep.Fired() {
		b := e.keyDep.Get()
		bounced, aux = b.Bounced, b.Aux
	}
	held := e.scaleDep.Get().Filter(n.V)
	if m.Step(pos.Then, pos.Now, held, bounced, &n.Vel, aux) {
		changed = true
	}
	if changed {
		e.changes++
	}
	e.genCell.Set(e.changes)
	return true
}

func (e *Engine) evalPlayback() bool {
	p := e.playback
	ctl := e.ctl.Get()
	n := e.noteDep.Get()
	sc := e.scaleDep.Get()
	pos := e.pos.Get()
	view := e.machine.View()

	if e.cmd.Fired() {
		cmd := e.cmd.Get()
		if cmd.PlayChanged {
			if ctl.Playing {
				p.Start(&ctl)
				e.clock.Restart()
			} else {
				p.Stop(&ctl)
			}
		}
		if cmd.SoundChanged {
			p.Sound(&ctl, ctl.Channel)
		}
		if cmd.Metronome {
			if n.Held() {
				p.SetMetronome(n.Last)
			} else {
				p.SetMetronome(-1)
			}
		}
	}
	if e.pos.Fired() {
		p.Beat(view, pos.Now, ctl.Mute)
	}
	p.Preview(e.machine.Preview, ctl.Mute)
	if e.keyDep.Fired() {
		b := e.keyDep.Get()
		for _, ke := range b.Events {
			if ke.On() && sc.Allows(ke.Note) {
				p.Live(ctl.Channel, midi.NoteOn(0, uint8(ke.Note), uint8(ke.Velocity)), ctl.Mute)
			}
		}
		for _, a := range b.Aux {
			p.Live(ctl.Channel, a, ctl.Mute)
		}
	}
	p.Release(view, pos.Now, &e.machine.Overlay, ctl.Channel, sc.Filter(n.V))
	return len(p.Out()) > 0
}

func (e *Engine) evalDisplay() bool {
	ctl := e.ctl.Get()
	nav := e.navDep.Get()
	f := e.display.Render(DisplayInput{
		View:     e.machine.View(),
		Beat:     e.pos.Get().Now,
		Channel:  ctl.Channel,
		Octave:   ctl.Octave,
		Held:     e.noteDep.Get().V,
		Overlay:  &e.machine.Overlay,
		Scale:    e.scaleDep.Get(),
		Controls: &ctl,
		Deleting: e.machine.Deleting,
		Page:     &nav,
	})
	e.frameCell.Set(f)
	return f != e.lastFrame.Get()
}

// Handle runs one pass for an input message
func (e *Engine) Handle(msg midi.Message) Result {
	e.inputCell.Set(msg)
	e.g.Trigger(e.inputNode)
	return e.run()
}

// Tick runs a clock pass if playback is running and a tempo tick is due at now
func (e *Engine) Tick(now time.Time) (Result, bool) {
	if !e.playback.Playing || !e.clock.Due(now) {
		return Result{}, false
	}
	return e.Step(), true
}

// Step advances the clock one beat regardless of wall time
func (e *Engine) Step() Result {
	e.ticks++
	e.tickCell.Set(e.ticks)
	e.g.Trigger(e.tickNode)
	return e.run()
}

func (e *Engine) run() Result {
	before := e.changes
	fired := e.g.Run()
	res := Result{
		Out:     e.playback.Drain(),
		Changed: e.changes != before,
		Display: fired.Has(e.displayNode),
	}
	if fired.Has(e.controlsNode) {
		res.Stop = e.command.PowerOff
		res.Save = e.command.Save
	}
	return res
}

// Until returns how long the caller may wait before the next tick could be due
func (e *Engine) Until(now time.Time) time.Duration {
	if !e.playback.Playing {
		return e.clock.Interval()
	}
	return e.clock.Until(now)
}

// Silence stops playback, returning the messages that end every sounding note
func (e *Engine) Silence() []midi.Event {
	if !e.playback.Playing {
		return nil
	}
	c := e.controls
	c.Playing = false
	e.controls = c
	e.controlsCell.Reset(c)
	e.playback.Stop(&c)
	return e.playback.Drain()
}

func (e *Engine) View() timeline.View { return e.store }
func (e *Engine) Position() Position  { return e.lastPos.Get() }
func (e *Engine) Frame() Frame        { return e.lastFrame.Get() }
func (e *Engine) Playing() bool       { return e.playback.Playing }

// Status is an immutable snapshot for the terminal UI
type Status struct {
	Playing, Recording, Deleting, CopyArmed bool

	BPM, Beat, Page, Channel, Octave int
	Mute                             uint16
	PageMask                         uint8
	Scale                            Scale
	Metronome                        int
	Held                             midi.NoteSet

	Events, Tombstones int
	Active             uint16
	Frame              Frame
}

func (e *Engine) Status() Status {
	c := e.controls
	beat := e.lastPos.Get().Now
	return Status{
		Playing:    e.playback.Playing,
		Recording:  e.machine.Recording,
		Deleting:   e.machine.Deleting,
		CopyArmed:  e.machine.Copy() != nil,
		BPM:        e.clock.BPM(),
		Beat:       beat,
		Page:       timeline.Page(beat),
		Channel:    c.Channel,
		Octave:     c.Octave,
		Mute:       c.Mute,
		PageMask:   c.PageMask,
		Scale:      e.scale,
		Metronome:  e.playback.Metronome,
		Held:       e.notes.V,
		Events:     e.store.Events(),
		Tombstones: e.store.Tombstones(),
		Active:     e.store.Active(),
		Frame:      e.lastFrame.Get(),
	}
}

// TaskState is the engine state that survives a restart alongside the timeline
type TaskState struct {
	BPM       int
	Beat      int
	Channel   int
	Octave    int
	Mute      uint16
	PageMask  uint8
	ScaleMode ScaleMode
	Root      int
	Metronome int
	Bank      [16]uint8
	Program   [16]uint8
	Volume    [16]uint8
}

func (e *Engine) State() TaskState {
	c := e.controls
	return TaskState{
		BPM:       e.clock.BPM(),
		Beat:      e.lastPos.Get().Now,
		Channel:   c.Channel,
		Octave:    c.Octave,
		Mute:      c.Mute,
		PageMask:  c.PageMask,
		ScaleMode: e.scale.Mode,
		Root:      e.scale.Root,
		Metronome: e.playback.Metronome,
		Bank:      c.Bank,
		Program:   c.Program,
		Volume:    c.Volume,
	}
}

// Restore applies st between passes. Transport and mode flags come back stopped.
func (e *Engine) Restore(st TaskState) {
	c := NewControls(e.clock.SetBPM(st.BPM))
	c.ChannelFirst = e.controls.ChannelFirst
	c.Channel = st.Channel & 0x0f
	c.Octave = clamp(st.Octave, minOctave, maxOctave)
	c.Mute = st.Mute
	c.PageMask = st.PageMask & 0x3f
	c.ScaleMode = st.ScaleMode % 3
	c.Bank, c.Program, c.Volume = st.Bank, st.Program, st.Volume
	for i := range c.Volume {
		c.Bank[i] &= 0x7f
		c.Program[i] &= 0x7f
		c.Volume[i] &= 0x7f
	}
	e.controls = c
	e.controlsCell.Reset(c)
	e.cmdCell.Reset(Command{})

	e.scale = Scale{Mode: c.ScaleMode, Root: ((st.Root % 12) + 12) % 12}
	e.scaleCell.Reset(e.scale)

	e.notes = NewNotes()
	e.notesCell.Reset(e.notes)
	e.keys.Octave = c.Octave
	e.page = NewPageState()
	e.navCell.Reset(e.page)
	e.pageCell.Reset(PageResult{})

	beat := timeline.Wrap(st.Beat)
	e.posCell.Reset(Position{Then: beat, Now: beat})

	e.machine.Disarm()
	e.machine.SetRecording(false)
	e.machine.SetDeleting(false)
	e.machine.SetChannel(c.Channel)

	if st.Metronome < -1 || st.Metronome > 127 {
		st.Metronome = -1
	}
	e.playback = NewPlayback(st.Metronome)
}

// Reset empties the timeline and returns every setting to its default
func (e *Engine) Reset() {
	e.store.Clear()
	c := NewControls(DefaultBPM)
	e.Restore(TaskState{
		BPM:       DefaultBPM,
		Octave:    c.Octave,
		Metronome: -1,
		Volume:    c.Volume,
	})
}
